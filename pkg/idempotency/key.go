// Package idempotency provides the action-key ledger enforcing at-most-once
// execution of action-node side effects.
package idempotency

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

// ActionKey computes the stable fingerprint of one action-node side effect:
// sha256 over "executionID:nodeID:lowercased action:canonical JSON config".
// encoding/json sorts map keys, so marshaling the config map is canonical. Any
// config change yields a new key: a config edit is a different action, not a
// retry of the old one. Config maps arrive from decoded JSON, so marshaling
// them back cannot fail.
func ActionKey(executionID, nodeID, action string, config map[string]any) string {
	canonical, _ := json.Marshal(config)

	material := fmt.Sprintf("%s:%s:%s:%s", executionID, nodeID, strings.ToLower(action), canonical)
	sum := sha256.Sum256([]byte(material))

	return hex.EncodeToString(sum[:])
}

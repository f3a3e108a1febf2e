package safety

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/outflowhq/outflow/pkg/log"
	"github.com/outflowhq/outflow/pkg/protocol"
)

func TestCheck_Passes(t *testing.T) {
	gate := NewGate(log.WithModule("test"))

	err := gate.Check("tenant-1", 3, 4, 5)
	assert.NoError(t, err)
}

func TestCheck_ApprovalQueueOverflow(t *testing.T) {
	gate := NewGate(log.WithModule("test"))

	err := gate.Check("tenant-1", 21, 1, 5)

	require.Error(t, err)
	assert.Equal(t, "blocked:approval_queue_overflow", err.Error())
	assert.True(t, protocol.IsBlockedError(err))
	assert.False(t, protocol.IsRetryable(err))
}

func TestCheck_AtLimitIsAllowed(t *testing.T) {
	gate := NewGate(log.WithModule("test"))

	err := gate.Check("tenant-1", ApprovalQueueLimit, 1, 5)
	assert.NoError(t, err)
}

func TestCheck_RequestedActionsOverCap(t *testing.T) {
	gate := NewGate(log.WithModule("test"))

	err := gate.Check("tenant-1", 0, 10, 5)

	require.Error(t, err)
	assert.Equal(t, "blocked:execution_cap_exceeded", err.Error())
	assert.True(t, protocol.IsBlockedError(err))
}

func TestCheck_OverflowReportedBeforeCap(t *testing.T) {
	gate := NewGate(log.WithModule("test"))

	err := gate.Check("tenant-1", 25, 10, 5)

	require.Error(t, err)
	assert.Equal(t, "blocked:approval_queue_overflow", err.Error())
}

// Package integration computes whether a provider integration is ready to
// send. Evaluation is pure: all inputs are passed in, no I/O happens here.
package integration

import (
	"time"

	"github.com/outflowhq/outflow/pkg/models"
)

const secondsPerDay = 86400

// Inputs are the readiness inputs for one provider channel.
type Inputs struct {
	HasCredential bool
	HasIdentity   bool
	Verification  *models.IntegrationVerification
	MaxAgeDays    int
	Now           time.Time
}

// Status is the evaluated readiness of a provider channel.
type Status struct {
	Connected      bool `json:"connected"`
	Verified       bool `json:"verified"`
	Stale          bool `json:"stale"`
	TestSendPassed bool `json:"test_send_passed"`
	Ready          bool `json:"ready"`
}

// Evaluate computes the readiness predicate. A missing verification row or a
// zero timestamp counts as stale.
func Evaluate(in Inputs) Status {
	status := Status{
		Connected: in.HasCredential,
		Verified:  in.HasIdentity,
	}

	status.Stale = true

	verificationOk := false

	if in.Verification != nil {
		verificationOk = in.Verification.Status == models.VerificationStatusPassed

		if !in.Verification.CreatedAt.IsZero() {
			age := in.Now.Sub(in.Verification.CreatedAt)
			status.Stale = age > time.Duration(in.MaxAgeDays)*secondsPerDay*time.Second
		}
	}

	status.TestSendPassed = verificationOk && !status.Stale
	status.Ready = status.Connected && status.Verified && status.TestSendPassed

	return status
}

// Suggestion is one concrete remediation for a failed readiness sub-condition.
type Suggestion struct {
	Code   string `json:"code"`
	Detail string `json:"detail"`
}

// Suggestions maps every false sub-condition to an actionable remediation so
// callers can render guidance instead of a bare failure.
func Suggestions(provider string, in Inputs, status Status) []Suggestion {
	suggestions := make([]Suggestion, 0)

	if !status.Connected {
		suggestions = append(suggestions, Suggestion{
			Code:   "connect_credential",
			Detail: "connect a " + provider + " access credential for this client",
		})
	}

	if !status.Verified {
		suggestions = append(suggestions, Suggestion{
			Code:   "set_identity_field",
			Detail: "set the " + provider + " sender identity field for this client",
		})
	}

	if in.Verification == nil {
		suggestions = append(suggestions, Suggestion{
			Code:   "enable_live_verification",
			Detail: "run a live " + provider + " test send to produce verification evidence",
		})

		return suggestions
	}

	if in.Verification.Status != models.VerificationStatusPassed {
		suggestions = append(suggestions, Suggestion{
			Code:   "retry_live_verification",
			Detail: "the last live " + provider + " verification did not pass; fix the channel and retry it",
		})
	}

	if status.Stale {
		suggestions = append(suggestions, Suggestion{
			Code:   "refresh_stale_verification",
			Detail: "the " + provider + " verification evidence is older than the freshness window; run a new test send",
		})
	}

	return suggestions
}

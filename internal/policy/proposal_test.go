package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDenyListProposalGate(t *testing.T) {
	gate := NewDenyListProposalGate([]string{"drop_database"})

	d := gate.Evaluate("tenant-a", "drop_database")
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonToolDenied, d.ReasonCode)

	d = gate.Evaluate("tenant-a", "restart_pod")
	assert.True(t, d.Allowed)
	assert.Empty(t, d.ReasonCode)
}

func TestDenyListProposalGateEmpty(t *testing.T) {
	gate := NewDenyListProposalGate(nil)
	assert.True(t, gate.Evaluate("tenant-a", "anything").Allowed)
}

package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTenantGrantGateSecureByDefault(t *testing.T) {
	gate := NewTenantGrantGate(map[string][]string{
		"restart_pod":      {"tenant-a", "tenant-b"},
		"scale_deployment": {},
	})

	t.Run("missing action type denies", func(t *testing.T) {
		d := gate.EvaluateExecution("tenant-a", "delete_vm")
		assert.False(t, d.Allowed)
		assert.Equal(t, ReasonTenantNotAuthorized, d.ReasonCode)
	})

	t.Run("empty tenant set denies", func(t *testing.T) {
		d := gate.EvaluateExecution("tenant-a", "scale_deployment")
		assert.False(t, d.Allowed)
		assert.Equal(t, ReasonTenantNotAuthorized, d.ReasonCode)
	})

	t.Run("member of set allows", func(t *testing.T) {
		d := gate.EvaluateExecution("tenant-b", "restart_pod")
		assert.True(t, d.Allowed)
	})

	t.Run("non-member denies", func(t *testing.T) {
		d := gate.EvaluateExecution("tenant-c", "restart_pod")
		assert.False(t, d.Allowed)
		assert.Equal(t, ReasonTenantNotAuthorized, d.ReasonCode)
	})
}

func TestTenantGrantGateNilConfig(t *testing.T) {
	gate := NewTenantGrantGate(nil)
	d := gate.EvaluateExecution("tenant-a", "restart_pod")
	assert.False(t, d.Allowed, "no config means nobody may execute")
}

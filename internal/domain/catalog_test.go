package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCatalogAllowAllWhenEmpty(t *testing.T) {
	c := NewActionTypeCatalog(nil)
	assert.True(t, c.IsAllowlisted("restart_pod"))
	assert.True(t, c.IsAllowlisted("anything_at_all"))
}

func TestCatalogRequiresEnabledEntryWhenConfigured(t *testing.T) {
	c := NewActionTypeCatalog([]ActionTypeDefinition{
		{ActionType: "delete_vm", RiskTier: RiskTierHigh, Enabled: false},
		{ActionType: "restart_pod", RiskTier: RiskTierMedium, Enabled: true},
	})

	assert.False(t, c.IsAllowlisted("delete_vm"), "disabled entry must not be proposable")
	assert.True(t, c.IsAllowlisted("restart_pod"))
	// Allow-all applies only to an empty catalog, not to unlisted types of a
	// configured one.
	assert.False(t, c.IsAllowlisted("unlisted_type"))
}

func TestCatalogDefinitionLookup(t *testing.T) {
	c := NewActionTypeCatalog([]ActionTypeDefinition{
		{ActionType: "restart_pod", RiskTier: RiskTierMedium, Enabled: true},
	})

	def, ok := c.Definition("restart_pod")
	assert.True(t, ok)
	assert.Equal(t, RiskTierMedium, def.RiskTier)

	_, ok = c.Definition("unknown")
	assert.False(t, ok)
}

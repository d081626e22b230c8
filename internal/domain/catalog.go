package domain

// Risk tiers for action type classification
const (
	RiskTierLow    = "low"
	RiskTierMedium = "medium"
	RiskTierHigh   = "high"
)

// ActionTypeDefinition classifies one proposable action type.
type ActionTypeDefinition struct {
	ActionType string `json:"action_type"`
	RiskTier   string `json:"risk_tier"`
	Enabled    bool   `json:"enabled"`
}

// ActionTypeCatalog decides which action types may be proposed at all.
// An empty catalog is allow-all, untiered. Once any entry is configured the
// type must be present and enabled.
type ActionTypeCatalog struct {
	defs map[string]ActionTypeDefinition
}

func NewActionTypeCatalog(defs []ActionTypeDefinition) *ActionTypeCatalog {
	c := &ActionTypeCatalog{defs: make(map[string]ActionTypeDefinition, len(defs))}
	for _, d := range defs {
		c.defs[d.ActionType] = d
	}
	return c
}

// IsAllowlisted reports whether the action type may be proposed.
func (c *ActionTypeCatalog) IsAllowlisted(actionType string) bool {
	if len(c.defs) == 0 {
		return true
	}
	def, ok := c.defs[actionType]
	return ok && def.Enabled
}

// Definition returns the catalog entry for the action type, if configured.
func (c *ActionTypeCatalog) Definition(actionType string) (ActionTypeDefinition, bool) {
	def, ok := c.defs[actionType]
	return def, ok
}

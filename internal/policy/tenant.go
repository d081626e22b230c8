package policy

import (
	log "github.com/sirupsen/logrus"
)

// TenantGrantGate authorizes execution per tenant. Secure by default: an
// action type with no configured grant denies everyone, and an empty tenant
// set denies everyone. There is no allow-all fallback here — the opposite
// default from the proposal-time catalog, on purpose.
type TenantGrantGate struct {
	grants map[string][]string
}

func NewTenantGrantGate(grants map[string][]string) *TenantGrantGate {
	if grants == nil {
		grants = map[string][]string{}
	}
	return &TenantGrantGate{grants: grants}
}

// grantFor is the explicit two-valued config lookup: found or unavailable,
// never a swallowed miss.
func (g *TenantGrantGate) grantFor(actionType string) ([]string, bool) {
	tenants, ok := g.grants[actionType]
	return tenants, ok
}

func (g *TenantGrantGate) EvaluateExecution(tenantID, actionType string) Decision {
	tenants, found := g.grantFor(actionType)
	if !found {
		log.WithFields(log.Fields{
			"tenant_id":   tenantID,
			"action_type": actionType,
		}).Warn("Execution denied: no grant configured for action type")
		return Deny(ReasonTenantNotAuthorized, "no execution grant configured for action type")
	}
	if len(tenants) == 0 {
		return Deny(ReasonTenantNotAuthorized, "execution grant for action type has no authorized tenants")
	}
	for _, t := range tenants {
		if t == tenantID {
			return Allow()
		}
	}
	return Deny(ReasonTenantNotAuthorized, "tenant is not authorized to execute this action type")
}

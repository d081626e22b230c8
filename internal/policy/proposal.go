package policy

import (
	log "github.com/sirupsen/logrus"
)

// DenyListProposalGate denies proposals for explicitly blocked action types.
// Unlisted types are allowed; the catalog enforces its own allowlist
// separately at proposal time.
type DenyListProposalGate struct {
	denied map[string]struct{}
}

func NewDenyListProposalGate(deniedActionTypes []string) *DenyListProposalGate {
	denied := make(map[string]struct{}, len(deniedActionTypes))
	for _, t := range deniedActionTypes {
		denied[t] = struct{}{}
	}
	return &DenyListProposalGate{denied: denied}
}

func (g *DenyListProposalGate) Evaluate(tenantID, actionType string) Decision {
	if _, blocked := g.denied[actionType]; blocked {
		log.WithFields(log.Fields{
			"tenant_id":   tenantID,
			"action_type": actionType,
		}).Warn("Proposal denied by deny list")
		return Deny(ReasonToolDenied, "action type is blocked by policy")
	}
	return Allow()
}

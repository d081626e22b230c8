package policy

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"remediation-service/internal/domain"
)

// File is the declarative policy configuration: which action types are
// proposable, which are blocked outright, and which tenants may execute
// each type.
type File struct {
	ActionTypes     []ActionTypeEntry   `yaml:"action_types"`
	DeniedProposals []string            `yaml:"denied_proposals"`
	ExecutionGrants map[string][]string `yaml:"execution_grants"`
}

type ActionTypeEntry struct {
	ActionType string `yaml:"action_type"`
	RiskTier   string `yaml:"risk_tier"`
	Enabled    bool   `yaml:"enabled"`
}

// LoadFile parses a yaml policy file.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse policy file: %w", err)
	}
	return &f, nil
}

// CatalogDefinitions converts catalog entries to domain definitions.
func (f *File) CatalogDefinitions() []domain.ActionTypeDefinition {
	defs := make([]domain.ActionTypeDefinition, 0, len(f.ActionTypes))
	for _, e := range f.ActionTypes {
		defs = append(defs, domain.ActionTypeDefinition{
			ActionType: e.ActionType,
			RiskTier:   e.RiskTier,
			Enabled:    e.Enabled,
		})
	}
	return defs
}

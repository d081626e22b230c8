package policy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFile(t *testing.T) {
	content := `
action_types:
  - action_type: restart_pod
    risk_tier: medium
    enabled: true
  - action_type: delete_vm
    risk_tier: high
    enabled: false
denied_proposals:
  - drop_database
execution_grants:
  restart_pod:
    - tenant-a
`
	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	f, err := LoadFile(path)
	require.NoError(t, err)

	defs := f.CatalogDefinitions()
	require.Len(t, defs, 2)
	assert.Equal(t, "restart_pod", defs[0].ActionType)
	assert.True(t, defs[0].Enabled)
	assert.False(t, defs[1].Enabled)

	assert.Equal(t, []string{"drop_database"}, f.DeniedProposals)
	assert.Equal(t, []string{"tenant-a"}, f.ExecutionGrants["restart_pod"])
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

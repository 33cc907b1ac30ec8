package ssh

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexus-run/nexus/internal/core"
)

func TestResolveAuthNoMethodFails(t *testing.T) {
	t.Setenv("SSH_AUTH_SOCK", "")
	_, err := resolveAuth(core.Host{Name: "h"}, "")
	require.Error(t, err)
}

func TestResolveAuthPrefersExplicitKey(t *testing.T) {
	dir := t.TempDir()
	keyPath := dir + "/id_ed25519"
	require.NoError(t, os.WriteFile(keyPath, []byte("not a real key"), 0o600))

	_, err := resolveAuth(core.Host{Name: "h", KeyPath: keyPath}, "")
	require.Error(t, err, "parsing an invalid key must fail rather than silently falling through")
}

func TestPortOfDefaultsTo22(t *testing.T) {
	assert.Equal(t, "22", portOf(core.Host{}))
	assert.Equal(t, "2222", portOf(core.Host{Port: 2222}))
}

func TestClassifyRunResultExitCode(t *testing.T) {
	res, err := classifyRunResult("out", nil)
	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)
	assert.Equal(t, "out", res.CombinedOutput)
}

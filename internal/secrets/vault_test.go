package secrets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitRef(t *testing.T) {
	path, field, err := splitRef("vault://secret/data/web#password")
	require.NoError(t, err)
	assert.Equal(t, "secret/data/web", path)
	assert.Equal(t, "password", field)
}

func TestSplitRefRejectsNonVault(t *testing.T) {
	_, _, err := splitRef("secret/data/web#password")
	assert.Error(t, err)
}

func TestSplitRefRejectsMissingField(t *testing.T) {
	_, _, err := splitRef("vault://secret/data/web")
	assert.Error(t, err)
}

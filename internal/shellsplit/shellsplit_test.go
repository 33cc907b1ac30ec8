package shellsplit_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nexus-run/nexus/internal/shellsplit"
)

func TestSplitSimpleCommand(t *testing.T) {
	argv, ok := shellsplit.Split("echo hello world")
	assert.True(t, ok)
	assert.Equal(t, []string{"echo", "hello", "world"}, argv)
}

func TestSplitRejectsPipes(t *testing.T) {
	_, ok := shellsplit.Split("echo hi | grep h")
	assert.False(t, ok)
}

func TestSplitRejectsRedirects(t *testing.T) {
	_, ok := shellsplit.Split("echo hi > /tmp/out")
	assert.False(t, ok)
}

func TestSplitRejectsVariableExpansion(t *testing.T) {
	_, ok := shellsplit.Split("echo $HOME")
	assert.False(t, ok)
}

func TestSplitRejectsBackground(t *testing.T) {
	_, ok := shellsplit.Split("sleep 1 &")
	assert.False(t, ok)
}

func TestSplitRejectsAssignment(t *testing.T) {
	_, ok := shellsplit.Split("FOO=bar echo hi")
	assert.False(t, ok)
}

func TestSplitRejectsMultipleStatements(t *testing.T) {
	_, ok := shellsplit.Split("echo a; echo b")
	assert.False(t, ok)
}

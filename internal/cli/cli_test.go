package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "ofs111")
}

func TestModelsCommand(t *testing.T) {
	out, err := execute(t, "models")
	require.NoError(t, err)
	assert.Contains(t, out, "cbofs")
	assert.Contains(t, out, "ngofs")
	assert.Contains(t, out, "fvcom")
	assert.Contains(t, out, "0..48/1h")
}

func TestRunCommand_RejectsFormat2WithoutIndex(t *testing.T) {
	_, err := execute(t, "run", "--model", "cbofs", "--format", "2")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "grid index")
}

func TestRunCommand_RejectsUnknownModel(t *testing.T) {
	_, err := execute(t, "run", "--model", "atlantisofs", "--format", "3")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "atlantisofs")
}

func TestRunCommand_RejectsChopWithFormat3(t *testing.T) {
	_, err := execute(t, "run", "--model", "cbofs", "--format", "3", "--chop")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "format 2")
}

func TestIndexCommand_RequiresFlags(t *testing.T) {
	_, err := execute(t, "index")
	require.Error(t, err)
}

func TestChopCommand_RejectsBadCycle(t *testing.T) {
	_, err := execute(t, "chop",
		"--model", "cbofs", "--cycle", "noon",
		"--artifact", "/tmp/a.h5", "--index", "/tmp/ix.nc")
	require.Error(t, err)
}

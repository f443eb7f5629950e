package codegen

import (
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matouskozak/pascal-frontend/pkg/config"
)

const factorialSource = `program factorial;
const n = 6;
var i: integer;

function fact(k: integer): integer;
begin
    if k <= 1 then fact := 1 else fact := k * fact(k - 1)
end;

begin
    for i := 1 to n do
        writeln(fact(i))
end.`

func TestEmitObjectAndLink(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping toolchain test in short mode")
	}
	if runtime.GOOS == "windows" {
		t.Skip("in-process QBE is not available on Windows")
	}
	if _, err := exec.LookPath("cc"); err != nil {
		t.Skip("cc not found in PATH")
	}

	cfg := config.NewConfig()
	cfg.SetTarget(runtime.GOOS, runtime.GOARCH, "")
	prog, err := lowerWith(cfg, factorialSource)
	require.NoError(t, err)

	dir := t.TempDir()
	cfg.OutFile = filepath.Join(dir, "factorial.o")
	require.NoError(t, EmitObject(NewQBEBackend(), prog, cfg))

	exe := filepath.Join(dir, "factorial")
	require.NoError(t, Link(cfg, exe, cfg.OutFile))

	out, err := exec.Command(exe).Output()
	require.NoError(t, err)
	assert.Equal(t, "1\n2\n6\n24\n120\n720\n", string(out))
}

func TestRunReportsMissingTool(t *testing.T) {
	err := run([]string{"pasc-no-such-tool-xyz"})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "not found in PATH"))
}

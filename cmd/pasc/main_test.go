package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSource(t *testing.T, src string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "prog.pas")
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	return path
}

func runPasc(args ...string) (int, string, string) {
	var stdout, stderr bytes.Buffer
	code := run(args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRunUsageErrors(t *testing.T) {
	code, stdout, _ := runPasc()
	assert.Equal(t, exitUsage, code)
	assert.Contains(t, stdout, "Usage: pasc [options] <input-file>")

	code, _, stderr := runPasc("--no-such-flag", "a.pas")
	assert.Equal(t, exitUsage, code)
	assert.Contains(t, stderr, "unknown flag: --no-such-flag")

	path := writeSource(t, "program p;\nbegin end.")
	code, _, stderr = runPasc("--std=turbo", path)
	assert.Equal(t, exitUsage, code)
	assert.Contains(t, stderr, "unsupported standard 'turbo'")
}

func TestRunDumpSexpr(t *testing.T) {
	path := writeSource(t, "program p;\nvar x: integer;\nbegin\n    x := 1 + 2 * 3\nend.")
	code, stdout, _ := runPasc("--dump-ast-sexpr", path)
	assert.Equal(t, exitOK, code)
	assert.Equal(t, "(program p (decls (var x integer)) (funcs) (begin (:= x (+ 1 (* 2 3)))))\n", stdout)
}

func TestRunDumpAST(t *testing.T) {
	path := writeSource(t, "program hello;\nbegin\n    writeln('hi')\nend.")
	code, stdout, _ := runPasc("--dump-ast", path)
	assert.Equal(t, exitOK, code)
	assert.Contains(t, stdout, "ProgramNode")
	assert.Contains(t, stdout, `"hello"`)
	assert.Contains(t, stdout, `"writeln"`)
}

func TestRunSyntaxError(t *testing.T) {
	path := writeSource(t, "program p\nbegin end.")
	code, stdout, _ := runPasc("-q", path)
	assert.Equal(t, exitCompile, code)

	lines := strings.Split(stdout, "\n")
	require.GreaterOrEqual(t, len(lines), 2)
	assert.Equal(t, "Error while compiling "+path, lines[0])
	assert.Equal(t, path+":2:1: syntax error: expected ';', got 'begin'", lines[1])
}

func TestRunSemanticError(t *testing.T) {
	path := writeSource(t, "program p;\nvar x: integer;\nbegin\n    x := y + 1\nend.")
	code, stdout, _ := runPasc("-q", path)
	assert.Equal(t, exitCompile, code)
	want := "Error while compiling " + path + "\n" +
		path + ":4:10: error: undeclared variable 'y'\n" +
		"      x := y + 1\n" +
		"           ^\n"
	assert.Equal(t, want, stdout)
}

func TestRunMissingFile(t *testing.T) {
	code, stdout, _ := runPasc(filepath.Join(t.TempDir(), "absent.pas"))
	assert.Equal(t, exitCompile, code)
	assert.Contains(t, stdout, "could not read file")
}

package cli

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testFlags struct {
	output  string
	backend string
	verbose bool
	wall    bool
	link    []string
}

func newTestFlagSet() (*FlagSet, *testFlags) {
	var tf testFlags
	fs := NewFlagSet("pasc")
	fs.String(&tf.output, "output", "o", "a.o", "Place the output into <file>", "file")
	fs.String(&tf.backend, "backend", "b", "qbe", "Code generation backend", "name")
	fs.Bool(&tf.verbose, "verbose", "v", false, "Print the commands that are run")
	fs.Bool(&tf.wall, "Wall", "", false, "Enable all warnings")
	fs.List(&tf.link, "link", "l", "Link into an executable", "exe")
	return fs, &tf
}

func TestFlagSetParse(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want testFlags
		rest []string
	}{
		{"defaults", []string{"a.pas"}, testFlags{output: "a.o", backend: "qbe", link: []string{}}, []string{"a.pas"}},
		{"long with separate value", []string{"--output", "x.o", "a.pas"}, testFlags{output: "x.o", backend: "qbe", link: []string{}}, []string{"a.pas"}},
		{"long with equals", []string{"--backend=llvm"}, testFlags{output: "a.o", backend: "llvm", link: []string{}}, []string{}},
		{"shorthand attached", []string{"-ox.o", "a.pas"}, testFlags{output: "x.o", backend: "qbe", link: []string{}}, []string{"a.pas"}},
		{"shorthand separate", []string{"-o", "x.o"}, testFlags{output: "x.o", backend: "qbe", link: []string{}}, []string{}},
		{"bool shorthand", []string{"-v", "a.pas"}, testFlags{output: "a.o", backend: "qbe", verbose: true, link: []string{}}, []string{"a.pas"}},
		{"single dash multi-letter", []string{"-Wall"}, testFlags{output: "a.o", backend: "qbe", wall: true, link: []string{}}, []string{}},
		{"repeated list", []string{"-l", "a", "--link=b"}, testFlags{output: "a.o", backend: "qbe", link: []string{"a", "b"}}, []string{}},
		{"double dash ends flags", []string{"--", "-v"}, testFlags{output: "a.o", backend: "qbe", link: []string{}}, []string{"-v"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs, got := newTestFlagSet()
			require.NoError(t, fs.Parse(tt.args))
			assert.Equal(t, tt.want, *got)
			assert.Equal(t, tt.rest, fs.Args())
		})
	}
}

func TestFlagSetParseErrors(t *testing.T) {
	tests := []struct {
		args []string
		msg  string
	}{
		{[]string{"--nope"}, "unknown flag: --nope"},
		{[]string{"-z"}, "unknown flag: -z"},
		{[]string{"--output"}, "flag needs an argument: --output"},
		{[]string{"-o"}, "flag needs an argument: -o"},
		{[]string{"--verbose=maybe"}, "invalid boolean value 'maybe'"},
	}
	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			fs, _ := newTestFlagSet()
			err := fs.Parse(tt.args)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestFlagGroup(t *testing.T) {
	fs := NewFlagSet("pasc")
	entries := fs.AddFlagGroup("Warning Flags", "W", "warning", []FlagGroupEntry{
		{Name: "unused", Usage: "Warn about unused locals"},
		{Name: "shadow", Usage: "Warn about shadowing", Default: true},
	})
	require.NoError(t, fs.Parse([]string{"-Wunused", "-Wno-shadow"}))
	assert.True(t, *entries[0].Enabled)
	assert.False(t, *entries[0].Disabled)
	assert.False(t, *entries[1].Enabled)
	assert.True(t, *entries[1].Disabled)
}

func TestAppRun(t *testing.T) {
	newApp := func() (*App, *bytes.Buffer, *bytes.Buffer, *[]string) {
		var stdout, stderr bytes.Buffer
		var got []string
		app := NewApp("pasc")
		app.Synopsis = "[options] <input.pas>"
		app.Description = "Compiles a program to an object file."
		app.Stdout, app.Stderr = &stdout, &stderr
		app.Action = func(args []string) error {
			got = args
			return nil
		}
		return app, &stdout, &stderr, &got
	}

	t.Run("action receives arguments", func(t *testing.T) {
		app, _, _, got := newApp()
		require.NoError(t, app.Run([]string{"prog.pas"}))
		assert.Equal(t, []string{"prog.pas"}, *got)
	})

	t.Run("bad flag is a usage error", func(t *testing.T) {
		app, _, stderr, got := newApp()
		err := app.Run([]string{"--bogus"})
		assert.True(t, errors.Is(err, ErrUsage))
		assert.Nil(t, *got)
		assert.Contains(t, stderr.String(), "Usage: pasc [options] <input.pas>")
	})

	t.Run("help", func(t *testing.T) {
		app, stdout, _, got := newApp()
		var output string
		app.FlagSet.String(&output, "output", "o", "output.o", "Place the output into <file>", "file")
		app.FlagSet.AddFlagGroup("Warning Flags", "W", "warning", []FlagGroupEntry{
			{Name: "unused", Usage: "Warn about unused locals"},
		})
		require.NoError(t, app.Run([]string{"--help"}))
		assert.Nil(t, *got)

		help := stdout.String()
		assert.Contains(t, help, "pasc [options] <input.pas>")
		assert.Contains(t, help, "Compiles a program to an object file.")
		assert.Contains(t, help, "-o, --output <file>")
		assert.Contains(t, help, "|output.o|")
		assert.Contains(t, help, "Warning Flags")
		assert.Contains(t, help, "-Wno-<warning>")
		assert.Contains(t, help, "unused")
		assert.NotContains(t, help, "--Wunused", "group switches are listed by name only")
	})
}

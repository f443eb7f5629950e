package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matouskozak/pascal-frontend/pkg/cli"
)

func TestApplyStd(t *testing.T) {
	cfg := NewConfig()
	require.NoError(t, cfg.ApplyStd("mila"))
	assert.Equal(t, "mila", cfg.StdName)
	assert.False(t, cfg.IsFeatureEnabled(FeatBraceComments))
	assert.False(t, cfg.IsFeatureEnabled(FeatMultiWrite))
	assert.False(t, cfg.IsFeatureEnabled(FeatNegExpr))

	require.NoError(t, cfg.ApplyStd("ext"))
	assert.True(t, cfg.IsFeatureEnabled(FeatBraceComments))
	assert.True(t, cfg.IsFeatureEnabled(FeatNegExpr))
	assert.False(t, cfg.IsFeatureEnabled(FeatCaseFold))

	assert.Error(t, cfg.ApplyStd("turbo"))
}

func TestApplyFlag(t *testing.T) {
	cfg := NewConfig()

	assert.True(t, cfg.ApplyFlag("-Wunused"))
	assert.True(t, cfg.IsWarningEnabled(WarnUnused))

	assert.True(t, cfg.ApplyFlag("-Wno-shadow"))
	assert.False(t, cfg.IsWarningEnabled(WarnShadow))

	assert.True(t, cfg.ApplyFlag("-Fcase-fold"))
	assert.True(t, cfg.IsFeatureEnabled(FeatCaseFold))

	assert.True(t, cfg.ApplyFlag("-Wno-all"))
	for w := Warning(0); w < WarnCount; w++ {
		assert.False(t, cfg.IsWarningEnabled(w), cfg.Warnings[w].Name)
	}

	assert.False(t, cfg.ApplyFlag("-Wbogus"))
	assert.False(t, cfg.ApplyFlag("-Xfoo"))
}

func TestSetBackend(t *testing.T) {
	cfg := NewConfig()
	assert.Equal(t, "qbe", cfg.Backend)
	require.NoError(t, cfg.SetBackend("llvm"))
	assert.Equal(t, "llvm", cfg.Backend)
	assert.Error(t, cfg.SetBackend("gcc"))
	assert.Equal(t, "llvm", cfg.Backend)
}

func TestSetTargetExplicit(t *testing.T) {
	cfg := NewConfig()
	cfg.SetTarget("linux", "arm64", "arm64")
	assert.Equal(t, "arm64", cfg.QbeTarget)
	assert.Equal(t, "arm64", cfg.TargetArch)
	assert.Equal(t, 8, cfg.WordSize)
}

func writeFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pasc.toml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadFile(t *testing.T) {
	path := writeFile(t, `backend = "llvm"
std = "mila"
output = "prog.o"

[warnings]
unused = true
shadow = false

[features]
case-fold = true
`)
	cfg := NewConfig()
	fc, err := cfg.LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "llvm", fc.Backend)

	assert.Equal(t, "llvm", cfg.Backend)
	assert.Equal(t, "mila", cfg.StdName)
	assert.Equal(t, "prog.o", cfg.OutFile)
	assert.True(t, cfg.IsWarningEnabled(WarnUnused))
	assert.False(t, cfg.IsWarningEnabled(WarnShadow))
	assert.True(t, cfg.IsFeatureEnabled(FeatCaseFold))
	assert.False(t, cfg.IsFeatureEnabled(FeatMultiWrite), "std applies before the tables")
}

func TestLoadFileErrors(t *testing.T) {
	t.Run("unknown names", func(t *testing.T) {
		path := writeFile(t, "[warnings]\nloud = true\n\n[features]\ngoto = true\n")
		_, err := NewConfig().LoadFile(path)
		require.Error(t, err)
		assert.Equal(t, "unknown feature 'goto', warning 'loud'", err.Error())
	})

	t.Run("unknown key", func(t *testing.T) {
		path := writeFile(t, "optimize = true\n")
		_, err := NewConfig().LoadFile(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "optimize")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := NewConfig().LoadFile(filepath.Join(t.TempDir(), "absent.toml"))
		assert.Error(t, err)
	})
}

func TestFlagGroups(t *testing.T) {
	cfg := NewConfig()
	fs := cli.NewFlagSet("pasc")
	groups := cfg.SetupFlagGroups(fs)
	require.Len(t, groups.Warnings, int(WarnCount))
	require.Len(t, groups.Features, int(FeatCount))

	require.NoError(t, fs.Parse([]string{"-Wunused", "-Wno-array-bounds", "-Fcase-fold", "-Fno-brace-comments", "prog.pas"}))
	cfg.ApplyFlagGroups(groups)

	assert.True(t, cfg.IsWarningEnabled(WarnUnused))
	assert.False(t, cfg.IsWarningEnabled(WarnArrayBounds))
	assert.True(t, cfg.IsWarningEnabled(WarnShadow), "untouched switches keep their value")
	assert.True(t, cfg.IsFeatureEnabled(FeatCaseFold))
	assert.False(t, cfg.IsFeatureEnabled(FeatBraceComments))
	assert.Equal(t, []string{"prog.pas"}, fs.Args())
}

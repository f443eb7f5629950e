package config

import (
	"fmt"
	"os"
	"strings"

	"modernc.org/libqbe"
)

type Feature int

const (
	FeatBraceComments Feature = iota
	FeatCaseFold
	FeatMultiWrite
	FeatNegExpr
	FeatCount
)

type Warning int

const (
	WarnUnreachableCode Warning = iota
	WarnArrayBounds
	WarnForwardUndefined
	WarnShadow
	WarnRedefinition
	WarnUnused
	WarnExtra
	WarnCount
)

type Info struct {
	Name        string
	Enabled     bool
	Description string
}

type Config struct {
	Features   map[Feature]Info
	Warnings   map[Warning]Info
	FeatureMap map[string]Feature
	WarningMap map[string]Warning
	StdName    string
	Backend    string
	TargetArch string
	QbeTarget  string
	WordSize   int
	OutFile    string
	Verbose    bool
}

func NewConfig() *Config {
	cfg := &Config{
		FeatureMap: make(map[string]Feature),
		WarningMap: make(map[string]Warning),
		StdName:    "ext",
		Backend:    "qbe",
		WordSize:   8,
		OutFile:    "output.o",
	}

	features := map[Feature]Info{
		FeatBraceComments: {"brace-comments", true, "Recognize Pascal '{ ... }' block comments."},
		FeatCaseFold:      {"case-fold", false, "Treat keywords and identifiers case-insensitively."},
		FeatMultiWrite:    {"multi-write", true, "Allow write/writeln to take more than one argument."},
		FeatNegExpr:       {"neg-expr", true, "Allow unary minus in front of any operand, not only literals."},
	}

	warnings := map[Warning]Info{
		WarnUnreachableCode:  {"unreachable-code", true, "Warn about statements following 'break' or 'exit'."},
		WarnArrayBounds:      {"array-bounds", true, "Warn when a constant index falls outside the array bounds."},
		WarnForwardUndefined: {"forward-undefined", true, "Warn about forward declarations that are never defined."},
		WarnShadow:           {"shadow", true, "Warn when a parameter or local hides a global or a constant."},
		WarnRedefinition:     {"redefinition", true, "Warn when a global name is declared more than once."},
		WarnUnused:           {"unused", false, "Warn about locals that are never referenced."},
		WarnExtra:            {"extra", true, "Enable extra miscellaneous warnings."},
	}

	cfg.Features, cfg.Warnings = features, warnings
	for ft, info := range features {
		cfg.FeatureMap[info.Name] = ft
	}
	for wt, info := range warnings {
		cfg.WarningMap[info.Name] = wt
	}
	return cfg
}

// SetTarget selects the QBE target, defaulting to the host.
func (c *Config) SetTarget(goos, goarch, qbeTarget string) {
	if qbeTarget == "" {
		c.QbeTarget = libqbe.DefaultTarget(goos, goarch)
	} else {
		c.QbeTarget = qbeTarget
	}
	c.TargetArch = goarch

	switch c.QbeTarget {
	case "amd64_sysv", "amd64_apple", "arm64", "arm64_apple", "rv64":
		c.WordSize = 8
	default:
		fmt.Fprintf(os.Stderr, "pasc: warning: unrecognized QBE target '%s', assuming a 64-bit target\n", c.QbeTarget)
		c.WordSize = 8
	}
}

func (c *Config) SetBackend(name string) error {
	switch name {
	case "qbe", "llvm":
		c.Backend = name
		return nil
	default:
		return fmt.Errorf("unsupported backend '%s'. Supported: 'qbe', 'llvm'", name)
	}
}

func (c *Config) SetFeature(ft Feature, enabled bool) {
	if info, ok := c.Features[ft]; ok {
		info.Enabled = enabled
		c.Features[ft] = info
	}
}

func (c *Config) IsFeatureEnabled(ft Feature) bool { return c.Features[ft].Enabled }

func (c *Config) SetWarning(wt Warning, enabled bool) {
	if info, ok := c.Warnings[wt]; ok {
		info.Enabled = enabled
		c.Warnings[wt] = info
	}
}

func (c *Config) IsWarningEnabled(wt Warning) bool { return c.Warnings[wt].Enabled }

// ApplyStd switches the dialect. "mila" is the language exactly as the
// reference compiler accepts it; "ext" turns on the Pascal extensions.
func (c *Config) ApplyStd(stdName string) error {
	type stdSettings struct {
		feature   Feature
		milaValue bool
		extValue  bool
	}

	settings := []stdSettings{
		{FeatBraceComments, false, true},
		{FeatCaseFold, false, false},
		{FeatMultiWrite, false, true},
		{FeatNegExpr, false, true},
	}

	switch stdName {
	case "mila":
		for _, s := range settings {
			c.SetFeature(s.feature, s.milaValue)
		}
	case "ext":
		for _, s := range settings {
			c.SetFeature(s.feature, s.extValue)
		}
	default:
		return fmt.Errorf("unsupported standard '%s'. Supported: 'mila', 'ext'", stdName)
	}
	c.StdName = stdName
	return nil
}

// ApplyFlag handles a single -W/-Wno-/-F/-Fno- flag. It reports false for
// names it does not know.
func (c *Config) ApplyFlag(flag string) bool {
	trimmed := strings.TrimPrefix(flag, "-")

	var name string
	var isWarning bool
	switch {
	case strings.HasPrefix(trimmed, "W"):
		name, isWarning = strings.TrimPrefix(trimmed, "W"), true
	case strings.HasPrefix(trimmed, "F"):
		name = strings.TrimPrefix(trimmed, "F")
	default:
		return false
	}

	enable := !strings.HasPrefix(name, "no-")
	name = strings.TrimPrefix(name, "no-")

	if name == "all" && isWarning {
		for i := Warning(0); i < WarnCount; i++ {
			c.SetWarning(i, enable)
		}
		return true
	}

	if isWarning {
		w, ok := c.WarningMap[name]
		if ok {
			c.SetWarning(w, enable)
		}
		return ok
	}
	f, ok := c.FeatureMap[name]
	if ok {
		c.SetFeature(f, enable)
	}
	return ok
}

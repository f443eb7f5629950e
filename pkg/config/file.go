package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"reflect"
	"sort"
	"strings"

	"github.com/naoina/toml"
)

// These settings ensure that TOML keys use the same names as the command
// line flags.
var tomlSettings = toml.Config{
	NormFieldName: func(rt reflect.Type, key string) string {
		return key
	},
	FieldToKey: func(rt reflect.Type, field string) string {
		return strings.ToLower(field)
	},
	MissingField: func(rt reflect.Type, field string) error {
		return fmt.Errorf("field '%s' is not defined in %s", field, rt.String())
	},
}

// FileConfig is the on-disk project configuration.
//
//	backend = "llvm"
//	std = "mila"
//
//	[warnings]
//	unused = true
type FileConfig struct {
	Backend  string          `toml:"backend"`
	Target   string          `toml:"target"`
	Output   string          `toml:"output"`
	Std      string          `toml:"std"`
	Warnings map[string]bool `toml:"warnings"`
	Features map[string]bool `toml:"features"`
}

// LoadFile decodes a TOML project file and applies it to c.
func (c *Config) LoadFile(path string) (*FileConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var fc FileConfig
	err = tomlSettings.NewDecoder(bufio.NewReader(f)).Decode(&fc)
	// Add file name to errors that have a line number.
	if _, ok := err.(*toml.LineError); ok {
		err = errors.New(path + ", " + err.Error())
	}
	if err != nil {
		return nil, err
	}
	return &fc, c.Apply(&fc)
}

// Apply copies the settings of a decoded project file into c. Unknown
// warning and feature names are reported together.
func (c *Config) Apply(fc *FileConfig) error {
	if fc.Std != "" {
		if err := c.ApplyStd(fc.Std); err != nil {
			return err
		}
	}
	if fc.Backend != "" {
		if err := c.SetBackend(fc.Backend); err != nil {
			return err
		}
	}
	if fc.Output != "" {
		c.OutFile = fc.Output
	}
	if fc.Target != "" {
		c.QbeTarget = fc.Target
	}

	var unknown []string
	for name, on := range fc.Warnings {
		wt, ok := c.WarningMap[name]
		if !ok {
			unknown = append(unknown, "warning '"+name+"'")
			continue
		}
		c.SetWarning(wt, on)
	}
	for name, on := range fc.Features {
		ft, ok := c.FeatureMap[name]
		if !ok {
			unknown = append(unknown, "feature '"+name+"'")
			continue
		}
		c.SetFeature(ft, on)
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return fmt.Errorf("unknown %s", strings.Join(unknown, ", "))
	}
	return nil
}

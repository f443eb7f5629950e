package config

import (
	"github.com/matouskozak/pascal-frontend/pkg/cli"
)

// FlagGroups holds the -W and -F entries registered on a flag set, indexed
// by Warning and Feature respectively.
type FlagGroups struct {
	Warnings []cli.FlagGroupEntry
	Features []cli.FlagGroupEntry
}

// SetupFlagGroups registers -W<name>/-Wno-<name> and -F<name>/-Fno-<name>
// for every known warning and feature.
func (c *Config) SetupFlagGroups(fs *cli.FlagSet) *FlagGroups {
	var warnings, features []cli.FlagGroupEntry
	for i := Warning(0); i < WarnCount; i++ {
		info := c.Warnings[i]
		warnings = append(warnings, cli.FlagGroupEntry{Name: info.Name, Usage: info.Description, Default: info.Enabled})
	}
	for i := Feature(0); i < FeatCount; i++ {
		info := c.Features[i]
		features = append(features, cli.FlagGroupEntry{Name: info.Name, Usage: info.Description, Default: info.Enabled})
	}
	return &FlagGroups{
		Warnings: fs.AddFlagGroup("Warning Flags", "W", "warning", warnings),
		Features: fs.AddFlagGroup("Feature Flags", "F", "feature", features),
	}
}

// ApplyFlagGroups copies the switches set on the command line into c.
// Disabling wins when both forms are given.
func (c *Config) ApplyFlagGroups(g *FlagGroups) {
	for i, entry := range g.Warnings {
		if *entry.Enabled {
			c.SetWarning(Warning(i), true)
		}
		if *entry.Disabled {
			c.SetWarning(Warning(i), false)
		}
	}
	for i, entry := range g.Features {
		if *entry.Enabled {
			c.SetFeature(Feature(i), true)
		}
		if *entry.Disabled {
			c.SetFeature(Feature(i), false)
		}
	}
}

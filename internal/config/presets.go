package config

import "sort"

// Presets are applied on top of DefaultConfig.
var Presets = map[string]func(*Config){
	"default": func(c *Config) {},
	"bouncy": func(c *Config) {
		c.Material.Restitution = 0.95
		c.Material.StaticFriction = 0.2
		c.Material.DynamicFriction = 0.2
	},
	"zero-g": func(c *Config) {
		c.Gravity.Enabled = false
	},
	"crowd": func(c *Config) {
		c.Spawn.Initial = 25
		c.Spawn.ExtentX = 8
		c.Engine.Workers = 4
	},
	"heavy-rain": func(c *Config) {
		c.Spawn.Initial = 10
		c.Spawn.Height = 20
		c.Gravity.Vector = [3]float64{0, -30, 0}
		c.Material.Restitution = 0.3
	},
}

func GetPreset(name string) *Config {
	apply, ok := Presets[name]
	if !ok {
		return nil
	}
	cfg := DefaultConfig()
	apply(cfg)
	return cfg
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

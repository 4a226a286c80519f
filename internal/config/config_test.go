package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultValidates(t *testing.T) {
	cfg := Default("ROBOT-001")
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}
	if cfg.Robot.ID != "ROBOT-001" {
		t.Fatalf("robot id = %q", cfg.Robot.ID)
	}
	if len(cfg.Items) == 0 {
		t.Fatalf("default config must seed items")
	}
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"missing robot id", func(c *Config) { c.Robot.ID = "" }, "robot.id"},
		{"bad mode", func(c *Config) { c.Robot.AutomationMode = "turbo" }, "automation_mode"},
		{"zero capacity", func(c *Config) { c.Robot.MaxCapacity = 0 }, "max_capacity"},
		{"cost above capacity", func(c *Config) { c.Robot.MoveCost = 500 }, "exceeds max_capacity"},
		{"threshold at capacity", func(c *Config) { c.Robot.LowBatteryThreshold = 100 }, "low_battery_threshold"},
		{"rate above one", func(c *Config) { c.Capabilities.ObstacleRate = 1.5 }, "obstacle_rate"},
		{"missing station", func(c *Config) { c.Station.ID = "" }, "station.id"},
		{"duplicate seed item", func(c *Config) { c.Items = append(c.Items, c.Items[0]) }, "duplicate"},
		{"invalid seed item", func(c *Config) { c.Items[0].Weight = -1 }, "items[0]"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default("ROBOT-001")
			tc.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "warebot.yml"), []byte(GenerateDefault("ROBOT-042")), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Robot.ID != "ROBOT-042" {
		t.Fatalf("robot id = %q", cfg.Robot.ID)
	}
}

func TestLoadOptionalMissing(t *testing.T) {
	cfg, err := LoadOptional(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if cfg != nil {
		t.Fatalf("expected nil config for missing file")
	}
}

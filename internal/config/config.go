package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"warebot/internal/domain"
)

// Config models warebot.yml.
type Config struct {
	Robot struct {
		ID                  string  `yaml:"id"`
		AutomationMode      string  `yaml:"automation_mode"`
		MaxCapacity         float64 `yaml:"max_capacity"`
		MoveCost            float64 `yaml:"move_cost"`
		RetrieveCost        float64 `yaml:"retrieve_cost"`
		PackCost            float64 `yaml:"pack_cost"`
		ChargeRate          float64 `yaml:"charge_rate"`
		LowBatteryThreshold float64 `yaml:"low_battery_threshold"`
	} `yaml:"robot"`
	Capabilities struct {
		ObstacleRate      float64 `yaml:"obstacle_rate"`
		RerouteFailRate   float64 `yaml:"reroute_failure_rate"`
		SensorFailureRate float64 `yaml:"sensor_failure_rate"`
	} `yaml:"capabilities"`
	Station struct {
		ID string `yaml:"id"`
	} `yaml:"station"`
	Items []SeedItem `yaml:"items"`
}

// SeedItem is an inventory record loaded at bootstrap when the
// database holds no items yet.
type SeedItem struct {
	ID       string  `yaml:"id"`
	Name     string  `yaml:"name"`
	Weight   float64 `yaml:"weight"`
	Fragile  bool    `yaml:"fragile"`
	Location string  `yaml:"location"`
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; create with wb config init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional returns nil,nil if the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Robot.ID == "" {
		return fmt.Errorf("config.robot.id is required")
	}
	switch c.Robot.AutomationMode {
	case domain.ModeFullAuto, domain.ModeSemiAuto:
	default:
		return fmt.Errorf("config.robot.automation_mode must be '%s' or '%s'", domain.ModeFullAuto, domain.ModeSemiAuto)
	}
	if c.Robot.MaxCapacity <= 0 {
		return fmt.Errorf("config.robot.max_capacity must be positive")
	}
	for name, cost := range map[string]float64{
		"move_cost":     c.Robot.MoveCost,
		"retrieve_cost": c.Robot.RetrieveCost,
		"pack_cost":     c.Robot.PackCost,
	} {
		if cost < 0 {
			return fmt.Errorf("config.robot.%s must not be negative", name)
		}
		if cost > c.Robot.MaxCapacity {
			return fmt.Errorf("config.robot.%s exceeds max_capacity", name)
		}
	}
	if c.Robot.ChargeRate < 0 {
		return fmt.Errorf("config.robot.charge_rate must not be negative")
	}
	if c.Robot.LowBatteryThreshold < 0 || c.Robot.LowBatteryThreshold >= c.Robot.MaxCapacity {
		return fmt.Errorf("config.robot.low_battery_threshold must be in [0, max_capacity)")
	}
	for name, rate := range map[string]float64{
		"obstacle_rate":        c.Capabilities.ObstacleRate,
		"reroute_failure_rate": c.Capabilities.RerouteFailRate,
		"sensor_failure_rate":  c.Capabilities.SensorFailureRate,
	} {
		if rate < 0 || rate > 1 {
			return fmt.Errorf("config.capabilities.%s must be in [0, 1]", name)
		}
	}
	if c.Station.ID == "" {
		return fmt.Errorf("config.station.id is required")
	}
	seen := map[string]bool{}
	for i, it := range c.Items {
		if _, err := domain.NewItem(it.ID, it.Name, it.Weight, it.Fragile, it.Location); err != nil {
			return fmt.Errorf("config.items[%d]: %w", i, err)
		}
		if seen[it.ID] {
			return fmt.Errorf("config.items[%d]: duplicate id %s", i, it.ID)
		}
		seen[it.ID] = true
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "warebot.yml")
}

// GenerateDefault returns default config YAML.
func GenerateDefault(robotID string) string {
	return fmt.Sprintf(defaultTemplate, robotID)
}

// Default returns the default Config struct for a robot.
func Default(robotID string) *Config {
	var cfg Config
	_ = yaml.NewDecoder(bytes.NewBufferString(fmt.Sprintf(defaultTemplate, robotID))).Decode(&cfg)
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `robot:
  id: %s
  automation_mode: full
  max_capacity: 100
  move_cost: 5
  retrieve_cost: 3
  pack_cost: 2
  charge_rate: 20
  low_battery_threshold: 15

capabilities:
  obstacle_rate: 0.1
  reroute_failure_rate: 0.25
  sensor_failure_rate: 0.05

station:
  id: PACK-1

items:
  - id: SKU001
    name: "Wireless mouse"
    weight: 0.2
    location: A1
  - id: SKU002
    name: "Mechanical keyboard"
    weight: 1.1
    location: A2
  - id: SKU003
    name: "Desk lamp"
    weight: 1.8
    fragile: true
    location: B1
  - id: SKU004
    name: "Monitor stand"
    weight: 3.4
    location: B2
  - id: SKU005
    name: "Laptop sleeve"
    weight: 0.5
    location: C1
`

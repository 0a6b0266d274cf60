package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   Server          `yaml:"server"`
	Database Database        `yaml:"database"`
	Runner   Runner          `yaml:"runner"`
	Cases    []BenchmarkCase `yaml:"cases"`
	Skills   []Skill         `yaml:"skills"`
}

type Server struct {
	Addr     string `yaml:"addr"`
	APIToken string `yaml:"api_token"`
}

type Database struct {
	Path string `yaml:"path"`
}

// Runner points at the external execution service the orchestrator calls
// once per evaluation mode. Leaving URL or Token empty means multi-mode
// orchestration is not configured; single trial writes still work.
type Runner struct {
	URL            string `yaml:"url"`
	Token          string `yaml:"token"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// BenchmarkCase is a fixed task definition. ContainerImage must be a
// digest-pinned reference; that is enforced at execution time, not load time,
// so a config can be staged before its image is published.
type BenchmarkCase struct {
	ID             string  `yaml:"id"`
	ContainerImage string  `yaml:"container_image"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`
	CommandBudget  int     `yaml:"command_budget"`
	CostBudget     float64 `yaml:"cost_budget"`
}

type Skill struct {
	ID   string `yaml:"id"`
	Slug string `yaml:"slug"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return &cfg, nil
}

func validate(cfg *Config) error {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "skillbench.db"
	}
	if cfg.Runner.TimeoutSeconds < 1 {
		cfg.Runner.TimeoutSeconds = 900
	}
	if len(cfg.Cases) == 0 {
		return fmt.Errorf("no benchmark cases defined")
	}
	seenCases := make(map[string]bool, len(cfg.Cases))
	for i := range cfg.Cases {
		c := &cfg.Cases[i]
		if c.ID == "" {
			return fmt.Errorf("case %d: id is required", i)
		}
		if seenCases[c.ID] {
			return fmt.Errorf("case %q: duplicate id", c.ID)
		}
		seenCases[c.ID] = true
		if c.ContainerImage == "" {
			return fmt.Errorf("case %q: container_image is required", c.ID)
		}
		if c.TimeoutSeconds < 1 {
			c.TimeoutSeconds = 600
		}
		if c.CommandBudget < 1 {
			c.CommandBudget = 50
		}
		if c.CostBudget <= 0 {
			c.CostBudget = 5.0
		}
	}
	seenSkills := make(map[string]bool, len(cfg.Skills))
	for i, s := range cfg.Skills {
		if s.ID == "" {
			return fmt.Errorf("skill %d: id is required", i)
		}
		if seenSkills[s.ID] {
			return fmt.Errorf("skill %q: duplicate id", s.ID)
		}
		seenSkills[s.ID] = true
	}
	return nil
}

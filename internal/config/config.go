package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/stepdag/internal/models"
)

const (
	DefaultDt        = 0.01
	DefaultTEnd      = 10.0
	DefaultTolerance = 1e-6
)

type Config struct {
	Model     string             `yaml:"model"`
	Method    string             `yaml:"method"`
	Dt        float64            `yaml:"dt"`
	TStart    float64            `yaml:"t_start"`
	TEnd      float64            `yaml:"t_end"`
	Tolerance float64            `yaml:"tolerance"`
	MaxNorm   float64            `yaml:"max_norm"`
	Adaptive  bool               `yaml:"adaptive"`
	Initial   []float64          `yaml:"initial"`
	Params    map[string]float64 `yaml:"params"`
}

func DefaultConfig() *Config {
	return &Config{
		Model:     "decay",
		Method:    "rk4",
		Dt:        DefaultDt,
		TEnd:      DefaultTEnd,
		Tolerance: DefaultTolerance,
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) Validate() error {
	if c.Dt <= 0 {
		return fmt.Errorf("config: dt must be positive, got %g", c.Dt)
	}
	if c.TEnd <= c.TStart {
		return fmt.Errorf("config: t_end %g is not after t_start %g", c.TEnd, c.TStart)
	}
	return nil
}

// BuildModel constructs the configured model, applying parameter overrides
// and the initial state.
func (c *Config) BuildModel() (models.Model, error) {
	m, ok := models.ByName(c.Model)
	if !ok {
		return nil, fmt.Errorf("config: unknown model %q (have %v)", c.Model, models.Names())
	}
	switch md := m.(type) {
	case *models.Decay:
		if v, ok := c.Params["rate"]; ok {
			md.Rate = v
		}
		if len(c.Initial) >= 1 {
			md.Y0 = c.Initial[0]
		}
	case *models.Oscillator:
		if v, ok := c.Params["omega"]; ok {
			md.Omega = v
		}
		if len(c.Initial) >= 2 {
			md.X0, md.V0 = c.Initial[0], c.Initial[1]
		}
	case *models.VanDerPol:
		if v, ok := c.Params["mu"]; ok {
			md.Mu = v
		}
		if len(c.Initial) >= 2 {
			md.X0, md.V0 = c.Initial[0], c.Initial[1]
		}
	}
	return m, nil
}

package params

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario is the YAML surface for a run. Zero fields fall back to
// defaults, so a scenario file only needs to name what it changes.
type Scenario struct {
	BeltSpeed  float64 `yaml:"belt_speed"`
	BoxSize    float64 `yaml:"box_size"`
	BeltLength float64 `yaml:"belt_length"`

	ItemsMin int `yaml:"items_min"`
	ItemsMax int `yaml:"items_max"`

	Robots      int     `yaml:"robots"`
	Backups     int     `yaml:"backups"`
	FailureProb float64 `yaml:"failure_prob"`

	Boxes     int     `yaml:"boxes"`
	Seed      int64   `yaml:"seed"`
	TimeScale float64 `yaml:"time_scale"`
}

func Load(path string) (Params, error) {
	var s Scenario
	raw, err := os.ReadFile(path)
	if err != nil {
		return Params{}, err
	}
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return Params{}, fmt.Errorf("scenario yaml: %w", err)
	}
	p := s.Params()
	p.ApplyDefaults()
	return p, nil
}

func (s Scenario) Params() Params {
	return Params{
		BeltSpeed:   s.BeltSpeed,
		BoxSize:     s.BoxSize,
		BeltLength:  s.BeltLength,
		NMin:        s.ItemsMin,
		NMax:        s.ItemsMax,
		NumRobots:   s.Robots,
		NumBackups:  s.Backups,
		FailureProb: s.FailureProb,
		NumBoxes:    s.Boxes,
		Seed:        s.Seed,
		TimeScale:   s.TimeScale,
	}
}

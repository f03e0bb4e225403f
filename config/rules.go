package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	DefaultMaxUnavailableSlots = 2
	defaultFirstSlotHour       = 18
	defaultLastSlotHour        = 23
)

// Rules are the registration rules a deployment may tune.
type Rules struct {
	// MaxUnavailableSlots bounds how many slots a registration may mark.
	MaxUnavailableSlots int `yaml:"max_unavailable_slots"`
	// SlotHours are the bookable starting hours of each tournament day.
	SlotHours []int `yaml:"slot_hours"`
}

func DefaultRules() Rules {
	var r Rules
	r.applyDefaults()
	return r
}

// LoadRules reads the YAML rules file. An empty path yields the defaults.
func LoadRules(path string) (Rules, error) {
	if path == "" {
		return DefaultRules(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Rules{}, fmt.Errorf("reading rules file: %w", err)
	}

	var r Rules
	if err := yaml.Unmarshal(data, &r); err != nil {
		return Rules{}, fmt.Errorf("parsing rules file: %w", err)
	}
	r.applyDefaults()
	if err := r.validate(); err != nil {
		return Rules{}, err
	}
	return r, nil
}

func (r *Rules) applyDefaults() {
	if r.MaxUnavailableSlots == 0 {
		r.MaxUnavailableSlots = DefaultMaxUnavailableSlots
	}
	if len(r.SlotHours) == 0 {
		for h := defaultFirstSlotHour; h <= defaultLastSlotHour; h++ {
			r.SlotHours = append(r.SlotHours, h)
		}
	}
}

func (r *Rules) validate() error {
	if r.MaxUnavailableSlots < 0 {
		return errors.New("max_unavailable_slots must not be negative")
	}
	seen := make(map[int]bool, len(r.SlotHours))
	for _, h := range r.SlotHours {
		if h < 0 || h > 23 {
			return fmt.Errorf("slot hour %d out of range", h)
		}
		if seen[h] {
			return fmt.Errorf("slot hour %d listed twice", h)
		}
		seen[h] = true
	}
	return nil
}

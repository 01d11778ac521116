package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/eliraz-refael/go-imposters/internal/models"
)

// File is the startup configuration document: admin overrides plus imposters
// to pre-create and start.
type File struct {
	Admin     AdminOverrides `json:"admin"`
	Imposters []FileImposter `json:"imposters"`
}

// AdminOverrides optionally overrides any environment field.
type AdminOverrides struct {
	AdminPort    *int    `json:"adminPort,omitempty"`
	PortRangeMin *int    `json:"portRangeMin,omitempty"`
	PortRangeMax *int    `json:"portRangeMax,omitempty"`
	MaxImposters *int    `json:"maxImposters,omitempty"`
	LogLevel     *string `json:"logLevel,omitempty"`
}

// FileImposter declares one imposter to create at startup.
type FileImposter struct {
	Port  int                 `json:"port"`
	Name  string              `json:"name,omitempty"`
	Stubs []models.Stub       `json:"stubs,omitempty"`
	Proxy *models.ProxyConfig `json:"proxy,omitempty"`
}

// LoadFile reads and validates a config file.
func LoadFile(path string) (*File, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var f File
	if err := json.Unmarshal(content, &f); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	for i := range f.Imposters {
		imp := &f.Imposters[i]
		if imp.Port <= 0 || imp.Port > 65535 {
			return nil, fmt.Errorf("imposter %d: invalid port %d", i, imp.Port)
		}
		for j := range imp.Stubs {
			if err := imp.Stubs[j].Validate(); err != nil {
				return nil, fmt.Errorf("imposter %d stub %d: %w", i, j, err)
			}
		}
		if imp.Proxy != nil {
			if err := imp.Proxy.Validate(); err != nil {
				return nil, fmt.Errorf("imposter %d proxy: %w", i, err)
			}
		}
	}

	return &f, nil
}

// Apply layers the file's admin overrides over a base configuration.
func (f *File) Apply(base Config) Config {
	out := base
	if f.Admin.AdminPort != nil {
		out.AdminPort = *f.Admin.AdminPort
	}
	if f.Admin.PortRangeMin != nil {
		out.PortRangeMin = *f.Admin.PortRangeMin
	}
	if f.Admin.PortRangeMax != nil {
		out.PortRangeMax = *f.Admin.PortRangeMax
	}
	if f.Admin.MaxImposters != nil {
		out.MaxImposters = *f.Admin.MaxImposters
	}
	if f.Admin.LogLevel != nil {
		out.LogLevel = *f.Admin.LogLevel
	}
	return out
}

// Package profile loads named connection profiles from a YAML file.
package profile

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/pgstash/pgstash/pkg/config"
)

// Profile is one named connection target.
type Profile struct {
	URL      string            `yaml:"url,omitempty"`
	User     string            `yaml:"user,omitempty"`
	Password string            `yaml:"password,omitempty"`
	Capacity int               `yaml:"capacity,omitempty"`
	Options  map[string]string `yaml:"options,omitempty"`
}

// File is the on-disk profile set.
type File struct {
	Profiles map[string]Profile `yaml:"profiles"`
}

// Load reads and parses a profile file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading profiles: %w", err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing profiles %s: %w", path, err)
	}
	return &f, nil
}

// Config materializes the profile as a connection configuration. The URL is
// applied to the defaults first; the explicit fields override whatever it
// set.
func (p Profile) Config() (*config.Config, error) {
	cfg := config.New()
	if err := cfg.ApplyURL(p.URL); err != nil {
		return nil, err
	}
	if p.User != "" {
		cfg.SetUser(p.User)
	}
	if p.Password != "" {
		cfg.SetPassword(p.Password)
	}
	if p.Capacity > 0 {
		cfg.SetCapacity(p.Capacity)
	}
	cfg.SetOptions(p.Options)
	return cfg, nil
}

// Package config loads engine settings from YAML, with compiled-in
// defaults for everything.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/LokeshNardil/annotation-b-f/pkg/annotation"
)

// Duration parses YAML scalars like "15s" via time.ParseDuration.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parsing duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config carries the tunables of the engine.
type Config struct {
	// Labels are the three static catalogs used for category inference.
	Labels struct {
		Profile []string `yaml:"profile"`
		Model   []string `yaml:"model"`
		OCR     []string `yaml:"ocr"`
	} `yaml:"labels"`

	// HeartbeatInterval is the presence ping cadence of the sync client.
	HeartbeatInterval Duration `yaml:"heartbeat_interval"`

	// HistoryCap bounds the undo stack.
	HistoryCap int `yaml:"history_cap"`

	// PresenceExpiry is how long a silent remote user stays listed.
	PresenceExpiry Duration `yaml:"presence_expiry"`

	// LabelPreviewDelay is the debounce before a keystroke edit is applied
	// as a preview.
	LabelPreviewDelay Duration `yaml:"label_preview_delay"`
}

// Default returns the built-in configuration.
func Default() *Config {
	c := &Config{
		HeartbeatInterval: Duration(15 * time.Second),
		HistoryCap:        50,
		PresenceExpiry:    Duration(45 * time.Second),
		LabelPreviewDelay: Duration(300 * time.Millisecond),
	}
	cat := annotation.DefaultCatalog()
	c.Labels.Profile = cat.Profile
	c.Labels.Model = cat.Model
	c.Labels.OCR = cat.OCR
	return c
}

// Load reads a YAML config file over the defaults.
func Load(path string) (*Config, error) {
	c := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if c.HistoryCap <= 0 {
		c.HistoryCap = 50
	}
	return c, nil
}

// Catalog builds the label catalog from the configured lists.
func (c *Config) Catalog() *annotation.Catalog {
	return annotation.NewCatalog(c.Labels.Profile, c.Labels.Model, c.Labels.OCR)
}

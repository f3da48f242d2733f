package config

import (
	"io/ioutil"
	"log"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Settings come from an optional gpk_browser.yaml next to the binary.
type Settings struct {
	// Name of a charmap encoding used for strings inside game files
	Encoding string `yaml:"encoding"`
	// Multiplier applied to exported positions, useful to match
	// the scale of external dcc tools
	ExportScale float32 `yaml:"export_scale"`
}

var currentSettings = Settings{
	ExportScale: 1.0,
}

func LoadSettings(path string) error {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "Cannot read settings file %q", path)
	}

	s := Settings{ExportScale: 1.0}
	if err := yaml.Unmarshal(data, &s); err != nil {
		return errors.Wrapf(err, "Failed to unmarshal settings %q", path)
	}

	if s.Encoding != "" {
		if err := SetEncoding(s.Encoding); err != nil {
			return err
		}
	}
	if s.ExportScale == 0 {
		s.ExportScale = 1.0
	}

	currentSettings = s
	log.Printf("[config] Loaded settings from %q: %+v", path, s)
	return nil
}

func GetSettings() Settings {
	return currentSettings
}

package invert

import (
	"errors"
	"io"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/gnolang/tinvert/internal/lang"
)

// DefaultConfigFile is looked up in the working directory when no
// configuration path is given.
const DefaultConfigFile = ".tinvert.yaml"

// Config represents the configuration file. The order of Languages is the
// order in which delegates claim elements.
type Config struct {
	Name      string     `yaml:"name"`
	Languages []Language `yaml:"languages"`
	Exclude   []string   `yaml:"exclude,omitempty"`
}

type Language struct {
	Name       string   `yaml:"name"`
	Enabled    bool     `yaml:"enabled"`
	Extensions []string `yaml:"extensions,omitempty"`
}

// DefaultConfig enables every supported language.
func DefaultConfig() Config {
	cfg := Config{Name: "tinvert"}
	for _, s := range lang.Defaults() {
		cfg.Languages = append(cfg.Languages, Language{Name: s.Name, Enabled: s.Enabled})
	}
	return cfg
}

// LoadConfig reads the configuration at path. A missing file yields the
// default configuration.
func LoadConfig(path string) (Config, error) {
	if path == "" {
		path = DefaultConfigFile
	}
	cfg, err := parseConfigurationFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return DefaultConfig(), nil
	}
	if err != nil {
		return Config{}, err
	}
	if len(cfg.Languages) == 0 {
		cfg.Languages = DefaultConfig().Languages
	}
	return cfg, nil
}

func parseConfigurationFile(configurationPath string) (Config, error) {
	var config Config

	f, err := os.Open(configurationPath)
	if err != nil {
		return config, err
	}
	defer f.Close()

	decoder := yaml.NewDecoder(f)
	decoder.KnownFields(true)
	if err := decoder.Decode(&config); err != nil && !errors.Is(err, io.EOF) {
		return config, err
	}
	return config, nil
}

// WriteConfig writes cfg to path.
func WriteConfig(path string, cfg Config) error {
	d, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, d, 0o644)
}

func (c Config) settings() []lang.Setting {
	out := make([]lang.Setting, 0, len(c.Languages))
	for _, l := range c.Languages {
		out = append(out, lang.Setting{Name: l.Name, Enabled: l.Enabled, Extensions: l.Extensions})
	}
	return out
}

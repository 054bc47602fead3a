package models

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

type OutputConfig struct {
	Dir        string `yaml:"dir"`
	Format     string `yaml:"format"`      // jpg, png
	Naming     string `yaml:"naming"`      // keep, prefix, suffix
	NamingText string `yaml:"naming_text"` // prefix or suffix text
}

type Config struct {
	ServerAddr   string       `yaml:"server_addr"`
	SettingsPath string       `yaml:"settings_path"`
	DatabaseURL  string       `yaml:"database_url"` // templates live in postgres when set
	KafkaBroker  string       `yaml:"kafka_broker"` // export events are published when set
	KafkaTopic   string       `yaml:"kafka_topic"`
	FontDirs     []string     `yaml:"font_dirs"`
	JPEGQuality  int          `yaml:"jpeg_quality"`
	PreviewSize  int          `yaml:"preview_size"`
	LogLevel     string       `yaml:"log_level"`
	Output       OutputConfig `yaml:"output"`
}

func DefaultConfig() *Config {
	return &Config{
		ServerAddr:   "127.0.0.1:8080",
		SettingsPath: "watermark_templates.json",
		KafkaTopic:   "watermark-exports",
		FontDirs: []string{
			"/usr/share/fonts",
			"/usr/local/share/fonts",
			"/Library/Fonts",
			"C:\\Windows\\Fonts",
		},
		JPEGQuality: 95,
		PreviewSize: 400,
		LogLevel:    "info",
		Output: OutputConfig{
			Format: string(FormatJPEG),
			Naming: string(NamingKeep),
		},
	}
}

// LoadConfig reads a YAML config file on top of DefaultConfig. A missing
// file yields the defaults.
func LoadConfig(path string) (*Config, error) {
	const op = "models.LoadConfig"

	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if _, err := ParseFormat(c.Output.Format); err != nil {
		return err
	}
	if _, err := ParseNamingRule(c.Output.Naming); err != nil {
		return err
	}
	if c.JPEGQuality < 1 || c.JPEGQuality > 100 {
		return fmt.Errorf("jpeg_quality must be in [1, 100], got %d", c.JPEGQuality)
	}
	if c.PreviewSize <= 0 {
		return fmt.Errorf("preview_size must be positive, got %d", c.PreviewSize)
	}
	if c.KafkaBroker != "" && c.KafkaTopic == "" {
		return fmt.Errorf("kafka_topic is required when kafka_broker is set")
	}
	return nil
}

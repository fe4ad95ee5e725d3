package config

import (
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/mmathieum/montransit/pkg/util"
	"gopkg.in/yaml.v3"
)

type ServerConfig struct {
	Listen string `yaml:"listen" validate:"required"`
}

type SourcesConfig struct {
	APIBase    string `yaml:"apiBase" validate:"required,url"`
	MobileBase string `yaml:"mobileBase" validate:"required,url"`
	InfoBase   string `yaml:"infoBase" validate:"required,url"`
}

// WindowsConfig holds the freshness thresholds for one transit mode,
// in seconds.
type WindowsConfig struct {
	TooFresh  int `yaml:"tooFresh" validate:"gte=0"`
	TooOld    int `yaml:"tooOld" validate:"gte=0"`
	NotUseful int `yaml:"notUseful" validate:"gte=0"`
}

type CacheConfig struct {
	Bus  WindowsConfig `yaml:"bus"`
	Bike WindowsConfig `yaml:"bike"`
}

type PrefetchConfig struct {
	Workers int `yaml:"workers" validate:"gte=1"`
}

type Config struct {
	Server   ServerConfig   `yaml:"server" validate:"required"`
	Sources  SourcesConfig  `yaml:"sources" validate:"required"`
	Cache    CacheConfig    `yaml:"cache"`
	Prefetch PrefetchConfig `yaml:"prefetch"`
}

func defaults() Config {
	return Config{
		Server: ServerConfig{Listen: ":8080"},
		Sources: SourcesConfig{
			APIBase:    "https://api.stm.info/pub/i3/v1c",
			MobileBase: "https://m.stm.info",
			InfoBase:   "https://www.stm.info",
		},
		Cache: CacheConfig{
			Bus:  WindowsConfig{TooFresh: 60, TooOld: 300, NotUseful: 86400},
			Bike: WindowsConfig{TooFresh: 30, TooOld: 120, NotUseful: 3600},
		},
		Prefetch: PrefetchConfig{Workers: 4},
	}
}

// Load reads the config file named by MONTRANSIT_CONFIG (falling back to
// config.yml next to the binary), applies defaults for anything unset and
// validates the result. A missing file just yields the defaults.
func Load() (Config, error) {
	cfg := defaults()

	path := util.GetEnvironmentVariable("MONTRANSIT_CONFIG", "config.yml")

	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	} else if !os.IsNotExist(err) {
		return cfg, err
	}

	if listen := os.Getenv("MONTRANSIT_LISTEN"); listen != "" {
		cfg.Server.Listen = listen
	}

	v := validator.New()
	if err := v.Struct(cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}

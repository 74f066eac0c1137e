package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/votesquad/voter-cli/internal/mece"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Data      DataConfig      `yaml:"data" mapstructure:"data"`
	County    CountyConfig    `yaml:"county" mapstructure:"county"`
	Geocode   GeocodeConfig   `yaml:"geocode" mapstructure:"geocode"`
	Census    CensusConfig    `yaml:"census" mapstructure:"census"`
	Elections []mece.Election `yaml:"elections" mapstructure:"elections"`
	Rules     []RuleConfig    `yaml:"rules" mapstructure:"rules"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// RuleConfig is one tier rule: the rule matches voters who voted in any
// of the named elections. Chain order in the file is priority order.
type RuleConfig struct {
	Name  string   `yaml:"name" mapstructure:"name"`
	AnyOf []string `yaml:"any_of" mapstructure:"any_of"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
}

// DataConfig configures local file handling for the statewide downloads.
type DataConfig struct {
	Dir              string `yaml:"dir" mapstructure:"dir"`
	HistoryFile      string `yaml:"history_file" mapstructure:"history_file"`
	RegistrationFile string `yaml:"registration_file" mapstructure:"registration_file"`
}

// CountyConfig names the target county and its census identifiers.
type CountyConfig struct {
	Name       string `yaml:"name" mapstructure:"name"`
	StateFIPS  string `yaml:"state_fips" mapstructure:"state_fips"`
	CountyFIPS string `yaml:"county_fips" mapstructure:"county_fips"`
}

// GeocodeConfig configures the batch geocoder.
type GeocodeConfig struct {
	ChunkSize        int     `yaml:"chunk_size" mapstructure:"chunk_size"`
	Concurrency      int     `yaml:"concurrency" mapstructure:"concurrency"`
	ChunkTimeoutSecs int     `yaml:"chunk_timeout_secs" mapstructure:"chunk_timeout_secs"`
	RateLimit        float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	Retries          int     `yaml:"retries" mapstructure:"retries"`
	BaseURL          string  `yaml:"base_url" mapstructure:"base_url"`
	Benchmark        string  `yaml:"benchmark" mapstructure:"benchmark"`
}

// CensusConfig holds census API access for block attributes.
type CensusConfig struct {
	APIKey  string `yaml:"api_key" mapstructure:"api_key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// ElectionSet returns the configured elections, or the reference five
// when the config names none.
func (c *Config) ElectionSet() mece.ElectionSet {
	if len(c.Elections) == 0 {
		return mece.DefaultElections()
	}
	return mece.ElectionSet(c.Elections)
}

// RuleSet returns the configured tier rule chain, or the reference
// rules when the config names none.
func (c *Config) RuleSet() mece.RuleSet {
	if len(c.Rules) == 0 {
		return mece.DefaultRules()
	}
	rs := make(mece.RuleSet, 0, len(c.Rules))
	for _, r := range c.Rules {
		rs = append(rs, mece.AnyOf(r.Name, r.AnyOf...))
	}
	return rs
}

// Validate checks the fields the given command needs. Commands with no
// special requirements validate with mode "base".
func (c *Config) Validate(mode string) error {
	var missing []string

	check := func() {
		switch c.Store.Driver {
		case "postgres":
			if c.Store.DatabaseURL == "" {
				missing = append(missing, "store.database_url is required for the postgres driver")
			}
		case "sqlite":
			if c.Store.SQLitePath == "" {
				missing = append(missing, "store.sqlite_path is required for the sqlite driver")
			}
		default:
			missing = append(missing, "store.driver must be sqlite or postgres")
		}
		if c.Geocode.ChunkSize < 1 || c.Geocode.ChunkSize > 10000 {
			missing = append(missing, "geocode.chunk_size must be between 1 and 10000")
		}
		if c.Geocode.Concurrency < 1 {
			missing = append(missing, "geocode.concurrency must be >= 1")
		}
		if len(c.Rules) > 0 {
			names := make(map[string]bool)
			for _, e := range c.ElectionSet() {
				names[e.Name] = true
			}
			for _, r := range c.Rules {
				if len(r.AnyOf) == 0 {
					missing = append(missing, fmt.Sprintf("rules.%s needs at least one election in any_of", r.Name))
				}
				for _, n := range r.AnyOf {
					if !names[n] {
						missing = append(missing, fmt.Sprintf("rules.%s references unknown election %s", r.Name, n))
					}
				}
			}
		}
	}

	switch mode {
	case "base":
		check()
	case "run":
		check()
		if c.County.Name == "" {
			missing = append(missing, "county.name is required")
		}
	case "blocks":
		check()
		if c.County.StateFIPS == "" || c.County.CountyFIPS == "" {
			missing = append(missing, "county.state_fips and county.county_fips are required")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(missing) > 0 {
		return eris.New("config: " + strings.Join(missing, "; "))
	}
	return nil
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("VOTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.sqlite_path", "voter.db")
	v.SetDefault("data.dir", "data")
	v.SetDefault("county.name", "DURHAM")
	v.SetDefault("county.state_fips", "37")
	v.SetDefault("county.county_fips", "063")
	v.SetDefault("geocode.chunk_size", 1000)
	v.SetDefault("geocode.concurrency", 1)
	v.SetDefault("geocode.chunk_timeout_secs", 600)
	v.SetDefault("geocode.rate_limit", 50)
	v.SetDefault("geocode.retries", 3)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}

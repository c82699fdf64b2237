package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds application level configuration aggregated from env/config files/flags.
type Config struct {
	Source struct {
		Host     string
		Port     int
		User     string
		Password string
		Database string
		Timeout  time.Duration
	}
	Target struct {
		BaseURL     string
		Timeout     time.Duration
		MaxAttempts int
		Backoff     time.Duration
		MaxBackoff  time.Duration
		Password    string
	}
	Store struct {
		Path string
	}
	Migration struct {
		DryRun      bool
		StopOnError bool
	}
	Report struct {
		Bucket   string
		Prefix   string
		Region   string
		Endpoint string
	}
	AWS struct {
		Profile string
	}
	Log struct {
		Level string
	}
}

// MaxAttemptsLimit bounds how often a single account creation is attempted.
const MaxAttemptsLimit = 20

// Options controls where Load looks for configuration.
type Options struct {
	// File is an explicit config file; when empty an optional ./config.* is used.
	File string
	// Flags are bound over env and file values, keyed by viper key (e.g. "migration.dryrun").
	Flags map[string]*pflag.Flag
}

// Load reads configuration from a .env file, environment variables, an optional config file and flags.
func Load(opts Options) (Config, error) {
	// .env is optional; real environment variables win
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("MIGRATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if opts.File != "" {
		v.SetConfigFile(opts.File)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file %s: %w", opts.File, err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	for key, flag := range opts.Flags {
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return Config{}, fmt.Errorf("bind flag %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("source.host", "192.168.1.105")
	v.SetDefault("source.port", 3306)
	v.SetDefault("source.user", "john")
	v.SetDefault("source.password", "")
	v.SetDefault("source.database", "notthetalk")
	v.SetDefault("source.timeout", "10s")

	v.SetDefault("target.baseurl", "http://localhost:8080")
	v.SetDefault("target.timeout", "10s")
	v.SetDefault("target.maxattempts", 3)
	v.SetDefault("target.backoff", "500ms")
	v.SetDefault("target.maxbackoff", "5s")
	v.SetDefault("target.password", "password")

	v.SetDefault("store.path", "users.db")

	v.SetDefault("migration.dryrun", false)
	v.SetDefault("migration.stoponerror", false)

	v.SetDefault("report.bucket", "")
	v.SetDefault("report.prefix", "user-migrations")
	v.SetDefault("report.region", "us-east-1")
	v.SetDefault("report.endpoint", "")
	v.SetDefault("aws.profile", "")

	v.SetDefault("log.level", "info")
}

// Validate rejects configurations the job cannot run with.
func (c Config) Validate() error {
	var problems []string
	if strings.TrimSpace(c.Source.Host) == "" {
		problems = append(problems, "source.host is required")
	}
	if c.Source.Port <= 0 {
		problems = append(problems, "source.port must be positive")
	}
	if strings.TrimSpace(c.Source.User) == "" {
		problems = append(problems, "source.user is required")
	}
	if strings.TrimSpace(c.Source.Database) == "" {
		problems = append(problems, "source.database is required")
	}
	if strings.TrimSpace(c.Target.BaseURL) == "" {
		problems = append(problems, "target.baseurl is required")
	}
	if c.Target.Timeout <= 0 {
		problems = append(problems, "target.timeout must be positive")
	}
	if c.Target.MaxAttempts < 1 || c.Target.MaxAttempts > MaxAttemptsLimit {
		problems = append(problems, fmt.Sprintf("target.maxattempts must be between 1 and %d", MaxAttemptsLimit))
	}
	if c.Target.Backoff < 0 {
		problems = append(problems, "target.backoff must not be negative")
	}
	if c.Target.MaxBackoff < 0 {
		problems = append(problems, "target.maxbackoff must not be negative")
	}
	if c.Target.MaxBackoff > 0 && c.Target.MaxBackoff < c.Target.Backoff {
		problems = append(problems, "target.maxbackoff must not be below target.backoff")
	}
	if c.Target.Password == "" {
		problems = append(problems, "target.password is required")
	}
	if strings.TrimSpace(c.Store.Path) == "" {
		problems = append(problems, "store.path is required")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

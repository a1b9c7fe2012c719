package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Definition mirrors the raw configuration file shape before validation.
type Definition struct {
	Debug     bool   `mapstructure:"debug"`
	LogFormat string `mapstructure:"logFormat"`

	Server struct {
		Host string `mapstructure:"host"`
		Port int    `mapstructure:"port"`
	} `mapstructure:"server"`

	Database struct {
		DSN string `mapstructure:"dsn"`
	} `mapstructure:"database"`

	Redis struct {
		Addr     string `mapstructure:"addr"`
		Password string `mapstructure:"password"`
		DB       int    `mapstructure:"db"`
	} `mapstructure:"redis"`

	Calendar struct {
		BaseURL         string `mapstructure:"baseUrl"`
		Token           string `mapstructure:"token"`
		TimeoutSeconds  int    `mapstructure:"timeoutSeconds"`
		CheckinBaseURL  string `mapstructure:"checkinBaseUrl"`
		ReminderMinutes int    `mapstructure:"reminderMinutes"`
	} `mapstructure:"calendar"`

	Sync struct {
		Timezone             string   `mapstructure:"timezone"`
		Workers              int      `mapstructure:"workers"`
		MaxRetries           int      `mapstructure:"maxRetries"`
		RetryIntervalSeconds int      `mapstructure:"retryIntervalSeconds"`
		IncrementalCron      string   `mapstructure:"incrementalCron"`
		Terms                []string `mapstructure:"terms"`
	} `mapstructure:"sync"`
}

// Loader reads and merges configuration from file and environment.
type Loader struct {
	configFile string
}

// LoaderOption is a functional option for NewLoader.
type LoaderOption func(*Loader)

// WithConfigFile sets an explicit configuration file path.
func WithConfigFile(configFile string) LoaderOption {
	return func(l *Loader) { l.configFile = configFile }
}

// NewLoader creates a Loader and applies all given options.
func NewLoader(opts ...LoaderOption) *Loader {
	loader := &Loader{}
	for _, opt := range opts {
		opt(loader)
	}
	return loader
}

// Load creates a configuration by instantiating a Loader with the provided
// options and invoking its Load method.
func Load(opts ...LoaderOption) (*Config, error) {
	cfg, err := NewLoader(opts...).Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// Load initializes viper, reads the configuration file if present, and
// returns a built and validated Config.
func (l *Loader) Load() (*Config, error) {
	v := viper.New()
	l.setDefaults(v)

	v.SetEnvPrefix("CAMPUS_SYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if l.configFile != "" {
		v.SetConfigFile(l.configFile)
	} else {
		v.SetConfigName("campus-sync")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/campus-sync")
	}

	if err := v.ReadInConfig(); err != nil {
		// Missing file is fine; env and defaults still apply.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && l.configFile != "" {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var def Definition
	if err := v.Unmarshal(&def); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg, err := l.buildConfig(def)
	if err != nil {
		return nil, err
	}
	cfg.Global.ConfigPath = v.ConfigFileUsed()
	return cfg, nil
}

func (l *Loader) setDefaults(v *viper.Viper) {
	v.SetDefault("logFormat", "text")
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8085)
	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("calendar.timeoutSeconds", 15)
	v.SetDefault("calendar.reminderMinutes", 15)
	v.SetDefault("sync.timezone", "Asia/Shanghai")
	v.SetDefault("sync.workers", 8)
	v.SetDefault("sync.maxRetries", 5)
	v.SetDefault("sync.retryIntervalSeconds", 2)
}

// buildConfig transforms the raw Definition into a validated Config.
func (l *Loader) buildConfig(def Definition) (*Config, error) {
	loc, err := time.LoadLocation(def.Sync.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", def.Sync.Timezone, err)
	}
	if def.Sync.Workers <= 0 {
		return nil, fmt.Errorf("sync.workers must be positive, got %d", def.Sync.Workers)
	}

	cfg := &Config{
		Global: Global{
			Debug:     def.Debug,
			LogFormat: def.LogFormat,
		},
		Server: Server{
			Host: def.Server.Host,
			Port: def.Server.Port,
		},
		Database: Database{DSN: def.Database.DSN},
		Redis: Redis{
			Addr:     def.Redis.Addr,
			Password: def.Redis.Password,
			DB:       def.Redis.DB,
		},
		Calendar: Calendar{
			BaseURL:         def.Calendar.BaseURL,
			Token:           def.Calendar.Token,
			Timeout:         time.Duration(def.Calendar.TimeoutSeconds) * time.Second,
			CheckinBaseURL:  def.Calendar.CheckinBaseURL,
			ReminderMinutes: def.Calendar.ReminderMinutes,
		},
		Sync: Sync{
			Timezone:        def.Sync.Timezone,
			Location:        loc,
			Workers:         def.Sync.Workers,
			MaxRetries:      def.Sync.MaxRetries,
			RetryInterval:   time.Duration(def.Sync.RetryIntervalSeconds) * time.Second,
			IncrementalCron: def.Sync.IncrementalCron,
			Terms:           def.Sync.Terms,
		},
	}
	return cfg, nil
}

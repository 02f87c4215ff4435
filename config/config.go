package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the harness.
type Config struct {
	General   GeneralConfig   `mapstructure:"general"`
	Bench     BenchConfig     `mapstructure:"bench"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Run       RunConfig       `mapstructure:"run"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Server    ServerConfig    `mapstructure:"server"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// GeneralConfig contains general application settings.
type GeneralConfig struct {
	Debug    bool   `mapstructure:"debug"`
	LogLevel string `mapstructure:"log_level"`
}

// BenchConfig describes the remote benchmark gateway.
type BenchConfig struct {
	BaseURL           string        `mapstructure:"base_url"`
	APIKey            string        `mapstructure:"api_key"`
	Timeout           time.Duration `mapstructure:"timeout"`
	Retries           int           `mapstructure:"retries"`
	Backoff           time.Duration `mapstructure:"backoff"`
	InitialPageLimit  int           `mapstructure:"initial_page_limit"`
	PageRetryAttempts int           `mapstructure:"page_retry_attempts"`
}

func (b BenchConfig) Validate() error {
	if strings.TrimSpace(b.BaseURL) == "" {
		return fmt.Errorf("bench.base_url is required")
	}
	if _, err := url.Parse(b.BaseURL); err != nil {
		return fmt.Errorf("bench.base_url is not a valid URL: %w", err)
	}
	if b.InitialPageLimit <= 0 {
		return fmt.Errorf("bench.initial_page_limit must be > 0")
	}
	if b.PageRetryAttempts <= 0 {
		return fmt.Errorf("bench.page_retry_attempts must be > 0")
	}
	return nil
}

// LLMConfig contains model provider settings. Planner, executor and extractor
// can run on different models of the same provider.
type LLMConfig struct {
	Provider       string        `mapstructure:"provider"` // openai, anthropic
	APIKey         string        `mapstructure:"api_key"`
	BaseURL        string        `mapstructure:"base_url"`
	PlannerModel   string        `mapstructure:"planner_model"`
	ExecutorModel  string        `mapstructure:"executor_model"`
	ExtractorModel string        `mapstructure:"extractor_model"`
	Temperature    float64       `mapstructure:"temperature"`
	MaxTokens      int           `mapstructure:"max_tokens"`
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxRetries     int           `mapstructure:"max_retries"`
}

func (l LLMConfig) Validate() error {
	switch l.Provider {
	case "openai", "anthropic":
	default:
		return fmt.Errorf("llm.provider must be openai or anthropic, got %q", l.Provider)
	}
	if strings.TrimSpace(l.PlannerModel) == "" {
		return fmt.Errorf("llm.planner_model is required")
	}
	return nil
}

// ModelFor returns the configured model for a role, falling back to the
// planner model when the role-specific one is unset.
func (l LLMConfig) ModelFor(role string) string {
	switch role {
	case "executor":
		if l.ExecutorModel != "" {
			return l.ExecutorModel
		}
	case "extractor":
		if l.ExtractorModel != "" {
			return l.ExtractorModel
		}
	}
	return l.PlannerModel
}

// RunConfig controls the coordinator loop for one task run.
type RunConfig struct {
	Profile          string        `mapstructure:"profile"` // assistant, storefront
	MaxTurns         int           `mapstructure:"max_turns"`
	MaxStepsPerTurn  int           `mapstructure:"max_steps_per_turn"`
	HistoryWindow    int           `mapstructure:"history_window"`
	TaskAttempts     int           `mapstructure:"task_attempts"`
	RetryBackoff     time.Duration `mapstructure:"retry_backoff"`
	TurnGranularity  string        `mapstructure:"turn_granularity"` // single, combined
	ContextExtractor bool          `mapstructure:"context_extractor"`
	ClearBasket      bool          `mapstructure:"clear_basket"`
}

func (r RunConfig) Validate() error {
	switch r.Profile {
	case "assistant", "storefront":
	default:
		return fmt.Errorf("run.profile must be assistant or storefront, got %q", r.Profile)
	}
	switch r.TurnGranularity {
	case "", "single", "combined":
	default:
		return fmt.Errorf("run.turn_granularity must be single or combined, got %q", r.TurnGranularity)
	}
	return nil
}

// StorageConfig groups the optional persistence backends.
type StorageConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

// PostgresConfig configures the audit store. When disabled the harness keeps
// running and auditing degrades to log output.
type PostgresConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	URL      string `mapstructure:"url"`
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

// DSN resolves the connection string, preferring the explicit URL.
func (p PostgresConfig) DSN() string {
	if p.URL != "" {
		return p.URL
	}
	host := p.Host
	if host == "" {
		host = "localhost"
	}
	port := p.Port
	if port == "" {
		port = "5432"
	}
	ssl := p.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", p.User, p.Password, host, port, p.DBName, ssl)
}

// RedisConfig configures the optional sweep-lock backend.
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

func (r RedisConfig) Addr() string {
	host := r.Host
	if host == "" {
		host = "localhost"
	}
	port := r.Port
	if port == "" {
		port = "6379"
	}
	return host + ":" + port
}

func (r RedisConfig) Validate() error {
	if !r.Enabled {
		return nil
	}
	if r.DB < 0 {
		return fmt.Errorf("storage.redis.db cannot be negative")
	}
	return nil
}

// ServerConfig contains ops HTTP server and auth settings.
type ServerConfig struct {
	Address           string `mapstructure:"address"`
	JWTSecret         string `mapstructure:"jwt_secret"`
	AdminEmail        string `mapstructure:"admin_email"`
	AdminPasswordHash string `mapstructure:"admin_password_hash"` // bcrypt
	SweepEnabled      bool   `mapstructure:"sweep_enabled"`
	SweepSchedule     string `mapstructure:"sweep_schedule"`
}

func (s ServerConfig) Validate() error {
	if strings.TrimSpace(s.Address) == "" {
		return fmt.Errorf("server.address is required")
	}
	if s.SweepEnabled && strings.TrimSpace(s.SweepSchedule) == "" {
		return fmt.Errorf("server.sweep_schedule is required when sweeps are enabled")
	}
	return nil
}

// TelemetryConfig contains telemetry and monitoring settings.
type TelemetryConfig struct {
	Enabled           bool `mapstructure:"enabled"`
	PeriodicLogs      bool `mapstructure:"periodic_logs"`
	PrometheusEnabled bool `mapstructure:"prometheus_enabled"`
}

// LoadConfig reads config.json plus DROVER_* environment overrides.
func LoadConfig(path string) *Config {
	viper.SetConfigName("config") // name of config file (without extension)
	viper.SetConfigType("json")

	viper.SetDefault("general.log_level", "info")
	viper.SetDefault("bench.timeout", "30s")
	viper.SetDefault("bench.retries", 3)
	viper.SetDefault("bench.backoff", "2s")
	viper.SetDefault("bench.initial_page_limit", 10)
	viper.SetDefault("bench.page_retry_attempts", 5)
	viper.SetDefault("llm.provider", "openai")
	viper.SetDefault("llm.temperature", 0.1)
	viper.SetDefault("llm.max_tokens", 2000)
	viper.SetDefault("llm.timeout", "90s")
	viper.SetDefault("llm.max_retries", 3)
	viper.SetDefault("run.profile", "assistant")
	viper.SetDefault("run.max_turns", 7)
	viper.SetDefault("run.max_steps_per_turn", 2)
	viper.SetDefault("run.history_window", 4)
	viper.SetDefault("run.task_attempts", 3)
	viper.SetDefault("run.retry_backoff", "5s")
	viper.SetDefault("run.turn_granularity", "single")
	viper.SetDefault("run.context_extractor", true)
	viper.SetDefault("server.address", ":10001")
	viper.SetDefault("server.sweep_schedule", "@daily")
	viper.SetDefault("telemetry.enabled", true)
	viper.SetDefault("telemetry.prometheus_enabled", true)

	if path == "" {
		viper.AddConfigPath("./config")
		viper.AddConfigPath(".")
		exe, _ := os.Executable()
		exeDir := filepath.Dir(exe)
		viper.AddConfigPath(exeDir)
		viper.AddConfigPath(filepath.Join(exeDir, ".."))
		viper.AddConfigPath(filepath.Join(exeDir, "..", "config"))
	} else {
		viper.SetConfigFile(path)
	}

	viper.SetEnvPrefix("DROVER")
	replacer := strings.NewReplacer(".", "_")
	viper.SetEnvKeyReplacer(replacer)
	viper.AutomaticEnv() // read in environment variables that match (DROVER_*)

	if err := viper.ReadInConfig(); err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}

	if err := config.Bench.Validate(); err != nil {
		panic(err)
	}
	if err := config.LLM.Validate(); err != nil {
		panic(err)
	}
	if err := config.Run.Validate(); err != nil {
		panic(err)
	}
	if err := config.Server.Validate(); err != nil {
		panic(err)
	}
	if err := config.Storage.Redis.Validate(); err != nil {
		panic(err)
	}

	return &config
}

// Package config resolves scout settings from CLI flags, SCOUT_* environment
// variables and ~/.scout/config.yaml, in that order of precedence, recording
// where every value came from.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hurttlocker/scout/internal/llm"
)

type ValueSource string

const (
	SourceUnknown ValueSource = "unknown"
	SourceConfig  ValueSource = "config"
	SourceEnv     ValueSource = "env"
	SourceCLI     ValueSource = "cli"
	SourceDefault ValueSource = "default"
)

type ResolvedValue struct {
	Value  string      `json:"value"`
	Source ValueSource `json:"source"`
	From   string      `json:"from,omitempty"`
}

// Built-in defaults.
const (
	DefaultServerAddr     = ":8080"
	DefaultLogLevel       = "info"
	DefaultTotalRounds    = 5
	DefaultMemoryCapacity = 20
)

type ResolveOptions struct {
	ConfigPath  string
	CLIDBPath   string
	CLIProvider string
	CLIBaseURL  string
	CLIAddr     string
	CLILogLevel string
}

type ResolvedConfig struct {
	ConfigPath string `json:"config_path"`

	DBPath ResolvedValue `json:"db_path"`

	GatewayProvider    ResolvedValue `json:"gateway_provider"`
	GatewayBaseURL     ResolvedValue `json:"gateway_base_url"`
	GatewayAPIKey      ResolvedValue `json:"-"`
	GatewayTimeout     ResolvedValue `json:"gateway_timeout"`
	GatewayMaxRetries  ResolvedValue `json:"gateway_max_retries"`
	GatewayMinInterval ResolvedValue `json:"gateway_min_interval"`

	ModelPrimary   ResolvedValue `json:"model_primary"`
	ModelStandard  ResolvedValue `json:"model_standard"`
	ModelEfficient ResolvedValue `json:"model_efficient"`

	TotalRounds    ResolvedValue `json:"total_rounds"`
	MemoryCapacity ResolvedValue `json:"memory_capacity"`

	ServerAddr   ResolvedValue `json:"server_addr"`
	LogLevel     ResolvedValue `json:"log_level"`
	LogJSON      ResolvedValue `json:"log_json"`
	ImageBaseURL ResolvedValue `json:"image_base_url"`
}

type fileConfig struct {
	DBPath  string `yaml:"db_path"`
	Gateway struct {
		Provider    string `yaml:"provider"`
		BaseURL     string `yaml:"base_url"`
		APIKey      string `yaml:"api_key"`
		Timeout     string `yaml:"timeout"`
		MaxRetries  string `yaml:"max_retries"`
		MinInterval string `yaml:"min_interval"`
	} `yaml:"gateway"`
	Models struct {
		Primary   string `yaml:"primary"`
		Standard  string `yaml:"standard"`
		Efficient string `yaml:"efficient"`
	} `yaml:"models"`
	Conversation struct {
		TotalRounds    string `yaml:"total_rounds"`
		MemoryCapacity string `yaml:"memory_capacity"`
	} `yaml:"conversation"`
	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`
	Log struct {
		Level string `yaml:"level"`
		JSON  string `yaml:"json"`
	} `yaml:"log"`
	Image struct {
		BaseURL string `yaml:"base_url"`
	} `yaml:"image"`
}

func DefaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".scout", "config.yaml")
}

func DefaultDBPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".scout", "scout.db")
}

func ResolveConfig(opts ResolveOptions) (ResolvedConfig, error) {
	path := strings.TrimSpace(opts.ConfigPath)
	if path == "" {
		path = DefaultConfigPath()
	}

	out := ResolvedConfig{ConfigPath: path}
	out.applyDefaults()

	cfg, err := loadConfig(path)
	if err != nil {
		return out, err
	}

	if cfg != nil {
		apply(&out.DBPath, cfg.DBPath, SourceConfig, path)
		apply(&out.GatewayProvider, cfg.Gateway.Provider, SourceConfig, path)
		apply(&out.GatewayBaseURL, cfg.Gateway.BaseURL, SourceConfig, path)
		apply(&out.GatewayAPIKey, cfg.Gateway.APIKey, SourceConfig, path)
		apply(&out.GatewayTimeout, cfg.Gateway.Timeout, SourceConfig, path)
		apply(&out.GatewayMaxRetries, cfg.Gateway.MaxRetries, SourceConfig, path)
		apply(&out.GatewayMinInterval, cfg.Gateway.MinInterval, SourceConfig, path)
		apply(&out.ModelPrimary, cfg.Models.Primary, SourceConfig, path)
		apply(&out.ModelStandard, cfg.Models.Standard, SourceConfig, path)
		apply(&out.ModelEfficient, cfg.Models.Efficient, SourceConfig, path)
		apply(&out.TotalRounds, cfg.Conversation.TotalRounds, SourceConfig, path)
		apply(&out.MemoryCapacity, cfg.Conversation.MemoryCapacity, SourceConfig, path)
		apply(&out.ServerAddr, cfg.Server.Addr, SourceConfig, path)
		apply(&out.LogLevel, cfg.Log.Level, SourceConfig, path)
		apply(&out.LogJSON, cfg.Log.JSON, SourceConfig, path)
		apply(&out.ImageBaseURL, cfg.Image.BaseURL, SourceConfig, path)
	}

	applyEnv(&out.DBPath, "SCOUT_DB")
	applyEnv(&out.DBPath, "SCOUT_DB_PATH")
	applyEnv(&out.GatewayProvider, "SCOUT_GATEWAY")
	applyEnv(&out.GatewayBaseURL, "SCOUT_GATEWAY_URL")
	applyEnv(&out.GatewayAPIKey, "SCOUT_GATEWAY_API_KEY")
	applyEnv(&out.GatewayTimeout, "SCOUT_GATEWAY_TIMEOUT")
	applyEnv(&out.GatewayMaxRetries, "SCOUT_GATEWAY_MAX_RETRIES")
	applyEnv(&out.GatewayMinInterval, "SCOUT_GATEWAY_MIN_INTERVAL")
	applyEnv(&out.ModelPrimary, "SCOUT_MODEL_PRIMARY")
	applyEnv(&out.ModelStandard, "SCOUT_MODEL_STANDARD")
	applyEnv(&out.ModelEfficient, "SCOUT_MODEL_EFFICIENT")
	applyEnv(&out.TotalRounds, "SCOUT_TOTAL_ROUNDS")
	applyEnv(&out.MemoryCapacity, "SCOUT_MEMORY_CAPACITY")
	applyEnv(&out.ServerAddr, "SCOUT_ADDR")
	applyEnv(&out.LogLevel, "SCOUT_LOG_LEVEL")
	applyEnv(&out.LogJSON, "SCOUT_LOG_JSON")
	applyEnv(&out.ImageBaseURL, "SCOUT_IMAGE_URL")

	apply(&out.DBPath, opts.CLIDBPath, SourceCLI, "--db")
	apply(&out.GatewayProvider, opts.CLIProvider, SourceCLI, "--provider")
	apply(&out.GatewayBaseURL, opts.CLIBaseURL, SourceCLI, "--base-url")
	apply(&out.ServerAddr, opts.CLIAddr, SourceCLI, "--addr")
	apply(&out.LogLevel, opts.CLILogLevel, SourceCLI, "--log-level")

	if out.DBPath.Value != "" {
		out.DBPath.Value = expandUserPath(out.DBPath.Value)
	}

	if err := out.validate(); err != nil {
		return out, err
	}
	return out, nil
}

func (r *ResolvedConfig) applyDefaults() {
	def := func(dst *ResolvedValue, v string) {
		*dst = ResolvedValue{Value: v, Source: SourceDefault, From: "built-in default"}
	}
	def(&r.DBPath, DefaultDBPath())
	def(&r.GatewayProvider, "openai")
	def(&r.GatewayTimeout, llm.DefaultTimeout.String())
	def(&r.GatewayMaxRetries, strconv.Itoa(llm.DefaultMaxRetries))
	def(&r.GatewayMinInterval, llm.DefaultMinInterval.String())
	def(&r.ModelPrimary, llm.DefaultModels.Primary)
	def(&r.ModelStandard, llm.DefaultModels.Standard)
	def(&r.ModelEfficient, llm.DefaultModels.Efficient)
	def(&r.TotalRounds, strconv.Itoa(DefaultTotalRounds))
	def(&r.MemoryCapacity, strconv.Itoa(DefaultMemoryCapacity))
	def(&r.ServerAddr, DefaultServerAddr)
	def(&r.LogLevel, DefaultLogLevel)
	def(&r.LogJSON, "false")
}

func (r ResolvedConfig) validate() error {
	if _, err := r.duration(r.GatewayTimeout); err != nil {
		return err
	}
	if _, err := r.duration(r.GatewayMinInterval); err != nil {
		return err
	}
	for _, v := range []ResolvedValue{r.GatewayMaxRetries, r.TotalRounds, r.MemoryCapacity} {
		if _, err := r.integer(v); err != nil {
			return err
		}
	}
	if _, err := strconv.ParseBool(r.LogJSON.Value); err != nil {
		return fmt.Errorf("log json %q (from %s): %w", r.LogJSON.Value, r.LogJSON.From, err)
	}
	return nil
}

// Gateway returns the gateway configuration.
func (r ResolvedConfig) Gateway() llm.Config {
	timeout, _ := r.duration(r.GatewayTimeout)
	interval, _ := r.duration(r.GatewayMinInterval)
	retries, _ := r.integer(r.GatewayMaxRetries)
	return llm.Config{
		Provider:    r.GatewayProvider.Value,
		BaseURL:     r.GatewayBaseURL.Value,
		APIKey:      r.GatewayAPIKey.Value,
		Timeout:     timeout,
		MaxRetries:  retries,
		MinInterval: interval,
	}
}

// Models returns the tier-to-model mapping.
func (r ResolvedConfig) Models() llm.Models {
	return llm.Models{
		Primary:   r.ModelPrimary.Value,
		Standard:  r.ModelStandard.Value,
		Efficient: r.ModelEfficient.Value,
	}
}

// Rounds returns the synthesis round.
func (r ResolvedConfig) Rounds() int {
	n, _ := r.integer(r.TotalRounds)
	return n
}

// Memory returns the conversation memory capacity.
func (r ResolvedConfig) Memory() int {
	n, _ := r.integer(r.MemoryCapacity)
	return n
}

// JSONLogs reports whether logs are written as JSON.
func (r ResolvedConfig) JSONLogs() bool {
	b, _ := strconv.ParseBool(r.LogJSON.Value)
	return b
}

func (r ResolvedConfig) duration(v ResolvedValue) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(v.Value))
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q (from %s): %w", v.Value, v.From, err)
	}
	return d, nil
}

func (r ResolvedConfig) integer(v ResolvedValue) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(v.Value))
	if err != nil {
		return 0, fmt.Errorf("invalid number %q (from %s): %w", v.Value, v.From, err)
	}
	if n < 0 {
		return 0, fmt.Errorf("invalid number %q (from %s): must not be negative", v.Value, v.From)
	}
	return n, nil
}

func apply(dst *ResolvedValue, raw string, source ValueSource, from string) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return
	}
	*dst = ResolvedValue{Value: v, Source: source, From: from}
}

func applyEnv(dst *ResolvedValue, envKey string) {
	if v := strings.TrimSpace(os.Getenv(envKey)); v != "" {
		*dst = ResolvedValue{Value: v, Source: SourceEnv, From: envKey}
	}
}

func loadConfig(path string) (*fileConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var cfg fileConfig
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &cfg, nil
}

func expandUserPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}

package config

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/helpcove/kbsync/pkg/hostutil"
	"gopkg.in/yaml.v3"
)

// DefaultPath is where Load looks for the config file when no --config flag is given.
const DefaultPath = "kbsync.yaml"

// Config is the full process configuration. Values come from the YAML config file;
// secrets and deploy-varying settings may be overridden through KBSYNC_* env vars.
type Config struct {
	HelpCenter HelpCenter `yaml:"helpcenter"`
	Redis      Redis      `yaml:"redis"`
	OpenAI     OpenAI     `yaml:"openai"`
	Sync       Sync       `yaml:"sync"`
	Ops        Ops        `yaml:"ops"`
	Telemetry  Telemetry  `yaml:"telemetry"`
}

// HelpCenter configures the remote knowledge-base API client.
type HelpCenter struct {
	BaseURL  string   `yaml:"base_url"`
	Locale   string   `yaml:"locale"`
	Timeout  Duration `yaml:"timeout"`
	PageSize int      `yaml:"page_size"`
}

// Redis configures the KV store holding the content lock and the artifact index.
type Redis struct {
	Addr     string `yaml:"addr"`
	DB       int    `yaml:"db"`
	Password string `yaml:"password"`
}

// OpenAI configures the artifact store (files + vector store + assistant).
type OpenAI struct {
	APIKey          string `yaml:"api_key"`
	BaseURL         string `yaml:"base_url"` // optional; empty means the public API
	AssistantName   string `yaml:"assistant_name"`
	VectorStoreName string `yaml:"vector_store_name"`
	Model           string `yaml:"model"`
	Instructions    string `yaml:"instructions"`
}

// Sync configures the tick loop and the per-tick pipeline.
type Sync struct {
	Interval           Duration `yaml:"interval"`
	RetryDelay         Duration `yaml:"retry_delay"`
	HarvestParallelism int      `yaml:"harvest_parallelism"`
	UploadParallelism  int      `yaml:"upload_parallelism"`
	OutputDir          string   `yaml:"output_dir"`
	PurgeDeleted       bool     `yaml:"purge_deleted"`
}

// Ops configures the local operations HTTP server. An empty ListenAddr disables it.
type Ops struct {
	ListenAddr string `yaml:"listen_addr"`
	DevMode    bool   `yaml:"dev_mode"`
}

// Telemetry configures optional log shipping.
type Telemetry struct {
	LokiURL string `yaml:"loki_url"`
}

// Duration decodes YAML values like "2h" or "30s" into a time.Duration.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Load reads the config file at path, applies env overrides, validates, and returns
// the result. A missing file at DefaultPath falls back to pure defaults+env; a missing
// file at an explicitly requested path is an error.
func Load(path string) (*Config, error) {
	cfg := defaults()

	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case os.IsNotExist(err) && !explicit:
		// No config file is fine; env + defaults carry the day.
	default:
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	applyEnv(cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validate: %w", err)
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		HelpCenter: HelpCenter{
			BaseURL:  "https://support.helpcove.com/api/v2/help_center/",
			Locale:   "en-us",
			Timeout:  Duration(30 * time.Second),
			PageSize: 100,
		},
		Redis: Redis{
			Addr: "localhost:6379",
			DB:   0,
		},
		OpenAI: OpenAI{
			AssistantName:   "Support Knowledge Assistant",
			VectorStoreName: "Support Knowledge Base",
			Model:           "gpt-4o",
			Instructions: "You are a support expert for the product. Answer questions " +
				"using the help-center articles in your knowledge base.",
		},
		Sync: Sync{
			Interval:           Duration(2 * time.Hour),
			RetryDelay:         Duration(5 * time.Second),
			HarvestParallelism: 16,
			UploadParallelism:  20,
			OutputDir:          "./.tmp",
		},
		Ops: Ops{
			ListenAddr: "127.0.0.1:8777",
		},
	}
}

// applyEnv layers KBSYNC_* environment variables over the file values. Env wins.
func applyEnv(cfg *Config) {
	set := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	set(&cfg.OpenAI.APIKey, "KBSYNC_OPENAI_API_KEY")
	set(&cfg.OpenAI.BaseURL, "KBSYNC_OPENAI_BASE_URL")
	set(&cfg.Redis.Addr, "KBSYNC_REDIS_ADDR")
	set(&cfg.Redis.Password, "KBSYNC_REDIS_PASSWORD")
	set(&cfg.Telemetry.LokiURL, "KBSYNC_LOKI_URL")
	set(&cfg.Sync.OutputDir, "KBSYNC_OUTPUT_DIR")
	set(&cfg.HelpCenter.BaseURL, "KBSYNC_HELPCENTER_BASE_URL")
}

func (c *Config) validate() error {
	if c.OpenAI.APIKey == "" {
		return fmt.Errorf("openai.api_key is required (set KBSYNC_OPENAI_API_KEY)")
	}
	if err := checkURL("helpcenter.base_url", c.HelpCenter.BaseURL, true); err != nil {
		return err
	}
	if err := checkURL("openai.base_url", c.OpenAI.BaseURL, false); err != nil {
		return err
	}
	if err := checkURL("telemetry.loki_url", c.Telemetry.LokiURL, false); err != nil {
		return err
	}
	if c.HelpCenter.Locale == "" {
		return fmt.Errorf("helpcenter.locale must not be empty")
	}
	if c.HelpCenter.PageSize < 1 || c.HelpCenter.PageSize > 100 {
		return fmt.Errorf("helpcenter.page_size must be in 1..100, got %d", c.HelpCenter.PageSize)
	}
	if c.HelpCenter.Timeout.Std() <= 0 {
		return fmt.Errorf("helpcenter.timeout must be positive")
	}
	if c.Sync.Interval.Std() <= 0 {
		return fmt.Errorf("sync.interval must be positive")
	}
	if c.Sync.RetryDelay.Std() <= 0 {
		return fmt.Errorf("sync.retry_delay must be positive")
	}
	if c.Sync.HarvestParallelism < 1 {
		return fmt.Errorf("sync.harvest_parallelism must be at least 1")
	}
	if c.Sync.UploadParallelism < 1 {
		return fmt.Errorf("sync.upload_parallelism must be at least 1")
	}
	if c.Sync.OutputDir == "" {
		return fmt.Errorf("sync.output_dir must not be empty")
	}
	if c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr must not be empty")
	}
	if err := hostutil.ValidateHostPort(c.Redis.Addr); err != nil {
		return fmt.Errorf("redis.addr: %w", err)
	}
	if c.Ops.ListenAddr != "" {
		if err := hostutil.ValidateHostPort(c.Ops.ListenAddr); err != nil {
			return fmt.Errorf("ops.listen_addr: %w", err)
		}
	}
	return nil
}

// checkURL validates that raw parses as an absolute http(s) URL. Empty values pass
// unless required.
func checkURL(field, raw string, required bool) error {
	if raw == "" {
		if required {
			return fmt.Errorf("%s is required", field)
		}
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s: unsupported scheme %q", field, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%s: missing host", field)
	}
	return nil
}

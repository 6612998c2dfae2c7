package config

import (
	"time"

	yamlenv "github.com/ifuryst/go-yaml-env"

	"github.com/fraywing/threadcast/pkg/logger"
	"github.com/fraywing/threadcast/pkg/retry"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Logger    logger.Config   `yaml:"logger"`
	Models    ModelsConfig    `yaml:"models"`
	Thread    ThreadConfig    `yaml:"thread"`
	Validator ValidatorConfig `yaml:"validator"`
	Publisher PublisherConfig `yaml:"publisher"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
}

type ServerConfig struct {
	Port       int    `yaml:"port"`
	Host       string `yaml:"host"`
	Mode       string `yaml:"mode"`
	APIToken   string `yaml:"api_token"`
	TOTPSecret string `yaml:"totp_secret"`
	CertFile   string `yaml:"cert_file"`
	KeyFile    string `yaml:"key_file"`
}

type DatabaseConfig struct {
	// Enabled switches the publish-record store from JSON marker files to
	// postgres. File records are the default so the tool runs as a plain CI
	// job with no infrastructure.
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"ssl_mode"`
	TimeZone string `yaml:"timezone"`
}

// RetryConfig is the yaml shape of a retry.Policy; durations are strings
// like "500ms" or "2s".
type RetryConfig struct {
	MaxAttempts     int     `yaml:"max_attempts"`
	InitialInterval string  `yaml:"initial_interval"`
	MaxInterval     string  `yaml:"max_interval"`
	Multiplier      float64 `yaml:"multiplier"`
}

// Policy converts the yaml retry settings into a retry.Policy, falling back
// to the package defaults for anything unset or unparsable.
func (r RetryConfig) Policy() retry.Policy {
	p := retry.DefaultPolicy()
	if r.MaxAttempts > 0 {
		p.MaxAttempts = r.MaxAttempts
	}
	if d, err := time.ParseDuration(r.InitialInterval); err == nil && d > 0 {
		p.InitialInterval = d
	}
	if d, err := time.ParseDuration(r.MaxInterval); err == nil && d > 0 {
		p.MaxInterval = d
	}
	if r.Multiplier >= 1 {
		p.Multiplier = r.Multiplier
	}
	return p
}

// ModelsConfig maps each task kind onto a completion endpoint configuration.
type ModelsConfig struct {
	BaseURL      string      `yaml:"base_url"`
	APIKey       string      `yaml:"api_key"`
	Timeout      string      `yaml:"timeout"`
	Retry        RetryConfig `yaml:"retry"`
	Planning     ModelConfig `yaml:"planning"`
	Creative     ModelConfig `yaml:"creative"`
	Verification ModelConfig `yaml:"verification"`
}

type ModelConfig struct {
	Model       string  `yaml:"model"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
}

type ThreadConfig struct {
	MaxSourceChars int    `yaml:"max_source_chars"`
	HookCount      int    `yaml:"hook_count"`
	MaxHashtags    int    `yaml:"max_hashtags"`
	CallToAction   string `yaml:"call_to_action"`
}

type ValidatorConfig struct {
	CharLimit       int     `yaml:"char_limit"`
	ShortenedURLLen int     `yaml:"shortened_url_len"`
	WarnFraction    float64 `yaml:"warn_fraction"`
}

type PublisherConfig struct {
	GitHub  GitHubConfig  `yaml:"github"`
	Twitter TwitterConfig `yaml:"twitter"`
}

type GitHubConfig struct {
	Token         string `yaml:"token"`
	Owner         string `yaml:"owner"`
	Repo          string `yaml:"repo"`
	RepoURL       string `yaml:"repo_url"`
	BaseBranch    string `yaml:"base_branch"`
	WorkspaceDir  string `yaml:"workspace_dir"`
	GitUsername   string `yaml:"git_username"`
	GitEmail      string `yaml:"git_email"`
	CommitMessage string `yaml:"commit_message"`
}

type TwitterConfig struct {
	BaseURL       string      `yaml:"base_url"`
	BearerToken   string      `yaml:"bearer_token"`
	Timeout       string      `yaml:"timeout"`
	Retry         RetryConfig `yaml:"retry"`
	MinPostDelay  string      `yaml:"min_post_delay"`
	MaxRateWait   string      `yaml:"max_rate_wait"`
	RatePerSecond float64     `yaml:"rate_per_second"`
	RateBurst     int         `yaml:"rate_burst"`
}

type PipelineConfig struct {
	AutoPublishEnabled bool   `yaml:"auto_publish_enabled"`
	DryRun             bool   `yaml:"dry_run"`
	StateDir           string `yaml:"state_dir"`
	ReportDir          string `yaml:"report_dir"`
	ItemsFile          string `yaml:"items_file"`
	StyleFile          string `yaml:"style_file"`
	Workers            int    `yaml:"workers"`
}

type SchedulerConfig struct {
	RunInterval string `yaml:"run_interval"`
	Enabled     bool   `yaml:"enabled"`
}

// Duration parses s, returning fallback when s is empty or invalid.
func Duration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

func LoadConfig(configPath string) (*Config, error) {
	cfg, err := yamlenv.LoadConfig[Config](configPath)
	if err != nil {
		return nil, err
	}

	// Set default values
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 5841
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = "debug"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.TimeZone == "" {
		cfg.Database.TimeZone = "UTC"
	}

	applyModelDefaults(&cfg.Models)
	applyThreadDefaults(&cfg.Thread)
	applyValidatorDefaults(&cfg.Validator)
	applyPublisherDefaults(&cfg.Publisher)
	applyPipelineDefaults(&cfg.Pipeline)

	if cfg.Scheduler.RunInterval == "" {
		cfg.Scheduler.RunInterval = "30m"
	}

	return cfg, nil
}

func applyModelDefaults(m *ModelsConfig) {
	if m.BaseURL == "" {
		m.BaseURL = "https://api.openai.com/v1"
	}
	if m.Timeout == "" {
		m.Timeout = "120s"
	}
	if m.Planning.Model == "" {
		m.Planning = ModelConfig{Model: "gpt-4o", MaxTokens: 1500, Temperature: 0.3}
	}
	if m.Creative.Model == "" {
		m.Creative = ModelConfig{Model: "gpt-4o", MaxTokens: 2500, Temperature: 0.9}
	}
	if m.Verification.Model == "" {
		m.Verification = ModelConfig{Model: "gpt-4o-mini", MaxTokens: 800, Temperature: 0.1}
	}
}

func applyThreadDefaults(t *ThreadConfig) {
	if t.MaxSourceChars == 0 {
		t.MaxSourceChars = 6000
	}
	if t.HookCount == 0 {
		t.HookCount = 3
	}
	if t.MaxHashtags == 0 {
		t.MaxHashtags = 2
	}
	if t.CallToAction == "" {
		t.CallToAction = "Full write-up linked below. Thoughts?"
	}
}

func applyValidatorDefaults(v *ValidatorConfig) {
	if v.CharLimit == 0 {
		v.CharLimit = 280
	}
	if v.ShortenedURLLen == 0 {
		v.ShortenedURLLen = 23
	}
	if v.WarnFraction == 0 {
		v.WarnFraction = 0.9
	}
}

func applyPublisherDefaults(p *PublisherConfig) {
	if p.GitHub.BaseBranch == "" {
		p.GitHub.BaseBranch = "main"
	}
	if p.GitHub.WorkspaceDir == "" {
		p.GitHub.WorkspaceDir = "/tmp/threadcast-workspace"
	}
	if p.GitHub.CommitMessage == "" {
		p.GitHub.CommitMessage = "Add thread preview"
	}
	if p.Twitter.BaseURL == "" {
		p.Twitter.BaseURL = "https://api.twitter.com"
	}
	if p.Twitter.Timeout == "" {
		p.Twitter.Timeout = "30s"
	}
	if p.Twitter.MinPostDelay == "" {
		p.Twitter.MinPostDelay = "2s"
	}
	if p.Twitter.MaxRateWait == "" {
		p.Twitter.MaxRateWait = "15m"
	}
	if p.Twitter.RatePerSecond == 0 {
		p.Twitter.RatePerSecond = 1
	}
	if p.Twitter.RateBurst == 0 {
		p.Twitter.RateBurst = 5
	}
}

func applyPipelineDefaults(p *PipelineConfig) {
	if p.StateDir == "" {
		p.StateDir = ".threadcast/records"
	}
	if p.ReportDir == "" {
		p.ReportDir = ".threadcast/reports"
	}
	if p.ItemsFile == "" {
		p.ItemsFile = ".threadcast/items.json"
	}
	if p.Workers == 0 {
		p.Workers = 1
	}
}

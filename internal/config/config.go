package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	kyaml "github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

// EnvPrefix is the prefix for environment overrides. "__" separates nested keys.
const EnvPrefix = "NECRO_"

type Config struct {
	User      User      `koanf:"user" yaml:"user"`
	AI        AI        `koanf:"ai" yaml:"ai"`
	Google    Google    `koanf:"google" yaml:"google"`
	Slack     Slack     `koanf:"slack" yaml:"slack"`
	Figma     Figma     `koanf:"figma" yaml:"figma"`
	GitHub    GitHub    `koanf:"github" yaml:"github"`
	Scraping  Scraping  `koanf:"scraping" yaml:"scraping"`
	Collect   Collect   `koanf:"collect" yaml:"collect"`
	Portfolio Portfolio `koanf:"portfolio" yaml:"portfolio"`
	Features  Features  `koanf:"features" yaml:"features"`
	Output    Output    `koanf:"output" yaml:"output"`
	Server    Server    `koanf:"server" yaml:"server"`
	Deploy    Deploy    `koanf:"deploy" yaml:"deploy"`
	Logging   Logging   `koanf:"logging" yaml:"logging"`

	k *koanf.Koanf
}

type User struct {
	Name  string `koanf:"name" yaml:"name"`
	Email string `koanf:"email" yaml:"email"`
	Title string `koanf:"title" yaml:"title"`
	Bio   string `koanf:"bio" yaml:"bio"`
}

type AI struct {
	Provider       string `koanf:"provider" yaml:"provider"`
	OpenAIModel    string `koanf:"openai_model" yaml:"openai_model"`
	APIKey         string `koanf:"api_key" yaml:"api_key"`
	APIKeyEnv      string `koanf:"api_key_env" yaml:"api_key_env"`
	Model          string `koanf:"model" yaml:"model"`
	OllamaURL      string `koanf:"ollama_url" yaml:"ollama_url"`
	MaxTokens      int    `koanf:"max_tokens" yaml:"max_tokens"`
	TimeoutSeconds int    `koanf:"timeout_seconds" yaml:"timeout_seconds"`
}

type Google struct {
	CredentialsFile string `koanf:"credentials_file" yaml:"credentials_file"`
	TokenFile       string `koanf:"token_file" yaml:"token_file"`
}

type Slack struct {
	Token    string `koanf:"token" yaml:"token"`
	TokenEnv string `koanf:"token_env" yaml:"token_env"`
	UserID   string `koanf:"user_id" yaml:"user_id"`
}

type Figma struct {
	AccessToken    string `koanf:"access_token" yaml:"access_token"`
	AccessTokenEnv string `koanf:"access_token_env" yaml:"access_token_env"`
	TeamID         string `koanf:"team_id" yaml:"team_id"`
}

type GitHub struct {
	Token    string `koanf:"token" yaml:"token"`
	TokenEnv string `koanf:"token_env" yaml:"token_env"`
	Username string `koanf:"username" yaml:"username"`
}

type Scraping struct {
	Email       EmailScraping      `koanf:"email" yaml:"email"`
	Drive       DriveScraping      `koanf:"drive" yaml:"drive"`
	Slack       SlackScraping      `koanf:"slack" yaml:"slack"`
	Figma       FigmaScraping      `koanf:"figma" yaml:"figma"`
	Screenshots ScreenshotScraping `koanf:"screenshots" yaml:"screenshots"`
	Feeds       FeedScraping       `koanf:"feeds" yaml:"feeds"`
	GitHub      GitHubScraping     `koanf:"github" yaml:"github"`
}

type EmailScraping struct {
	Enabled       bool `koanf:"enabled" yaml:"enabled"`
	MaxMessages   int  `koanf:"max_messages" yaml:"max_messages"`
	DateRangeDays int  `koanf:"date_range_days" yaml:"date_range_days"`
}

type DriveScraping struct {
	Enabled  bool `koanf:"enabled" yaml:"enabled"`
	MaxFiles int  `koanf:"max_files" yaml:"max_files"`
}

type SlackScraping struct {
	Enabled     bool `koanf:"enabled" yaml:"enabled"`
	MaxMessages int  `koanf:"max_messages" yaml:"max_messages"`
}

type FigmaScraping struct {
	Enabled     bool `koanf:"enabled" yaml:"enabled"`
	MaxProjects int  `koanf:"max_projects" yaml:"max_projects"`
}

type ScreenshotScraping struct {
	Enabled    bool   `koanf:"enabled" yaml:"enabled"`
	FolderPath string `koanf:"folder_path" yaml:"folder_path"`
}

type FeedScraping struct {
	Enabled  bool   `koanf:"enabled" yaml:"enabled"`
	MaxItems int    `koanf:"max_items" yaml:"max_items"`
	URLs     []Feed `koanf:"urls" yaml:"urls"`
}

type Feed struct {
	URL  string `koanf:"url" yaml:"url"`
	Name string `koanf:"name" yaml:"name"`
}

type GitHubScraping struct {
	Enabled      bool `koanf:"enabled" yaml:"enabled"`
	MaxRepos     int  `koanf:"max_repos" yaml:"max_repos"`
	IncludeForks bool `koanf:"include_forks" yaml:"include_forks"`
}

type Collect struct {
	MaxParallel          int `koanf:"max_parallel" yaml:"max_parallel"`
	SourceTimeoutSeconds int `koanf:"source_timeout_seconds" yaml:"source_timeout_seconds"`
}

type Portfolio struct {
	OutputDir    string `koanf:"output_dir" yaml:"output_dir"`
	Theme        string `koanf:"theme" yaml:"theme"`
	ColorScheme  string `koanf:"color_scheme" yaml:"color_scheme"`
	ItemsPerPage int    `koanf:"items_per_page" yaml:"items_per_page"`
	Precompress  bool   `koanf:"precompress" yaml:"precompress"`
}

type Features struct {
	CustomDomain      string `koanf:"custom_domain" yaml:"custom_domain"`
	CustomBranding    bool   `koanf:"custom_branding" yaml:"custom_branding"`
	AdvancedAnalytics bool   `koanf:"advanced_analytics" yaml:"advanced_analytics"`
	UnlimitedProjects bool   `koanf:"unlimited_projects" yaml:"unlimited_projects"`
	RemoveWatermark   bool   `koanf:"remove_watermark" yaml:"remove_watermark"`
}

type Output struct {
	DataDir string `koanf:"data_dir" yaml:"data_dir"`
}

type Server struct {
	Port     int    `koanf:"port" yaml:"port"`
	Schedule string `koanf:"schedule" yaml:"schedule"`
}

type Deploy struct {
	SFTP SFTP `koanf:"sftp" yaml:"sftp"`
}

type SFTP struct {
	Enabled               bool   `koanf:"enabled" yaml:"enabled"`
	Host                  string `koanf:"host" yaml:"host"`
	Port                  int    `koanf:"port" yaml:"port"`
	User                  string `koanf:"user" yaml:"user"`
	Password              string `koanf:"password" yaml:"password"`
	PasswordEnv           string `koanf:"password_env" yaml:"password_env"`
	KeyFile               string `koanf:"key_file" yaml:"key_file"`
	KnownHostsFile        string `koanf:"known_hosts_file" yaml:"known_hosts_file"`
	InsecureIgnoreHostKey bool   `koanf:"insecure_ignore_host_key" yaml:"insecure_ignore_host_key"`
	RemoteDir             string `koanf:"remote_dir" yaml:"remote_dir"`
}

type Logging struct {
	Level string `koanf:"level" yaml:"level"`
}

// ConfigDir returns the XDG config directory for necromancer.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "necromancer")
}

// DataDir returns the XDG data directory for necromancer.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "necromancer")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/necromancer/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", fmt.Errorf(
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'necromancer init' to create a default config",
		xdgConfig,
	)
}

// LoadDotenv loads KEY=VALUE pairs from .env files into the process environment.
// Missing files are not an error.
func LoadDotenv(paths ...string) {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		_ = godotenv.Load(p)
	}
}

// Load reads a config file layered over the embedded defaults and under
// NECRO_ environment overrides. An empty path loads defaults and env only.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(rawBytes(DefaultConfigYAML), kyaml.Parser()); err != nil {
		return nil, fmt.Errorf("parsing default config: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), kyaml.Parser()); err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}

	return fromKoanf(k)
}

// parse parses YAML bytes layered over the defaults, without environment overrides.
func parse(data []byte) (*Config, error) {
	k := koanf.New(".")
	if err := k.Load(rawBytes(DefaultConfigYAML), kyaml.Parser()); err != nil {
		return nil, fmt.Errorf("parsing default config: %w", err)
	}
	if len(data) > 0 {
		if err := k.Load(rawBytes(data), kyaml.Parser()); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	}
	return fromKoanf(k)
}

func fromKoanf(k *koanf.Koanf) (*Config, error) {
	cfg := &Config{k: k}
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	return cfg, nil
}

// envKey maps NECRO_SCRAPING__EMAIL__MAX_MESSAGES to scraping.email.max_messages.
func envKey(s string) string {
	s = strings.TrimPrefix(s, EnvPrefix)
	s = strings.ToLower(s)
	return strings.ReplaceAll(s, "__", ".")
}

// Get returns the value at a dotted path such as "user.name", or nil.
func (c *Config) Get(key string) any {
	if c.k == nil {
		return nil
	}
	return c.k.Get(key)
}

// GetString returns the value at a dotted path as a string, or fallback.
func (c *Config) GetString(key, fallback string) string {
	if c.k == nil || !c.k.Exists(key) {
		return fallback
	}
	return c.k.String(key)
}

// Set stores a value at a dotted path and refreshes the typed fields.
func (c *Config) Set(key string, value any) error {
	if c.k == nil {
		c.k = koanf.New(".")
		if err := c.k.Load(rawBytes(DefaultConfigYAML), kyaml.Parser()); err != nil {
			return fmt.Errorf("parsing default config: %w", err)
		}
	}
	if err := c.k.Load(nestedMap(key, value), nil); err != nil {
		return fmt.Errorf("setting %s: %w", key, err)
	}
	if err := c.k.UnmarshalWithConf("", c, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return fmt.Errorf("decoding config: %w", err)
	}
	return nil
}

// SetInFile sets one dotted key in the YAML file at path and writes it back.
// Only what the file already holds is written: defaults and environment
// overrides never end up in it. The result must still decode.
func SetInFile(path, key string, value any) error {
	k := koanf.New(".")
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), kyaml.Parser()); err != nil {
			return fmt.Errorf("reading config: %w", err)
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("reading config: %w", err)
	}

	if err := k.Load(nestedMap(key, value), nil); err != nil {
		return fmt.Errorf("setting %s: %w", key, err)
	}

	data, err := yaml.Marshal(k.Raw())
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if _, err := parse(data); err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// GetDataDir returns the effective data directory from config or XDG default.
func (c *Config) GetDataDir() string {
	if c.Output.DataDir != "" {
		return c.Output.DataDir
	}
	return DataDir()
}

// OpenAIKey returns the configured OpenAI key, falling back to the named env var.
func (c *Config) OpenAIKey() string {
	return secret(c.AI.APIKey, c.AI.APIKeyEnv)
}

// SlackToken returns the Slack token from config or its env var.
func (c *Config) SlackToken() string {
	return secret(c.Slack.Token, c.Slack.TokenEnv)
}

// FigmaToken returns the Figma access token from config or its env var.
func (c *Config) FigmaToken() string {
	return secret(c.Figma.AccessToken, c.Figma.AccessTokenEnv)
}

// GitHubToken returns the GitHub token from config or its env var.
func (c *Config) GitHubToken() string {
	return secret(c.GitHub.Token, c.GitHub.TokenEnv)
}

// SFTPPassword returns the SFTP password from config or its env var.
func (c *Config) SFTPPassword() string {
	return secret(c.Deploy.SFTP.Password, c.Deploy.SFTP.PasswordEnv)
}

// AITimeout returns the per-call timeout for the language model.
func (c *Config) AITimeout() time.Duration {
	if c.AI.TimeoutSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(c.AI.TimeoutSeconds) * time.Second
}

// Debug reports whether debug logging is on.
func (c *Config) Debug() bool {
	return strings.EqualFold(c.Logging.Level, "DEBUG")
}

func secret(value, envName string) string {
	if value != "" {
		return value
	}
	if envName == "" {
		return ""
	}
	return os.Getenv(envName)
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}

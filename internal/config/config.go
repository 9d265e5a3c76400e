// Package config provides configuration management for the dev server using
// Viper for flexible loading from files, environment variables and
// command-line flags.
//
// The configuration covers the HTTP and HMR listeners, the project root,
// module resolution (extension probe order and asset extensions), the
// dependency pre-bundle step, file watching and observability settings.
package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultHost         = "localhost"
	DefaultPort         = 3001
	DefaultHMRPort      = 24678
	DefaultPreBundleDir = "node_modules/.modserve"
	DefaultMetricsPath  = "/__modserve/metrics"
	DefaultDebounce     = 50 * time.Millisecond
)

// DefaultExtensions is the probe order for extension-less relative imports.
// The order decides which sibling wins when several exist, so it is part of
// the resolution contract.
var DefaultExtensions = []string{".tsx", ".ts", ".jsx", ".js"}

// DefaultAssetExtensions lists imports that are served as URL modules.
var DefaultAssetExtensions = []string{
	".svg", ".png", ".jpg", ".jpeg", ".gif", ".webp", ".avif", ".ico",
	".woff", ".woff2", ".ttf", ".eot", ".otf",
	".mp4", ".webm", ".ogg", ".mp3", ".wav", ".flac",
	".pdf", ".txt",
}

// DefaultWatchIgnore are directory names never watched.
var DefaultWatchIgnore = []string{"node_modules", ".git"}

type Config struct {
	Server      ServerConfig      `yaml:"server" mapstructure:"server"`
	Root        string            `yaml:"root" mapstructure:"root"`
	Resolve     ResolveConfig     `yaml:"resolve" mapstructure:"resolve"`
	Deps        DepsConfig        `yaml:"deps" mapstructure:"deps"`
	Watch       WatchConfig       `yaml:"watch" mapstructure:"watch"`
	Development DevelopmentConfig `yaml:"development" mapstructure:"development"`
	Metrics     MetricsConfig     `yaml:"metrics" mapstructure:"metrics"`
	Log         LogConfig         `yaml:"log" mapstructure:"log"`
}

type ServerConfig struct {
	Port    int    `yaml:"port" mapstructure:"port"`
	Host    string `yaml:"host" mapstructure:"host"`
	HMRPort int    `yaml:"hmr_port" mapstructure:"hmr_port"`
	Open    bool   `yaml:"open" mapstructure:"open"`
}

type ResolveConfig struct {
	Extensions      []string `yaml:"extensions" mapstructure:"extensions"`
	AssetExtensions []string `yaml:"asset_extensions" mapstructure:"asset_extensions"`
}

type DepsConfig struct {
	PreBundleDir string   `yaml:"pre_bundle_dir" mapstructure:"pre_bundle_dir"`
	Entries      []string `yaml:"entries" mapstructure:"entries"`
	Disabled     bool     `yaml:"disabled" mapstructure:"disabled"`
}

type WatchConfig struct {
	Ignore   []string      `yaml:"ignore" mapstructure:"ignore"`
	Debounce time.Duration `yaml:"debounce" mapstructure:"debounce"`
}

type DevelopmentConfig struct {
	HotReload bool `yaml:"hot_reload" mapstructure:"hot_reload"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Path    string `yaml:"path" mapstructure:"path"`
}

type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Default returns a configuration rooted at root with every default applied.
func Default(root string) (*Config, error) {
	cfg := &Config{Root: root}
	applyDefaults(cfg, func(string) bool { return false })
	if err := finalize(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Load reads the configuration from the global viper instance.
func Load() (*Config, error) {
	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	// Handle slices set via viper (workaround for viper slice handling)
	if viper.IsSet("resolve.extensions") && len(config.Resolve.Extensions) == 0 {
		config.Resolve.Extensions = viper.GetStringSlice("resolve.extensions")
	}
	if viper.IsSet("deps.entries") && len(config.Deps.Entries) == 0 {
		config.Deps.Entries = viper.GetStringSlice("deps.entries")
	}

	// Handle bool settings set via viper (workaround for viper bool handling)
	if viper.IsSet("development.hot_reload") {
		config.Development.HotReload = viper.GetBool("development.hot_reload")
	}
	if viper.IsSet("metrics.enabled") {
		config.Metrics.Enabled = viper.GetBool("metrics.enabled")
	}
	if viper.IsSet("log-level") && config.Log.Level == "" {
		config.Log.Level = viper.GetString("log-level")
	}

	applyDefaults(&config, viper.IsSet)

	// --no-hmr wins over any file setting
	if viper.GetBool("server.no-hmr") {
		config.Development.HotReload = false
	}

	if err := finalize(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func applyDefaults(config *Config, isSet func(string) bool) {
	if config.Server.Host == "" {
		config.Server.Host = DefaultHost
	}
	if config.Server.Port == 0 && !isSet("server.port") {
		config.Server.Port = DefaultPort
	}
	if config.Server.HMRPort == 0 && !isSet("server.hmr_port") {
		config.Server.HMRPort = DefaultHMRPort
	}
	if config.Root == "" {
		config.Root = "."
	}

	if len(config.Resolve.Extensions) == 0 {
		config.Resolve.Extensions = append([]string(nil), DefaultExtensions...)
	}
	if len(config.Resolve.AssetExtensions) == 0 {
		config.Resolve.AssetExtensions = append([]string(nil), DefaultAssetExtensions...)
	}

	if config.Deps.PreBundleDir == "" {
		config.Deps.PreBundleDir = DefaultPreBundleDir
	}
	if len(config.Deps.Entries) == 0 {
		config.Deps.Entries = []string{"index.html"}
	}

	if len(config.Watch.Ignore) == 0 {
		config.Watch.Ignore = append([]string(nil), DefaultWatchIgnore...)
	}
	if config.Watch.Debounce == 0 {
		config.Watch.Debounce = DefaultDebounce
	}

	if !isSet("development.hot_reload") {
		config.Development.HotReload = true
	}
	if !isSet("metrics.enabled") {
		config.Metrics.Enabled = true
	}
	if config.Metrics.Path == "" {
		config.Metrics.Path = DefaultMetricsPath
	}

	if config.Log.Level == "" {
		config.Log.Level = "info"
	}
	if config.Log.Format == "" {
		config.Log.Format = "text"
	}
}

func finalize(config *Config) error {
	root, err := filepath.Abs(config.Root)
	if err != nil {
		return fmt.Errorf("resolving root %q: %w", config.Root, err)
	}
	config.Root = root

	if err := validateConfig(config); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	return nil
}

// Addr is the primary HTTP listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// HMRAddr is the listen address of the HMR transport.
func (c *Config) HMRAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.HMRPort)
}

// PreBundlePath is the absolute pre-bundle output directory.
func (c *Config) PreBundlePath() string {
	return filepath.Join(c.Root, filepath.FromSlash(c.Deps.PreBundleDir))
}

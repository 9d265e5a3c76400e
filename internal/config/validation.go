package config

import (
	"fmt"
	"path/filepath"
	"strings"
)

// validateConfig validates configuration values for correctness
func validateConfig(config *Config) error {
	if err := validateServerConfig(&config.Server); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	if err := validateResolveConfig(&config.Resolve); err != nil {
		return fmt.Errorf("resolve config: %w", err)
	}

	if err := validateDepsConfig(&config.Deps); err != nil {
		return fmt.Errorf("deps config: %w", err)
	}

	switch config.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log format %q is not one of text, json", config.Log.Format)
	}

	return nil
}

func validateServerConfig(config *ServerConfig) error {
	// Allow 0 for system-assigned ports in testing
	if config.Port < 0 || config.Port > 65535 {
		return fmt.Errorf("port %d is not in valid range 0-65535", config.Port)
	}
	if config.HMRPort < 0 || config.HMRPort > 65535 {
		return fmt.Errorf("hmr_port %d is not in valid range 0-65535", config.HMRPort)
	}
	if config.Port != 0 && config.Port == config.HMRPort {
		return fmt.Errorf("port and hmr_port must differ (both %d)", config.Port)
	}

	if strings.ContainsAny(config.Host, ";&|$`()<>\"'\\ ") {
		return fmt.Errorf("host contains invalid characters: %q", config.Host)
	}

	return nil
}

func validateResolveConfig(config *ResolveConfig) error {
	seen := make(map[string]bool, len(config.Extensions))
	for _, ext := range config.Extensions {
		if !strings.HasPrefix(ext, ".") || len(ext) < 2 {
			return fmt.Errorf("extension %q must start with a dot", ext)
		}
		if seen[ext] {
			return fmt.Errorf("extension %q listed twice", ext)
		}
		seen[ext] = true
	}

	for _, ext := range config.AssetExtensions {
		if !strings.HasPrefix(ext, ".") {
			return fmt.Errorf("asset extension %q must start with a dot", ext)
		}
	}

	return nil
}

func validateDepsConfig(config *DepsConfig) error {
	cleanPath := filepath.Clean(config.PreBundleDir)

	if strings.Contains(cleanPath, "..") {
		return fmt.Errorf("pre_bundle_dir contains path traversal: %s", config.PreBundleDir)
	}

	if filepath.IsAbs(cleanPath) {
		return fmt.Errorf("pre_bundle_dir should be relative to root: %s", config.PreBundleDir)
	}

	return nil
}

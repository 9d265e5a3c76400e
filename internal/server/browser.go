package server

import (
	"context"
	"fmt"
	"net/url"
	"os/exec"
	"runtime"
	"strings"
	"time"
)

// validateBrowserURL rejects anything but a plain http(s) URL before it is
// handed to a system command.
func validateBrowserURL(rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("invalid URL scheme: %s (only http/https allowed)", parsed.Scheme)
	}
	if parsed.Host == "" {
		return fmt.Errorf("URL must have a valid hostname")
	}
	if strings.ContainsAny(rawURL, ";&|`$()<>\"'\\ \n\r") {
		return fmt.Errorf("URL contains a shell metacharacter")
	}
	return nil
}

func browserCommand(goos, rawURL string) (*exec.Cmd, error) {
	switch goos {
	case "linux", "freebsd", "openbsd":
		return exec.Command("xdg-open", rawURL), nil
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", rawURL), nil
	case "darwin":
		return exec.Command("open", rawURL), nil
	default:
		return nil, fmt.Errorf("unsupported platform %s", goos)
	}
}

func (s *Server) openBrowser(ctx context.Context, rawURL string) {
	time.Sleep(100 * time.Millisecond)

	if err := validateBrowserURL(rawURL); err != nil {
		s.logger.Warn(ctx, err, "not opening browser")
		return
	}
	cmd, err := browserCommand(runtime.GOOS, rawURL)
	if err == nil {
		err = cmd.Start()
	}
	if err != nil {
		s.logger.Warn(ctx, err, "failed to open browser", "url", rawURL)
	}
}

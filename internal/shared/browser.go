package shared

import (
	"fmt"
	"net/url"
	"os/exec"
	"runtime"
)

var (
	getRuntime   = func() string { return runtime.GOOS }
	startCommand = func(cmd *exec.Cmd) error { return cmd.Start() }
)

// browserCommand returns the platform launcher for target.
func browserCommand(goos, target string) (*exec.Cmd, error) {
	switch goos {
	case "darwin":
		return exec.Command("open", target), nil
	case "linux", "freebsd", "openbsd":
		return exec.Command("xdg-open", target), nil
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", target), nil
	default:
		return nil, fmt.Errorf("unsupported platform: %s", goos)
	}
}

// OpenBrowser opens an authorization page in the default system browser.
//
// Only absolute http and https URLs are accepted. The browser process is not waited on.
func OpenBrowser(target string) error {
	u, err := url.Parse(target)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: refusing to open %q", ErrInvalidArgument, target)
	}

	cmd, err := browserCommand(getRuntime(), u.String())
	if err != nil {
		return err
	}
	if err := startCommand(cmd); err != nil {
		return fmt.Errorf("failed to open browser: %w", err)
	}
	return nil
}

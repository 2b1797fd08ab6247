package shared

import (
	"bytes"
	"errors"
	"os/exec"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
)

func TestParseLevel(t *testing.T) {
	tc := []struct {
		name    string
		input   string
		want    log.Level
		wantErr bool
	}{
		{name: "empty defaults to info", input: "", want: log.InfoLevel},
		{name: "debug", input: "debug", want: log.DebugLevel},
		{name: "mixed case with whitespace", input: "  WARN ", want: log.WarnLevel},
		{name: "error", input: "error", want: log.ErrorLevel},
		{name: "unknown level", input: "chatty", want: log.InfoLevel, wantErr: true},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLevel(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
			if got != tt.want {
				t.Errorf("ParseLevel() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLogger(t *testing.T) {
	t.Run("WithLogger adds key values", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLogger(&buf)
		child := WithLogger(logger, "pass", "abc123")
		child.Info("reconciled")

		if !strings.Contains(buf.String(), "pass=abc123") {
			t.Errorf("expected child logger output to contain pass=abc123, got %q", buf.String())
		}
	})

	t.Run("SetLogLevel filters lower levels", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLogger(&buf)
		SetLogLevel(logger, log.WarnLevel)
		logger.Info("hidden")

		if buf.Len() != 0 {
			t.Errorf("expected no output below warn level, got %q", buf.String())
		}
	})
}

func TestGenerateID(t *testing.T) {
	a := GenerateID()
	b := GenerateID()
	if a == "" || b == "" {
		t.Fatal("expected non-empty IDs")
	}
	if a == b {
		t.Errorf("expected unique IDs, got %s twice", a)
	}
}

func TestGenerateState(t *testing.T) {
	a, err := GenerateState()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	b, _ := GenerateState()

	if len(a) != 43 {
		t.Errorf("expected 43 characters for 32 random bytes, got %d", len(a))
	}
	if a == b {
		t.Error("expected unique state tokens")
	}
}

func TestOpenBrowser(t *testing.T) {
	var started []*exec.Cmd
	origRuntime, origStart := getRuntime, startCommand
	startCommand = func(cmd *exec.Cmd) error {
		started = append(started, cmd)
		return nil
	}
	t.Cleanup(func() { getRuntime, startCommand = origRuntime, origStart })

	t.Run("Launches Platform Opener", func(t *testing.T) {
		for goos, bin := range map[string]string{"darwin": "open", "linux": "xdg-open", "windows": "rundll32"} {
			started = nil
			getRuntime = func() string { return goos }

			if err := OpenBrowser("https://todoist.com/oauth/authorize?state=abc"); err != nil {
				t.Fatalf("%s: expected no error, got %v", goos, err)
			}
			if len(started) != 1 {
				t.Fatalf("%s: expected one command, got %d", goos, len(started))
			}
			args := started[0].Args
			if args[0] != bin || args[len(args)-1] != "https://todoist.com/oauth/authorize?state=abc" {
				t.Errorf("%s: unexpected command %v", goos, args)
			}
		}
	})

	t.Run("Rejects Non HTTP URLs", func(t *testing.T) {
		getRuntime = func() string { return "linux" }
		for _, target := range []string{"file:///etc/passwd", "javascript:alert(1)", "not a url", "https://"} {
			started = nil
			if err := OpenBrowser(target); !errors.Is(err, ErrInvalidArgument) {
				t.Errorf("%q: expected ErrInvalidArgument, got %v", target, err)
			}
			if len(started) != 0 {
				t.Errorf("%q: expected nothing launched", target)
			}
		}
	})

	t.Run("Unsupported Platform", func(t *testing.T) {
		getRuntime = func() string { return "plan9" }
		if err := OpenBrowser("https://todoist.com"); err == nil || !strings.Contains(err.Error(), "unsupported platform") {
			t.Errorf("expected unsupported platform error, got %v", err)
		}
	})

	t.Run("Start Failure", func(t *testing.T) {
		getRuntime = func() string { return "linux" }
		startCommand = func(*exec.Cmd) error { return errors.New("no display") }
		if err := OpenBrowser("https://todoist.com"); err == nil || !strings.Contains(err.Error(), "failed to open browser") {
			t.Errorf("expected start failure, got %v", err)
		}
	})
}

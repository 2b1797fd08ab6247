package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/jellytodo/internal/services"
	"github.com/desertthunder/jellytodo/internal/shared"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	service    services.TaskService
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
}

// RunnerOpts contains configuration options for creating a Runner.
//
// A nil Config is loaded from the --config flag; a nil Service is built from the loaded config.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Service    services.TaskService
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		service:    opts.Service,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		serveCommand, setupCommand, sectionsCommand, replayCommand, mappingsCommand, authCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to configuration file",
		Value:   "config.toml",
	}
}

func logLevelFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "log-level",
		Usage:   "Log level (debug, info, warn, error)",
		Sources: cli.EnvVars("JELLYTODO_LOG_LEVEL"),
	}
}

// todoistFlags are shared by every command that talks to Todoist.
func todoistFlags() []cli.Flag {
	return []cli.Flag{
		configFlag(),
		logLevelFlag(),
		&cli.StringFlag{
			Name:    "api-token",
			Usage:   "Todoist API token",
			Sources: cli.EnvVars("TODOIST_API_KEY"),
		},
		&cli.StringFlag{
			Name:    "project-id",
			Usage:   "Todoist project that holds one section per series",
			Sources: cli.EnvVars("TODOIST_PROJECT_ID"),
		},
	}
}

// loadConfig reads the --config file (defaults when it does not exist), applies flag and
// environment overrides, and sets the log level.
func (r *Runner) loadConfig(cmd *cli.Command) (*shared.Config, error) {
	path := cmd.String("config")

	if r.config == nil {
		if _, err := os.Stat(path); err == nil {
			config, err := shared.LoadConfig(path)
			if err != nil {
				return nil, err
			}
			r.config = config
		} else {
			r.logger.Debug("config file not found, using defaults", "path", path)
			r.config = shared.DefaultConfig()
		}
	}
	if path != "" {
		r.configPath = path
	}

	applyOverrides(cmd, r.config)

	level, err := shared.ParseLevel(r.config.Log.Level)
	if err != nil {
		return nil, err
	}
	shared.SetLogLevel(r.logger, level)

	return r.config, nil
}

// applyOverrides copies non-empty flag values over the file configuration.
//
// Flags a command does not define read as empty and leave the file value alone.
func applyOverrides(cmd *cli.Command, config *shared.Config) {
	if v := strings.TrimSpace(cmd.String("api-token")); v != "" {
		config.Todoist.APIToken = v
	}
	if v := strings.TrimSpace(cmd.String("project-id")); v != "" {
		config.Todoist.ProjectID = v
	}
	if v := strings.TrimSpace(cmd.String("log-level")); v != "" {
		config.Log.Level = v
	}
	if port := cmd.Int("port"); port > 0 {
		config.Server.Port = port
	}
}

// taskService returns the injected service or builds a Todoist client from config.
func (r *Runner) taskService(config *shared.Config) (services.TaskService, error) {
	if r.service != nil {
		return r.service, nil
	}

	svc, err := services.NewTodoistService(services.TodoistOptions{
		Token:      config.Todoist.APIToken,
		BaseURL:    config.Todoist.BaseURL,
		SyncURL:    config.Todoist.SyncURL,
		DueString:  config.Todoist.DueString,
		Timeout:    config.Todoist.Timeout(),
		RateLimit:  config.Todoist.RateLimit,
		HTTPClient: r.httpClient,
	})
	if err != nil {
		return nil, err
	}

	r.service = svc
	return svc, nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

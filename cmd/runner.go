package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/pulse/internal/services"
	"github.com/desertthunder/pulse/internal/shared"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	api        services.Service
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	API        services.Service // built from the configured address when nil
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
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
		api:        opts.API,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		serveCommand, watchCommand, statusCommand, sessionsCommand, historyCommand, setupCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// SetLogger replaces the runner's logger, e.g. to keep log output away from the TUI.
func (r *Runner) SetLogger(l *log.Logger) {
	r.logger = l
}

// loadConfig reads the file named by --config, falling back to defaults when it does not exist,
// then applies any --host, --port and --interval overrides.
func (r *Runner) loadConfig(cmd *cli.Command) error {
	path := cmd.String("config")
	if path == "" {
		path = r.configPath
	}

	config, err := shared.LoadConfig(path)
	switch {
	case errors.Is(err, shared.ErrMissingConfig):
		r.logger.Debug("config file not found, using defaults", "path", path)
		config = shared.DefaultConfig()
	case err != nil:
		return err
	}

	if cmd.IsSet("host") {
		config.Server.Host = cmd.String("host")
	}
	if cmd.IsSet("port") {
		config.Server.Port = int(cmd.Int("port"))
	}
	if cmd.IsSet("interval") {
		config.Session.Interval = cmd.Duration("interval")
	}
	if err := config.Validate(); err != nil {
		return err
	}

	level, err := shared.ParseLogLevel(config.Log.Level)
	if err != nil {
		return err
	}
	if cmd.IsSet("verbose") && cmd.Bool("verbose") {
		level = log.DebugLevel
	}
	shared.SetLogLevel(r.logger, level)

	r.config = config
	r.configPath = path
	return nil
}

// client returns the API client, pointed at --addr or else the configured server address.
func (r *Runner) client(cmd *cli.Command) services.Service {
	if r.api != nil {
		return r.api
	}

	addr := cmd.String("addr")
	if addr == "" {
		host := r.config.Server.Host
		if host == "" || host == "0.0.0.0" || host == "::" {
			host = "127.0.0.1"
		}
		addr = "http://" + net.JoinHostPort(host, strconv.Itoa(r.config.Server.Port))
	}
	r.api = services.NewAPIService(addr, r.httpClient)
	return r.api
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

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}

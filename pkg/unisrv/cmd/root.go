package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/unisrv/unisrv-cli/pkg/system"
	"github.com/unisrv/unisrv-cli/pkg/unisrv/auth"
	"github.com/unisrv/unisrv-cli/pkg/unisrv/config"
	"github.com/unisrv/unisrv-cli/pkg/unisrv/output"
	"go.uber.org/zap"
)

type Config struct {
	ConfigPath   string
	OutputWriter io.Writer
	ErrorWriter  io.Writer
	// Store defaults to the OS keyring.
	Store     auth.Store
	Passwords PasswordReader
	Context   context.Context
}

type runtimeState struct {
	configPath   string
	cfg          *config.Config
	apiHost      string
	outputFormat string
	timeout      time.Duration
	verbose      bool
	writer       io.Writer
	errWriter    io.Writer
	store        auth.Store
	passwords    PasswordReader
	log          *zap.SugaredLogger
}

type runtimeKey struct{}

func DefaultConfig() Config {
	return Config{
		ConfigPath:   config.DefaultConfigPath(),
		OutputWriter: os.Stdout,
		ErrorWriter:  os.Stderr,
	}
}

func NewRootCommand(cfg Config) *cobra.Command {
	rt := &runtimeState{
		configPath: cfg.ConfigPath,
		writer:     cfg.OutputWriter,
		errWriter:  cfg.ErrorWriter,
		store:      cfg.Store,
		passwords:  cfg.Passwords,
	}

	root := &cobra.Command{
		Use:           "unisrv",
		Short:         "Command line interface for the unisrv platform",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if rt.writer == nil {
				rt.writer = os.Stdout
			}
			if rt.errWriter == nil {
				rt.errWriter = os.Stderr
			}
			if rt.configPath == "" {
				rt.configPath = config.DefaultConfigPath()
			}
			if rt.outputFormat == "" {
				rt.outputFormat = os.Getenv("UNISRV_OUTPUT")
			}
			if !rt.verbose {
				rt.verbose = strings.EqualFold(os.Getenv("UNISRV_DEBUG"), "true")
			}
			rt.log = system.NewCLILogger(rt.errWriter, rt.verbose)

			if cmd.Name() == "version" || cmd.Name() == "completion" {
				return nil
			}
			loaded, err := config.Load(rt.configPath)
			if err != nil {
				return err
			}
			rt.cfg = loaded
			return nil
		},
	}

	root.PersistentFlags().StringVar(&rt.configPath, "config", rt.configPath, "Path to config file")
	root.PersistentFlags().StringVar(&rt.apiHost, "api-host", "", "API host override (default from API_HOST or config)")
	root.PersistentFlags().StringVarP(&rt.outputFormat, "output", "o", "", "Output format: table, json, yaml, template=<go template>")
	root.PersistentFlags().DurationVar(&rt.timeout, "timeout", 0, "Request timeout (e.g. 30s)")
	root.PersistentFlags().BoolVarP(&rt.verbose, "verbose", "v", false, "Enable debug logging on stderr")

	base := cfg.Context
	if base == nil {
		base = context.Background()
	}
	root.SetContext(context.WithValue(base, runtimeKey{}, rt))

	root.AddCommand(
		NewLoginCommand(),
		NewLogoutCommand(),
		NewAuthCommand(),
		NewInstanceCommand(),
		NewServiceCommand(),
		NewNetworkCommand(),
		NewHostCommand(),
		NewConfigCommand(),
		NewCompletionCommand(),
		NewVersionCommand(),
	)

	return root
}

func getRuntime(cmd *cobra.Command) (*runtimeState, error) {
	rt, ok := cmd.Context().Value(runtimeKey{}).(*runtimeState)
	if !ok || rt == nil {
		return nil, errors.New("runtime not initialized")
	}
	return rt, nil
}

func (rt *runtimeState) OutputFormat() string {
	if rt.outputFormat != "" {
		return rt.outputFormat
	}
	if rt.cfg != nil && rt.cfg.Settings.OutputFormat != "" {
		return rt.cfg.Settings.OutputFormat
	}
	return string(output.FormatTable)
}

// Timeout returns the per-request timeout: flag, then settings file, then
// the client default.
func (rt *runtimeState) Timeout() time.Duration {
	if rt.timeout > 0 {
		return rt.timeout
	}
	if rt.cfg != nil && rt.cfg.Settings.Timeout != "" {
		if d, err := time.ParseDuration(rt.cfg.Settings.Timeout); err == nil && d > 0 {
			return d
		}
	}
	return 0
}

func (rt *runtimeState) Writer() io.Writer {
	if rt.writer != nil {
		return rt.writer
	}
	return os.Stdout
}

func (rt *runtimeState) ErrWriter() io.Writer {
	if rt.errWriter != nil {
		return rt.errWriter
	}
	return os.Stderr
}

func (rt *runtimeState) Logger() *zap.SugaredLogger {
	if rt.log == nil {
		rt.log = zap.NewNop().Sugar()
	}
	return rt.log
}

func (rt *runtimeState) Store() auth.Store {
	if rt.store == nil {
		rt.store = auth.NewKeyringStore()
	}
	return rt.store
}

func (rt *runtimeState) Passwords() PasswordReader {
	if rt.passwords == nil {
		rt.passwords = NewTerminalPasswordReader(os.Stdin, rt.ErrWriter())
	}
	return rt.passwords
}

// Render writes obj in the selected output format. table draws the
// human-readable form.
func (rt *runtimeState) Render(obj any, table func(w io.Writer)) error {
	format, tmpl, err := output.ParseFormat(rt.OutputFormat())
	if err != nil {
		return err
	}
	switch format {
	case output.FormatTable:
		table(rt.Writer())
		return nil
	case output.FormatTemplate:
		return output.WriteTemplate(rt.Writer(), tmpl, obj)
	default:
		return output.WriteObject(rt.Writer(), format, obj)
	}
}

// Printf writes a human-oriented message. It is suppressed for structured
// output formats so that stdout stays machine readable.
func (rt *runtimeState) Printf(format string, args ...any) {
	if f, _, _ := output.ParseFormat(rt.OutputFormat()); f != output.FormatTable {
		return
	}
	_, _ = fmt.Fprintf(rt.Writer(), format, args...)
}

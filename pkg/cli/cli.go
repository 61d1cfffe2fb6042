package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/iglennon-qualys/ResetAssetGroups/pkg/assetgroup"
	"github.com/iglennon-qualys/ResetAssetGroups/pkg/config"
	"github.com/iglennon-qualys/ResetAssetGroups/pkg/scheduler"
)

// Exit codes not owned by the qualys package.
const (
	ExitOK    = 0
	ExitUsage = 1
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

func usageError(format string, args ...interface{}) *ExitError {
	return &ExitError{Code: ExitUsage, Message: fmt.Sprintf(format, args...)}
}

// Deps are the process-level collaborators; tests replace them.
type Deps struct {
	Stdout       io.Writer
	Stderr       io.Writer
	ReadPassword func(prompt string) (string, error)
	LookupEnv    func(key string) (string, bool)
	// HTTPClient overrides the transport used for Qualys calls.
	HTTPClient *http.Client
}

// DefaultDeps wires the real terminal and environment.
func DefaultDeps() Deps {
	return Deps{
		Stdout:       os.Stdout,
		Stderr:       os.Stderr,
		ReadPassword: TerminalPassword,
		LookupEnv:    os.LookupEnv,
	}
}

func (d Deps) withDefaults() Deps {
	def := DefaultDeps()
	if d.Stdout == nil {
		d.Stdout = def.Stdout
	}
	if d.Stderr == nil {
		d.Stderr = def.Stderr
	}
	if d.ReadPassword == nil {
		d.ReadPassword = def.ReadPassword
	}
	if d.LookupEnv == nil {
		d.LookupEnv = def.LookupEnv
	}
	return d
}

// TerminalPassword prompts on stderr and reads a line from stdin without echo.
func TerminalPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	defer fmt.Fprintln(os.Stderr)
	p, err := term.ReadPassword(int(os.Stdin.Fd()))
	if err != nil {
		return "", err
	}
	return string(p), nil
}

type flags struct {
	user            string
	password        string
	apiURL          string
	proxyEnable     bool
	proxyURL        string
	simulate        bool
	debug           bool
	configPath      string
	impact          string
	continueOnError bool
	every           time.Duration
	reportPath      string
	metricsFile     string
	logLevel        string
	logFormat       string
}

// NewCommand builds the root command.
func NewCommand(deps Deps) *cobra.Command {
	deps = deps.withDefaults()
	f := &flags{}
	cmd := &cobra.Command{
		Use:   "resetassetgroups",
		Short: "Reset the business impact of every Qualys asset group",
		Long: `resetassetgroups lists every asset group in a Qualys subscription and sets
its business impact to Minor (or --impact) unless it already has that value.

Settings not given as flags are read from the environment (QUALYS_USER,
QUALYS_PASSWORD, QUALYS_API_URL, QUALYS_PROXY_ENABLE, QUALYS_PROXY_URL,
RESET_ASSET_GROUPS_DATABASE_URL, RESET_ASSET_GROUPS_S3_*) and then from
--config. Files named .env.local and .env in the working directory are loaded
into the environment at startup, so a user or password set there counts as
specified. Flags take precedence over the environment, and the environment
over the config file.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return execute(cmd.Context(), cmd.Flags(), f, deps)
		},
	}
	cmd.SetOut(deps.Stdout)
	cmd.SetErr(deps.Stderr)
	cmd.CompletionOptions.DisableDefaultCmd = true

	fs := cmd.Flags()
	fs.StringVarP(&f.user, "user", "u", "", "Qualys Username")
	fs.StringVarP(&f.password, "password", "p", "", "Qualys Password (use - for interactive input)")
	fs.StringVarP(&f.apiURL, "api_url", "a", "", "Qualys API URL (e.g. https://qualysapi.qualys.eu)")
	fs.BoolVarP(&f.proxyEnable, "proxy_enable", "P", false, "Enable HTTPS proxy for outgoing connection")
	fs.StringVarP(&f.proxyURL, "proxy_url", "U", "", "HTTPS Proxy address")
	fs.BoolVarP(&f.simulate, "simulate", "s", false, "Simulation mode, do not make changes")
	fs.BoolVarP(&f.debug, "debug", "d", false, "Enable debug output for API calls")
	fs.StringVarP(&f.configPath, "config", "c", "", "Path to a YAML or JSON config file")
	fs.StringVar(&f.impact, "impact", "", "Target business impact (Critical, High, Medium, Low, Minor)")
	fs.BoolVar(&f.continueOnError, "continue-on-error", false, "Attempt every group even after a failed update")
	fs.DurationVar(&f.every, "every", 0, "Repeat the run at this interval until interrupted (0 runs once)")
	fs.StringVar(&f.reportPath, "report", "", "Write a JSON run summary to this path")
	fs.StringVar(&f.metricsFile, "metrics-textfile", "", "Write Prometheus metrics to this node_exporter textfile")
	fs.StringVar(&f.logLevel, "log-level", "", "Log level: debug, info or error")
	fs.StringVar(&f.logFormat, "log-format", "", "Log format: text or json")
	return cmd
}

// Run executes the command with args. Every failure is an *ExitError.
func Run(ctx context.Context, args []string, deps Deps) error {
	cmd := NewCommand(deps)
	cmd.SetArgs(args)
	if err := cmd.ExecuteContext(ctx); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			return exitErr
		}
		return usageError("ERROR: %v", err)
	}
	return nil
}

// merge applies flags the user actually set over cfg.
func (f *flags) merge(fs *pflag.FlagSet, cfg *config.Config) {
	if fs.Changed("user") {
		cfg.Qualys.User = f.user
	}
	if fs.Changed("password") {
		cfg.Qualys.Password = f.password
	}
	if fs.Changed("api_url") {
		cfg.Qualys.APIURL = f.apiURL
	}
	if fs.Changed("proxy_enable") {
		cfg.Qualys.ProxyEnable = f.proxyEnable
	}
	if fs.Changed("proxy_url") {
		cfg.Qualys.ProxyURL = f.proxyURL
	}
	if fs.Changed("simulate") {
		cfg.Remediation.Simulate = f.simulate
	}
	if fs.Changed("debug") {
		cfg.Qualys.Debug = f.debug
	}
	if fs.Changed("impact") {
		cfg.Remediation.Impact = f.impact
	}
	if fs.Changed("continue-on-error") {
		cfg.Remediation.ContinueOnError = f.continueOnError
	}
	if fs.Changed("every") {
		cfg.Scheduler.Enabled = f.every != 0
		cfg.Scheduler.Tick = f.every.String()
	}
	if fs.Changed("report") {
		cfg.Report.Path = f.reportPath
	}
	if fs.Changed("metrics-textfile") {
		cfg.Metrics.Textfile = f.metricsFile
	}
	if fs.Changed("log-level") {
		cfg.Logging.Level = f.logLevel
	} else if cfg.Qualys.Debug {
		cfg.Logging.Level = "debug"
	}
	if fs.Changed("log-format") {
		cfg.Logging.Format = f.logFormat
	}
}

func validate(cfg *config.Config) (assetgroup.Impact, error) {
	q := cfg.Qualys
	switch {
	case strings.TrimSpace(q.User) == "":
		return "", usageError("ERROR: User Not Specified")
	case q.Password == "":
		return "", usageError("ERROR: Password Not Specified")
	case strings.TrimSpace(q.APIURL) == "":
		return "", usageError("ERROR: API URL Not Specified")
	case q.ProxyEnable && strings.TrimSpace(q.ProxyURL) == "":
		return "", usageError("ERROR: Proxy enabled but no proxy address specified")
	}
	target, err := assetgroup.ParseImpact(cfg.Remediation.Impact)
	if err != nil {
		return "", usageError("ERROR: %v", err)
	}
	if cfg.Scheduler.Enabled {
		if _, err := scheduler.New(cfg.Scheduler, nil, nil).Interval(); err != nil {
			return "", usageError("ERROR: %v", err)
		}
	}
	return target, nil
}

// resolvePassword prompts when the configured password is "-".
func resolvePassword(q config.QualysConfig, read func(string) (string, error)) (string, error) {
	if q.Password != "-" {
		return q.Password, nil
	}
	p, err := read(fmt.Sprintf("Enter password for user %s : ", q.User))
	if err != nil {
		return "", usageError("ERROR: could not read password: %v", err)
	}
	return p, nil
}

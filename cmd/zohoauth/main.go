package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/datawire/dlib/dlog"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/waabox/zohoauth/internal/auth"
	"github.com/waabox/zohoauth/internal/config"
	"github.com/waabox/zohoauth/internal/domain"
	"github.com/waabox/zohoauth/internal/region"
	"github.com/waabox/zohoauth/internal/report"
	"github.com/waabox/zohoauth/internal/tui"
)

// version is set at build time via -ldflags "-X main.version=x.y.z".
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCommand(os.Stdout, os.Stderr).ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	clientID     string
	clientSecret string
	scope        string
	server       string
	verbose      bool
	interactive  bool
}

// app holds what a single run needs besides the flags.
// Tests swap resolve and flowOpts to point the flow at a local server.
type app struct {
	stdout   io.Writer
	stderr   io.Writer
	cfg      config.Config
	resolve  func(key string) (string, error)
	flowOpts []auth.Option
}

func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	var opts options
	cmd := &cobra.Command{
		Use:   "zohoauth --client-id ID --client-secret SECRET --scope SCOPES [--server REGION]",
		Short: "Obtain a Zoho refresh token using the OAuth device flow",
		Long: "zohoauth requests a device code from the Zoho accounts server of the chosen region,\n" +
			"asks you to approve it in a browser, and prints the resulting refresh token as\n" +
			"KEY=value lines for the integration server's environment.",
		Args:          cobra.NoArgs,
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.clientID, "client-id", "", "OAuth client ID")
	flags.StringVar(&opts.clientSecret, "client-secret", "", "OAuth client secret")
	flags.StringVar(&opts.scope, "scope", "", "comma-separated scopes (e.g. Site24x7.Admin.Read)")
	flags.StringVar(&opts.server, "server", region.Default,
		fmt.Sprintf("server region, one of: %s", strings.Join(region.Keys(), ", ")))
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")
	flags.BoolVarP(&opts.interactive, "interactive", "i", false, "show an interactive waiting screen")
	for _, name := range []string{"client-id", "client-secret", "scope"} {
		if err := cmd.MarkFlagRequired(name); err != nil {
			panic(err)
		}
	}

	cmd.RunE = func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		logger := logrus.New()
		logger.SetOutput(stderr)
		logger.SetLevel(cfg.Level(opts.verbose))
		ctx := dlog.WithLogger(cmd.Context(), dlog.WrapLogrus(logger))

		a := &app{
			stdout:  stdout,
			stderr:  stderr,
			cfg:     cfg,
			resolve: region.Resolve,
		}
		return a.run(ctx, opts)
	}
	return cmd
}

// run performs one device flow and writes the env block to stdout.
// Prompts, progress and the token summary go to stderr so stdout stays clean
// for redirecting into a .env file.
func (a *app) run(ctx context.Context, opts options) error {
	baseURL, err := a.resolve(opts.server)
	if err != nil {
		return err
	}

	creds := domain.Credentials{
		ClientID:     opts.clientID,
		ClientSecret: opts.clientSecret,
		Scope:        opts.scope,
	}

	attempts := make(chan auth.PollAttempt, 16)
	observe := func(at auth.PollAttempt) {
		if opts.interactive {
			select {
			case attempts <- at:
			default:
			}
			return
		}
		if at.Pending {
			fmt.Fprint(a.stderr, ".")
		}
	}

	flowOpts := []auth.Option{
		auth.WithTimeout(a.cfg.HTTPTimeout),
		auth.WithFallbackInterval(a.cfg.FallbackInterval),
		auth.WithAttemptObserver(observe),
	}
	flow := auth.NewZohoDeviceFlow(creds, baseURL, append(flowOpts, a.flowOpts...)...)

	fmt.Fprintf(a.stderr, "Starting device flow authentication with %s...\n\n", baseURL)
	code, err := flow.RequestCode(ctx)
	if err != nil {
		return fmt.Errorf("requesting device code: %w", err)
	}
	dlog.Debugf(ctx, "device code issued; polling every %s until %s", code.Interval, code.Deadline().Format("15:04:05"))

	var result auth.TokenResult
	if opts.interactive {
		poll := func(ctx context.Context) (auth.TokenResult, error) {
			return flow.PollToken(ctx, code)
		}
		result, err = tui.Run(ctx, code, poll, attempts, a.stderr)
	} else {
		if err := report.WritePrompt(a.stderr, code); err != nil {
			return err
		}
		result, err = flow.PollToken(ctx, code)
		fmt.Fprintln(a.stderr)
	}
	if err != nil {
		return fmt.Errorf("polling for token: %w", err)
	}

	fmt.Fprintln(a.stderr, "Authentication successful!")
	if err := report.WriteSummary(a.stderr, result); err != nil {
		return err
	}
	fmt.Fprintln(a.stderr, "\n=== ENVIRONMENT VARIABLES FOR MCP SERVER ===")
	return report.WriteEnv(a.stdout, report.Env{
		ClientID:         creds.ClientID,
		ClientSecret:     creds.ClientSecret,
		RefreshToken:     result.RefreshToken,
		AccountServerURL: baseURL,
	})
}

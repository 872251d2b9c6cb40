package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alexjbarnes/ioco/internal/api"
	"github.com/alexjbarnes/ioco/internal/config"
	"github.com/alexjbarnes/ioco/internal/logging"
	"github.com/alexjbarnes/ioco/internal/render"
	"github.com/alexjbarnes/ioco/internal/session"
	"github.com/alexjbarnes/ioco/internal/state"
	"github.com/alexjbarnes/ioco/internal/transport"
)

var Version = "dev"

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		usage(os.Stdout)
		return nil
	}

	if args[0] == "version" {
		fmt.Println(Version)
		return nil
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := logging.NewLogger(cfg.Environment)

	if err := logging.InitSentry(cfg.SentryDSN, cfg.Environment, Version); err != nil {
		logger.Warn("failed to initialise sentry", slog.String("error", err.Error()))
	}
	defer logging.FlushSentry()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(cfg, logger, os.Stdin, os.Stdout, os.Stderr)
	if err != nil {
		return err
	}
	defer a.Close()

	return a.dispatch(ctx, args)
}

// app is one CLI invocation: the session stack wired over the
// persisted credential store.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	state  *state.State
	coord  *session.Coordinator
	auth   *session.Authenticator
	api    *api.Client
	out    *render.Renderer
	input  *bufio.Scanner
	stdout io.Writer
	stderr io.Writer
}

func newApp(cfg *config.Config, logger *slog.Logger, stdin io.Reader, stdout, stderr io.Writer) (*app, error) {
	appState, err := state.LoadAt(cfg.StatePath)
	if err != nil {
		return nil, fmt.Errorf("loading state: %w", err)
	}

	coord := session.NewCoordinator(session.New(), appState, session.Options{
		Policy:  session.Policy(cfg.RefreshPolicy),
		Horizon: cfg.RefreshHorizon,
		Logger:  logger,
	})

	wireLog := transport.Logging{Logger: logger}

	httpClient := transport.New(transport.Options{
		Timeout:  cfg.RequestTimeout,
		RetryMax: cfg.HTTPRetryMax,
		Request: []transport.RequestInterceptor{
			transport.Headers{Platform: cfg.Platform},
			transport.RequestID{},
			wireLog,
			coord,
		},
		Response: []transport.ResponseInterceptor{
			coord,
			wireLog,
		},
		Logger: logger,
	})

	client := api.NewClient(httpClient, cfg.APIURL)
	coord.SetRefresher(client)

	a := &app{
		cfg:    cfg,
		logger: logger,
		state:  appState,
		coord:  coord,
		auth:   session.NewAuthenticator(client, coord),
		api:    client,
		out:    render.New(stdout, cfg.OutputFormat),
		input:  bufio.NewScanner(stdin),
		stdout: stdout,
		stderr: stderr,
	}

	if a.auth.Restore() {
		logger.Debug("session restored", slog.String("policy", string(coord.Policy())))
	}

	coord.Session().OnLogout(a.sessionEnded)

	return a, nil
}

// sessionEnded runs when the session is torn down. Forced logouts carry a
// reason and are reported; explicit ones do not.
func (a *app) sessionEnded(reason error) {
	if reason == nil {
		return
	}

	fmt.Fprintln(a.stderr, "session expired, please run `ioco login`")
	logging.Report("session", reason)
}

// Close releases the state database.
func (a *app) Close() error {
	return a.state.Close()
}

func (a *app) dispatch(ctx context.Context, args []string) error {
	cmd, ok := commands[args[0]]
	if !ok {
		usage(a.stderr)
		return fmt.Errorf("unknown command %q", args[0])
	}

	if cmd.auth && !a.coord.Session().Authenticated() {
		return errNotLoggedIn
	}

	err := cmd.run(ctx, a, args[1:])
	if errors.Is(err, errUsage) {
		return fmt.Errorf("%w: ioco %s %s", err, args[0], cmd.args)
	}

	return err
}

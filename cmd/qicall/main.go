// Command qicall talks to a NAOqi robot over qimessaging: it looks services
// up, calls their methods and watches their signals, either one command at
// a time (-e) or interactively on stdin.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/juju/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/EgorLis/qimessaging/internal/config"
	"github.com/EgorLis/qimessaging/internal/console"
	"github.com/EgorLis/qimessaging/internal/logging"
	"github.com/EgorLis/qimessaging/internal/rpclient"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type flags struct {
	configPath  string
	host        string
	debug       bool
	noReconnect bool
	transport   string
	codec       string
	exec        string
}

func parseFlags(args []string) (flags, *pflag.FlagSet, error) {
	var f flags
	flagSet := pflag.NewFlagSet("qicall", pflag.ContinueOnError)
	flagSet.StringVar(&f.configPath, "config", "qicall.toml", "TOML config file; missing is fine")
	flagSet.StringVar(&f.host, "host", "", "robot address, host[:port]")
	flagSet.BoolVar(&f.debug, "debug", false, "log protocol traffic")
	flagSet.BoolVar(&f.noReconnect, "no-reconnect", false, "do not reconnect after the connection drops")
	flagSet.StringVar(&f.transport, "transport", "", "socketio or websocket")
	flagSet.StringVar(&f.codec, "codec", "", "json, cbor or proto (websocket transport only)")
	flagSet.StringVarP(&f.exec, "exec", "e", "", "run one command and exit")
	if err := flagSet.Parse(args); err != nil {
		return flags{}, flagSet, err
	}
	if rest := flagSet.Args(); len(rest) > 0 {
		return flags{}, flagSet, errors.NotValidf("argument %q", rest[0])
	}
	return f, flagSet, nil
}

// loadConfig reads the config file and lets explicitly set flags win.
func loadConfig(f flags, flagSet *pflag.FlagSet) (config.Config, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return config.Config{}, errors.Trace(err)
	}
	if flagSet.Changed("host") {
		cfg.Host = strings.TrimSpace(f.host)
	}
	if flagSet.Changed("debug") {
		cfg.Debug = f.debug
	}
	if flagSet.Changed("no-reconnect") {
		cfg.Reconnect = !f.noReconnect
	}
	if flagSet.Changed("transport") {
		cfg.Transport = strings.ToLower(strings.TrimSpace(f.transport))
	}
	if flagSet.Changed("codec") {
		cfg.Codec = strings.ToLower(strings.TrimSpace(f.codec))
	}
	return cfg, errors.Trace(cfg.Validate())
}

func run(args []string) error {
	f, flagSet, err := parseFlags(args)
	if err == pflag.ErrHelp {
		return nil
	}
	if err != nil {
		return err
	}
	cfg, err := loadConfig(f, flagSet)
	if err != nil {
		return err
	}
	log := logging.New(os.Stderr, cfg.Debug)

	ctx, stop := signal.NotifyContext(context.Background(), shutdownSignals...)
	defer stop()

	tr, err := cfg.NewTransport(log)
	if err != nil {
		return errors.Trace(err)
	}

	var con *console.Console
	connected := make(chan struct{}, 1)
	session, err := rpclient.New(rpclient.Options{
		Host:          cfg.Host,
		Debug:         cfg.Debug,
		Reconnect:     cfg.Reconnect,
		Logger:        &log,
		ManualConnect: true,
		OnConnect: func(s *rpclient.Session) {
			log.Info().Str("host", cfg.Host).Msg("connected")
			select {
			case connected <- struct{}{}:
			default:
			}
		},
		OnDisconnect: func(reason string) {
			log.Warn().Str("reason", reason).Msg("disconnected")
			con.Reset()
		},
		OnError: func(err error) {
			log.Error().Err(err).Msg("session error")
		},
	}, tr)
	if err != nil {
		return errors.Trace(err)
	}
	con = console.New(session, os.Stdout)
	if err := session.Connect(ctx); err != nil {
		return errors.Trace(err)
	}
	defer session.Disconnect()

	if err := waitConnected(ctx, connected, cfg.ConnectTimeout); err != nil {
		return errors.Annotatef(err, "connecting to %s", cfg.Host)
	}
	if f.exec != "" {
		return con.HandleCommand(ctx, f.exec)
	}
	return interactive(ctx, log, session, con)
}

func waitConnected(ctx context.Context, connected <-chan struct{}, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	select {
	case <-connected:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(timeout):
		return errors.Timeoutf("connect")
	}
}

// interactive runs the console on stdin until EOF or a shutdown signal.
func interactive(ctx context.Context, log zerolog.Logger, session *rpclient.Session, con *console.Console) error {
	ctx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		fmt.Fprintln(os.Stderr, `type "help" for commands`)
		return con.Run(gctx, os.Stdin)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Debug().Stringer("state", session.State()).Msg("shutting down")
		session.Disconnect()
		return nil
	})
	return g.Wait()
}

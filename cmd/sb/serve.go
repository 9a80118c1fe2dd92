package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/zulandar/signalbox/internal/config"
	"github.com/zulandar/signalbox/internal/logging"
	"github.com/zulandar/signalbox/internal/server"
	"github.com/zulandar/signalbox/internal/telegraph"
	discordadapter "github.com/zulandar/signalbox/internal/telegraph/discord"
	slackadapter "github.com/zulandar/signalbox/internal/telegraph/slack"
)

func newServeCmd() *cobra.Command {
	var (
		configPath string
		port       int
		noChat     bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and chat bridge",
		Long: "Starts the request API, storage health checks, the enrichment worker and, when\n" +
			"telegraph.platform is set, the chat bridge. The config file is watched and\n" +
			"reloaded on change.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cmd.OutOrStdout(), cmd.ErrOrStderr(), configPath, port, noChat)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Signalbox config file")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "HTTP port (overrides server.port)")
	cmd.Flags().BoolVar(&noChat, "no-chat", false, "do not start the chat bridge")
	return cmd
}

func runServe(ctx context.Context, out, logOut io.Writer, configPath string, port int, noChat bool) error {
	a, err := openApp(configPath, logOut)
	if err != nil {
		return err
	}
	defer a.Close()
	if err := a.buildEngine(); err != nil {
		return err
	}

	cfg := a.cfg.Current()
	if port <= 0 {
		port = cfg.Server.Port
	}

	a.cfg.OnChange(func(c *config.Config) {
		if err := a.pool.SetOrder(c.Storage.Order()); err != nil {
			a.log.Warn("storage order not applied", "error", err)
		}
		a.log.Info("config reloaded", "path", configPath)
	})
	a.cfg.OnError(func(err error) {
		a.log.Warn("config reload rejected, keeping previous", "error", err)
	})

	srv, err := server.New(server.Options{
		Answerer: a.engine,
		Health:   a.pool,
		Traces:   a.memory,
		Metrics:  a.metrics,
		Port:     port,
		Logger:   a.log.With("component", "server"),
		Out:      out,
	})
	if err != nil {
		return err
	}

	var daemon *telegraph.Daemon
	if cfg.Telegraph.Platform != "" && !noChat {
		adapter, err := createAdapter(cfg, a.log)
		if err != nil {
			return err
		}
		daemon, err = telegraph.NewDaemon(telegraph.DaemonOpts{
			Adapter:  adapter,
			Answerer: a.engine,
			Health:   a.pool,
			Digest:   cfg.Telegraph.Digest,
			Source:   a.memory,
			Logger:   a.log.With("component", "telegraph"),
			Out:      out,
		})
		if err != nil {
			return err
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	errCh := make(chan error, 5)
	run := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(ctx); err != nil && !errors.Is(err, context.Canceled) {
				errCh <- fmt.Errorf("%s: %w", name, err)
				cancel()
			}
		}()
	}

	run("storage health", func(ctx context.Context) error {
		return a.pool.Run(ctx, cfg.Storage.HealthInterval())
	})
	run("config watch", a.cfg.Watch)
	run("enrichment", a.queue.Run)
	run("server", srv.Run)
	if daemon != nil {
		run("telegraph", daemon.Run)
	}

	<-ctx.Done()
	wg.Wait()

	a.flushEnrichment(out)

	close(errCh)
	var errs []error
	for err := range errCh {
		errs = append(errs, err)
	}
	fmt.Fprintln(out, "Signalbox stopped.")
	return errors.Join(errs...)
}

// createAdapter builds a platform adapter from the config.
func createAdapter(cfg *config.Config, log logging.Logger) (telegraph.Adapter, error) {
	switch cfg.Telegraph.Platform {
	case "slack":
		return slackadapter.New(slackadapter.AdapterOpts{
			AppToken:  cfg.Telegraph.Slack.AppToken,
			BotToken:  cfg.Telegraph.Slack.BotToken,
			ChannelID: cfg.Telegraph.Channel,
			Logger:    log,
		})
	case "discord":
		return discordadapter.New(discordadapter.AdapterOpts{
			BotToken:  cfg.Telegraph.Discord.BotToken,
			ChannelID: cfg.Telegraph.Channel,
			Logger:    log,
		})
	default:
		return nil, fmt.Errorf("telegraph: unsupported platform %q", cfg.Telegraph.Platform)
	}
}

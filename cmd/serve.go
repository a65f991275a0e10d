package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/athena-engine/athena/internal/app"
	"github.com/athena-engine/athena/internal/metrics"
	"github.com/athena-engine/athena/internal/server"
	"github.com/athena-engine/athena/internal/telemetry"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"s"},
	Short:   "Start the engine",
	Long: `Start accepting connections and answering them with the configured pages.

Connections are handled by a fixed worker pool (--mode pool) or by one
goroutine per connection (--mode spawn). The engine stops on SIGINT or
SIGTERM after in-flight connections finish.

Examples:
  athena serve                         # Serve using .athena.yml
  athena serve --port 8080 --mode spawn
  athena serve --workers 8 --admin     # Larger pool plus the admin endpoint`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

// serveFlags maps serve flags to configuration keys.
var serveFlags = map[string]string{
	"host":       "server.host",
	"port":       "server.port",
	"mode":       "server.mode",
	"workers":    "server.workers",
	"queue-size": "server.queue_size",
	"read-mode":  "server.read_mode",
	"template":   "template.enabled",
	"watch":      "pages.watch",
	"admin":      "admin.enabled",
	"admin-port": "admin.port",
	"telemetry":  "telemetry.enabled",
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("host", "127.0.0.1", "Host to bind to")
	serveCmd.Flags().IntP("port", "p", 7878, "Port to serve on")
	serveCmd.Flags().StringP("mode", "m", string(server.ModePool), "Scheduling mode (pool, spawn)")
	serveCmd.Flags().IntP("workers", "w", server.DefaultWorkers, "Worker count in pool mode")
	serveCmd.Flags().Int("queue-size", server.DefaultQueueSize, "Pending connections the pool may queue (0 for unbounded)")
	serveCmd.Flags().String("read-mode", string(server.ReadBuffer), "Request read strategy (buffer, lines)")
	serveCmd.Flags().Bool("template", true, "Expand <#> template markers")
	serveCmd.Flags().Bool("watch", false, "Reload pages when their files change")
	serveCmd.Flags().Bool("admin", false, "Start the admin HTTP endpoint")
	serveCmd.Flags().Int("admin-port", 7879, "Port for the admin endpoint")
	serveCmd.Flags().Bool("telemetry", false, "Install OpenTelemetry providers")

	if err := bindFlags(viper.GetViper(), serveCmd.Flags(), serveFlags); err != nil {
		panic(err)
	}
}

// bindFlags binds each named flag to its configuration key.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet, keys map[string]string) error {
	names := make([]string, 0, len(keys))
	for name := range keys {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		flag := flags.Lookup(name)
		if flag == nil {
			return fmt.Errorf("unknown flag %q", name)
		}
		if err := v.BindPFlag(keys[name], flag); err != nil {
			return fmt.Errorf("binding --%s: %w", name, err)
		}
	}
	return nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.Logging, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	_, shutdownTelemetry, err := telemetry.Setup(ctx, cfg.Telemetry.Telemetry())
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), app.ShutdownTimeout)
		defer cancel()
		if err := shutdownTelemetry(flushCtx); err != nil {
			logger.Warn(flushCtx, err, "Telemetry shutdown failed")
		}
	}()

	recorder, err := metrics.NewGlobal()
	if err != nil {
		return err
	}

	engine, err := app.New(cfg, app.WithLogger(logger), app.WithMetrics(recorder))
	if err != nil {
		return err
	}

	if err := engine.Run(ctx); err != nil {
		return err
	}
	logger.Info(context.Background(), "Engine stopped")
	return nil
}

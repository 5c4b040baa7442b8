package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/coregx/quarry/internal/config"
	"github.com/coregx/quarry/internal/conn"
	"github.com/coregx/quarry/internal/core"
	"github.com/coregx/quarry/internal/dialects"
	"github.com/coregx/quarry/internal/logger"
)

type pingOptions struct {
	file       string
	envFiles   []string
	connection string
	timeout    time.Duration
	verbose    bool
}

// NewPingCommand creates the ping command.
func NewPingCommand() *cobra.Command {
	var o pingOptions

	cmd := &cobra.Command{
		Use:   "ping [connection]",
		Short: "Connect to a configured database and check it responds",
		Long: `Load database.<connection> from a config file, .env files and QUARRY_
environment variables, open the master connection and ping it.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				o.connection = args[0]
			}
			return runPing(cmd, o)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&o.file, "config", "c", "", "config file (yaml, json or toml)")
	f.StringArrayVar(&o.envFiles, "env-file", []string{".env"}, "dotenv file (repeatable)")
	f.DurationVar(&o.timeout, "timeout", 5*time.Second, "ping timeout")
	f.BoolVar(&o.verbose, "verbose", false, "log connection events")

	return cmd
}

func runPing(cmd *cobra.Command, o pingOptions) error {
	opts := []config.Option{config.WithEnvFiles(o.envFiles...)}
	if o.file != "" {
		opts = append(opts, config.WithFile(o.file))
	}
	provider, err := config.Load(opts...)
	if err != nil {
		return err
	}
	cfg, err := provider.Connection(o.connection)
	if err != nil {
		return err
	}

	var dbOpts []core.Option
	if o.verbose {
		zl, err := zap.NewDevelopment()
		if err != nil {
			return err
		}
		zlog := logger.NewZapAdapter(zl)
		defer func() { _ = zlog.Sync() }()
		dbOpts = append(dbOpts, core.WithLogger(zlog))
	}

	db, err := core.Open(cfg, dbOpts...)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	ctx, cancel := context.WithTimeout(cmd.Context(), o.timeout)
	defer cancel()

	start := time.Now()
	if err := db.Ping(ctx); err != nil {
		return fmt.Errorf("ping %s: %w", describe(cfg), err)
	}

	w := cmd.OutOrStdout()
	success.Fprint(w, "OK ")
	fmt.Fprintf(w, "%s in %s\n", describe(cfg), time.Since(start).Round(time.Millisecond))
	return nil
}

func describe(cfg conn.Config) string {
	hosts := make([]string, 0, len(cfg.Hosts()))
	for _, h := range cfg.Hosts() {
		if h.Name != "" {
			hosts = append(hosts, h.Addr())
		}
	}
	if len(hosts) == 0 {
		return cfg.Type + " " + cfg.Database
	}
	return cfg.Type + " " + cfg.Database + "@" + strings.Join(hosts, ",")
}

// NewDriversCommand creates the drivers command.
func NewDriversCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "drivers",
		Short: "List registered connection types and SQL dialects",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			w := cmd.OutOrStdout()
			printSection(w, "Connection types", strings.Join(conn.Drivers(), ", "))
			printSection(w, "Dialects", strings.Join(dialects.Names(), ", "))
		},
	}
}

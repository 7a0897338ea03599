package main

import (
	"context"
	"fmt"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/armandparker/cachesrv/internal/config"
	"github.com/armandparker/cachesrv/internal/server"
	"github.com/armandparker/cachesrv/internal/store"
)

// version is set during build with -ldflags.
var version = "dev"

var rootCmd = &cobra.Command{
	Use:     "cachesrv",
	Short:   "cachesrv - an in-memory key/value cache speaking a memcached binary-protocol subset",
	Version: version,
	RunE:    runServer,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the effective configuration and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		fmt.Println(cfg.String())
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("cachesrv %s\n", version)
		fmt.Printf("Built with Go %s\n", runtime.Version())
		fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	},
}

func init() {
	rootCmd.PersistentFlags().StringP("host", "H", "", "Host to bind to (default: all interfaces)")
	rootCmd.PersistentFlags().IntP("port", "p", 11211, "Port to listen on")
	rootCmd.PersistentFlags().Int64("limit", 0, "Cache byte budget; 0 disables the limit")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug-level logging")

	viper.BindPFlag("host", rootCmd.PersistentFlags().Lookup("host"))
	viper.BindPFlag("port", rootCmd.PersistentFlags().Lookup("port"))
	viper.BindPFlag("limit", rootCmd.PersistentFlags().Lookup("limit"))
	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))

	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	log, err := newLogger(cfg.Verbose)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer log.Sync()

	log.Info("starting cachesrv", zap.String("version", version), zap.String("config", cfg.String()))

	st := store.New(cfg.Limit)
	srv := server.New(st, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	return srv.Serve(ctx, addr)
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.DisableStacktrace = true
	return cfg.Build()
}

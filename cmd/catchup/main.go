// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/bureau-foundation/catchup/lib/config"
	"github.com/bureau-foundation/catchup/lib/version"
)

// shutdownGrace bounds how long the query API waits for open requests.
const shutdownGrace = 10 * time.Second

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "catchup: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	configPath  string
	envFile     string
	verbose     bool
	showVersion bool
}

func parseFlags(args []string) (options, error) {
	var opts options
	flags := pflag.NewFlagSet("catchup", pflag.ContinueOnError)
	flags.StringVarP(&opts.configPath, "config", "c", "", "path to the configuration file (default $"+config.EnvConfig+")")
	flags.StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before the configuration, if it exists")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "log at debug level")
	flags.BoolVar(&opts.showVersion, "version", false, "print version information and exit")
	if err := flags.Parse(args); err != nil {
		return opts, err
	}
	if flags.NArg() > 0 {
		return opts, fmt.Errorf("unexpected arguments: %v", flags.Args())
	}
	return opts, nil
}

func run(args []string) error {
	opts, err := parseFlags(args)
	if errors.Is(err, pflag.ErrHelp) {
		return nil
	}
	if err != nil {
		return err
	}
	if opts.showVersion {
		fmt.Println(version.Full())
		return nil
	}

	if opts.envFile != "" {
		if err := godotenv.Load(opts.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("loading %s: %w", opts.envFile, err)
		}
	}

	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return err
	}
	logger, err := newLogger(os.Stderr, cfg.Log.Level, opts.verbose)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	agent, err := build(ctx, cfg, nil, logger)
	if err != nil {
		return err
	}
	defer agent.close(logger)

	if err := agent.monitor.CheckMembership(ctx); err != nil {
		logger.Warn("membership check failed", "error", err)
	}

	logger.Info("catchup running",
		"version", version.Info(),
		"user_id", cfg.Matrix.UserID,
		"rooms", len(cfg.Rooms),
		"features", len(cfg.Features),
		"api", cfg.API.Listen,
	)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return agent.monitor.Run(groupCtx)
	})
	if agent.api != nil {
		listener, err := net.Listen("tcp", cfg.API.Listen)
		if err != nil {
			stop()
			_ = group.Wait()
			return fmt.Errorf("query API: %w", err)
		}
		server := &http.Server{
			Handler:           agent.api,
			ReadHeaderTimeout: 10 * time.Second,
			BaseContext:       func(net.Listener) context.Context { return groupCtx },
		}
		group.Go(func() error {
			if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("query API: %w", err)
			}
			return nil
		})
		group.Go(func() error {
			<-groupCtx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		})
		logger.Info("query API listening", "address", listener.Addr().String())
	}

	err = group.Wait()
	logger.Info("shutting down, waiting for in-flight notifications")
	agent.debouncer.Wait()
	return err
}

// loadConfig reads the file named by --config, falling back to
// CATCHUP_CONFIG, and validates it.
func loadConfig(path string) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if path != "" {
		cfg, err = config.LoadFile(path)
	} else {
		cfg, err = config.Load()
	}
	if errors.Is(err, config.ErrNoConfig) {
		return nil, fmt.Errorf("no configuration: pass --config or set %s", config.EnvConfig)
	}
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

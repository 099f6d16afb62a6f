package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/FACorreiaa/bankconnect-go/internal/cli"
	"github.com/FACorreiaa/bankconnect-go/pkg/apperror"
	"github.com/FACorreiaa/bankconnect-go/pkg/config"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	envFile := flag.String("env", ".env", "optional env file")
	flag.Usage = func() { printError("%s", cli.Usage()) }
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		printError("Error: %v\n", err)
		os.Exit(1)
	}

	logger := cli.NewLogger(os.Stderr, cfg.Observability.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := cli.InitDependencies(cfg, logger)
	if err != nil {
		logger.Error("failed to initialize dependencies", "error", err)
		os.Exit(1)
	}

	if cfg.Observability.MetricsEnabled {
		go func() {
			if err := deps.ServeMetrics(ctx); err != nil {
				logger.Error("metrics server failed", "error", err)
			}
		}()
	}

	if err := cli.NewApp(deps, os.Stdout).Execute(ctx, flag.Args()); err != nil {
		if errors.Is(err, cli.ErrUsage) {
			printError("Error: %v\n", err)
			os.Exit(2)
		}
		logger.Error("command failed",
			"kind", apperror.KindOf(err).String(),
			"error", err,
		)
		os.Exit(1)
	}
}

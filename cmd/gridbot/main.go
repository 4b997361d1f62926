package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/yuggg-cyber/ritmex-bot-sub001/internal/app"

	_ "net/http/pprof" // profiling endpoint on localhost only
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml (default: configs/config.yaml)")
	pprofAddr := flag.String("pprof", "", "pprof listen address, e.g. localhost:6060 (disabled when empty)")
	flag.Parse()

	if *pprofAddr != "" {
		go func() {
			slog.Info("PPROF_LISTENING", slog.String("addr", *pprofAddr))
			if err := http.ListenAndServe(*pprofAddr, nil); err != nil {
				slog.Error("PPROF_FAILED", slog.Any("error", err))
			}
		}()
	}

	bootstrap := app.NewBootstrap()
	if err := bootstrap.Initialize(*configPath); err != nil {
		slog.Error("BOOTSTRAP_FAILED", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bootstrap.Run(ctx)
}

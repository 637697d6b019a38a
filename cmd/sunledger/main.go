package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/levenlabs/go-lflag"
	"github.com/levenlabs/go-llog"
	"github.com/sunledger/sunledger/pkg/log"
	"github.com/sunledger/sunledger/pkg/payment"
	"github.com/sunledger/sunledger/pkg/server"
	"github.com/sunledger/sunledger/pkg/solarpanel"
	"github.com/sunledger/sunledger/pkg/storage"
	"github.com/sunledger/sunledger/pkg/syncer"
)

func main() {
	// init packages
	db := storage.Configured()
	provider := solarpanel.Configured()
	sy := syncer.Configured(db, provider)
	payments := payment.Configured()

	// init server
	srv := server.Configured(db, sy, payments)

	// parse flags
	lflag.Configure()

	var level slog.Level
	// lflag sets llog's level, mirror it onto slog
	switch llog.GetLevel() {
	case llog.DebugLevel:
		level = slog.LevelDebug
	case llog.InfoLevel:
		level = slog.LevelInfo
	case llog.WarnLevel:
		level = slog.LevelWarn
	case llog.ErrorLevel:
		level = slog.LevelError
	default:
		panic(fmt.Errorf("unknown log level: %s", llog.GetLevel().String()))
	}
	log.SetDefaultLogLevel(level)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	log.Ctx(ctx).DebugContext(ctx, "logger configured", slog.String("level", level.String()))
	log.Ctx(ctx).InfoContext(ctx, "starting sunledger", slog.String("syncMode", string(sy.Mode())))

	defer func() {
		if err := db.Close(); err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "failed to close storage", slog.Any("error", err))
		}
	}()

	// blocks until the context is canceled
	if err := srv.Run(ctx); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "server failed", slog.Any("error", err))
		os.Exit(1)
	}
	log.Ctx(ctx).InfoContext(ctx, "server exited cleanly")
}

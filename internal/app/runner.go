package app

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"go.uber.org/dig"

	"github.com/yitethio/liyt-driver/internal/logx"
	"github.com/yitethio/liyt-driver/internal/mockapi"
)

// MustRun starts the HTTP server using the provided DI container.
func MustRun(container *dig.Container) {
	if err := run(container); err != nil {
		switch {
		case errors.Is(err, context.Canceled):
			log.Println("shutdown requested, exiting")
			return
		case errors.Is(err, context.DeadlineExceeded):
			log.Println("startup aborted: startup timeout exceeded")
			return
		default:
			log.Fatalf("run error: %v", err)
		}
	}
}

func run(container *dig.Container) error {
	return container.Invoke(func(server *http.Server, ctx context.Context, store *mockapi.Store, logger logx.Logger) error {
		startServer(server, logger)
		waitForShutdown(ctx, logger)
		gracefulShutdown(server, logger, 15*time.Second)
		closeResources(store, server, logger)
		return nil
	})
}

func startServer(server *http.Server, logger logx.Logger) {
	go func() {
		logger.Info("mockapi listening", logx.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen error: %v", err)
		}
	}()
}

func waitForShutdown(ctx context.Context, logger logx.Logger) {
	<-ctx.Done()
	logger.Info("shutting down mockapi")
}

func gracefulShutdown(srv *http.Server, logger logx.Logger, timeout time.Duration) {
	shCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(shCtx); err != nil {
		logger.Error("graceful shutdown", logx.Err(err))
	}
}

func closeResources(store *mockapi.Store, server *http.Server, logger logx.Logger) {
	if err := server.Close(); err != nil {
		logger.Error("server close", logx.Err(err))
	}
	if err := store.Close(); err != nil {
		logger.Error("store close", logx.Err(err))
	}
}

// Package app wires the mock API server together and runs it.
package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"go.uber.org/dig"

	"github.com/yitethio/liyt-driver/internal/config"
	"github.com/yitethio/liyt-driver/internal/logx"
	"github.com/yitethio/liyt-driver/internal/mockapi"
)

// ContainerBuilder is a dig container builder.
type ContainerBuilder struct {
	openStore func(string) (*mockapi.Store, error)
	logFatalf func(string, ...interface{})
}

// NewContainerBuilder returns a new dig container builder.
func NewContainerBuilder() *ContainerBuilder {
	return &ContainerBuilder{
		openStore: mockapi.NewStore,
		logFatalf: log.Fatalf,
	}
}

// WithOpenStore sets the store constructor; tests substitute one that
// opens a throwaway database.
func (b *ContainerBuilder) WithOpenStore(fn func(string) (*mockapi.Store, error)) *ContainerBuilder {
	if fn != nil {
		b.openStore = fn
	}
	return b
}

// WithLogFatalf sets the log.Fatalf function.
func (b *ContainerBuilder) WithLogFatalf(fn func(string, ...interface{})) *ContainerBuilder {
	if fn != nil {
		b.logFatalf = fn
	}
	return b
}

// MustBuild builds and returns a new dig container.
func (b *ContainerBuilder) MustBuild(ctx context.Context) *dig.Container {
	container, err := b.build(ctx)
	if err != nil {
		b.logFatalf("failed to build container: %v", err)
	}
	return container
}

func (b *ContainerBuilder) build(ctx context.Context) (*dig.Container, error) {
	container := dig.New()

	if err := registerCore(container, ctx); err != nil {
		return nil, fmt.Errorf("core: %w", err)
	}
	if err := registerStore(container, b.openStore); err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}
	if err := registerHTTP(container); err != nil {
		return nil, fmt.Errorf("http: %w", err)
	}
	return container, nil
}

// MustBuildContainer builds and returns a new dig container.
func MustBuildContainer(ctx context.Context) *dig.Container {
	return NewContainerBuilder().MustBuild(ctx)
}

func provideAll(container *dig.Container, providers ...any) error {
	for _, provider := range providers {
		if err := container.Provide(provider); err != nil {
			return fmt.Errorf("provide %T: %w", provider, err)
		}
	}
	return nil
}

func registerCore(container *dig.Container, ctx context.Context) error {
	return provideAll(container,
		func() context.Context { return ctx },
		config.Load,
		NewLogger,
	)
}

func registerStore(container *dig.Container, openStore func(string) (*mockapi.Store, error)) error {
	return provideAll(container,
		func(ctx context.Context, cfg *config.Config, logger logx.Logger) (*mockapi.Store, error) {
			store, err := openStore(cfg.MockAPI.DBPath)
			if err != nil {
				return nil, err
			}
			if err := mockapi.Seed(ctx, store, logger); err != nil {
				store.Close()
				return nil, err
			}
			return store, nil
		},
	)
}

func registerHTTP(container *dig.Container) error {
	serverProvider := func(cfg *config.Config, mux http.Handler) *http.Server {
		return &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.MockAPI.Port),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      15 * time.Second,
			IdleTimeout:       60 * time.Second,
		}
	}
	return provideAll(container,
		func(cfg *config.Config) (*mockapi.Issuer, error) {
			return mockapi.NewIssuer(cfg.MockAPI.JWTSecret, cfg.MockAPI.AccessTTL, cfg.MockAPI.RefreshTTL)
		},
		mockapi.NewHandlers,
		mockapi.NewRouter,
		serverProvider,
	)
}

package cliapp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

type Service interface {
	Name() string
	Setup(ctx context.Context, deps *Dependencies) error
	Run(ctx context.Context) error
	Close(ctx context.Context) error
}

// Listener is a service that binds a port once running. Ready is closed after
// the bind, or right away when the service is disabled.
type Listener interface {
	Service
	BoundAddr() string
	Ready() <-chan struct{}
}

// Register adds a service to the server.
// Services are setup in registration order and closed in reverse order.
func (ms *Server) Register(svc Service) {
	ms.services = append(ms.services, svc)
}

func (ms *Server) SetupServices(ctx context.Context) error {
	for _, svc := range ms.services {
		start := time.Now()
		if err := svc.Setup(ctx, ms.deps); err != nil {
			return fmt.Errorf("service %s setup failed: %w", svc.Name(), err)
		}
		ms.logger.Debug("[xlogview.cliapp]",
			slog.String("event_type", "service.setup.completed"),
			slog.String("service", svc.Name()),
			slog.Duration("took", time.Since(start)))
	}
	return nil
}

// RunServices runs every service until ctx is cancelled or one of them fails.
func (ms *Server) RunServices(ctx context.Context) error {
	g, groupCtx := errgroup.WithContext(ctx)

	for _, svc := range ms.services {
		g.Go(func() error {
			err := svc.Run(groupCtx)
			if err != nil && !errors.Is(err, context.Canceled) {
				ms.logger.Error("[xlogview.cliapp]",
					slog.String("event_type", "service.run.error"),
					slog.String("service", svc.Name()),
					slog.Any("error", err))
			}
			return err
		})
	}

	go ms.announceListeners(groupCtx)
	return g.Wait()
}

// announceListeners logs the bound address of every listener once all of
// them are ready.
func (ms *Server) announceListeners(ctx context.Context) {
	attrs := []any{
		slog.String("event_type", "server.ready"),
		slog.String("wal_dir", ms.cfg.WalDir),
	}
	for _, svc := range ms.services {
		l, ok := svc.(Listener)
		if !ok {
			continue
		}
		select {
		case <-l.Ready():
		case <-ctx.Done():
			return
		}
		if addr := l.BoundAddr(); addr != "" {
			attrs = append(attrs, slog.String(l.Name(), addr))
		}
	}
	ms.logger.Info("[xlogview.cliapp]", attrs...)
}

// CloseServices shuts down all services in reverse order.
func (ms *Server) CloseServices(ctx context.Context) {
	for i := len(ms.services) - 1; i >= 0; i-- {
		svc := ms.services[i]
		if err := svc.Close(ctx); err != nil {
			ms.logger.Error("[xlogview.cliapp]",
				slog.String("event_type", "service.close.error"),
				slog.String("service", svc.Name()),
				slog.Any("error", err))
		}
	}
}

func (ms *Server) BuildDeps() *Dependencies {
	ms.deps = &Dependencies{
		Config:      ms.cfg,
		WalDir:      ms.cfg.WalDir,
		SegmentSize: ms.segSize,
		Filter:      ms.filter,
		Resolver:    ms.resolver,
		Logger:      ms.logger,
	}
	return ms.deps
}

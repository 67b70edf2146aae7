package app

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"golang.org/x/sync/errgroup"

	"berth/pkg/logging"
)

// shutdownTimeout bounds how long the HTTP server waits for connections.
const shutdownTimeout = 10 * time.Second

// runServer starts the components, autostarts services, sweeps expired
// guards periodically and shuts everything down in reverse order once the
// context ends.
func runServer(ctx context.Context, sweepInterval time.Duration, s *Services) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Workers outlive the signal so in-flight tasks finish during shutdown.
	s.Pool.Start(context.WithoutCancel(ctx))
	s.Gateway.Start()

	if err := s.Watcher.Start(ctx); err != nil {
		logging.Warn("Bootstrap", "Workspace watcher disabled: %v", err)
	}

	if err := s.Server.Start(ctx); err != nil {
		shutdown(s)
		return err
	}

	if services, err := s.Registry.List(); err != nil {
		logging.Warn("Bootstrap", "Autostart skipped: %v", err)
	} else {
		s.Controller.StartAuto(ctx, services)
	}

	notifySystemd(daemon.SdNotifyReady)
	logging.Info("Bootstrap", "berth is ready. Press Ctrl+C to stop.")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		sweep(gctx, sweepInterval, s)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		return nil
	})
	err := g.Wait()

	notifySystemd(daemon.SdNotifyStopping)
	logging.Info("Bootstrap", "Shutting down")
	shutdown(s)

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func sweep(ctx context.Context, interval time.Duration, s *Services) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Controller.Sweep(); n > 0 {
				logging.Debug("Bootstrap", "Swept %d expired guards", n)
			}
		}
	}
}

// shutdown stops the components in reverse bootstrap order.
func shutdown(s *Services) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := s.Server.Shutdown(ctx); err != nil {
		logging.Warn("Bootstrap", "HTTP server shutdown: %v", err)
	}
	if err := s.Watcher.Stop(); err != nil {
		logging.Debug("Bootstrap", "Workspace watcher stop: %v", err)
	}
	s.Pool.Stop()
	s.Controller.Close()
	s.Gateway.Stop()
	s.Bus.Close()
}

func notifySystemd(state string) {
	sent, err := daemon.SdNotify(false, state)
	if err != nil {
		logging.Debug("Bootstrap", "systemd notify %s failed: %v", state, err)
		return
	}
	if sent {
		logging.Debug("Bootstrap", "Notified systemd: %s", state)
	}
}

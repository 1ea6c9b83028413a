// Package devserver runs the dashboard on a local development server. In
// debug mode it watches the home directory and tells open browsers to refresh
// when the data changes. It is not meant for production deployments.
package devserver

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultAddr     = "0.0.0.0:8050"
	DefaultDebounce = 250 * time.Millisecond

	shutdownTimeout = 10 * time.Second
)

type Application interface {
	Handler() http.Handler
	Reload(ctx context.Context) error
}

type Options struct {
	Addr     string
	Debug    bool
	BasePath string
	// WatchDirs are watched for changes in debug mode.
	WatchDirs []string
	Debounce  time.Duration
	// RefreshEvery reloads the data periodically; zero disables it.
	RefreshEvery time.Duration
	Logger       *slog.Logger
	// Listener overrides Addr when set.
	Listener net.Listener
}

// Run serves app until ctx is canceled, then shuts the server down.
func Run(ctx context.Context, app Application, opts Options) error {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if opts.Addr == "" {
		opts.Addr = DefaultAddr
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	base := opts.BasePath
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	hub := newHub(logger)
	defer hub.close()
	reload := func(reason string) {
		if err := app.Reload(ctx); err != nil {
			logger.Error("reload failed", "reason", reason, "err", err)
			return
		}
		hub.broadcast("reload")
	}

	mux := http.NewServeMux()
	if opts.Debug {
		mux.Handle(base+"_reload", hub)
		if len(opts.WatchDirs) > 0 {
			w, err := newWatcher(opts.WatchDirs, logger)
			if err != nil {
				logger.Warn("auto-reload disabled", "err", err)
			} else {
				go w.run(ctx, opts.Debounce, func() { reload("files changed") })
			}
		}
	}
	mux.Handle("/", app.Handler())

	if opts.RefreshEvery > 0 {
		go func() {
			ticker := time.NewTicker(opts.RefreshEvery)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					reload("periodic refresh")
				}
			}
		}()
	}

	level := slog.LevelDebug
	if opts.Debug {
		level = slog.LevelInfo
	}
	srv := &http.Server{
		Handler:           requestLogger(logger, level, mux),
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	ln := opts.Listener
	if ln == nil {
		var err error
		ln, err = net.Listen("tcp", opts.Addr)
		if err != nil {
			return err
		}
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("dashboard listening", "addr", ln.Addr().String(), "debug", opts.Debug)
		if opts.Debug {
			logger.Warn("this is a development server, do not use it in production")
		}
		errc <- srv.Serve(ln)
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down dashboard")
	hub.close()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		_ = srv.Close()
		return err
	}
	return nil
}

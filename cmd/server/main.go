package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/joho/godotenv"
	"github.com/jrsteele09/scan-portal/internal/config"
	"github.com/jrsteele09/scan-portal/internal/logging"
	"github.com/jrsteele09/scan-portal/internal/telemetry"
	"github.com/jrsteele09/scan-portal/server"
	"github.com/jrsteele09/scan-portal/session"
	"github.com/jrsteele09/scan-portal/transport"
	"github.com/jrsteele09/scan-portal/usercache"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const janitorInterval = time.Minute

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Error loading .env: %s\n", err)
	}

	for {
		if err := run(); err != nil {
			log.Error().Err(err).Msg("Error running server")
			time.Sleep(1 * time.Second)
		} else {
			break
		}
	}
	log.Info().Msg("Server stopped")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("Recovered from panic")
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	c := config.New()
	logging.Setup(c.GetEnv(), c.GetLogLevel())
	displayAppname(c.GetAppName())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing := telemetry.Setup(c.GetAppName())
	defer func() {
		flushCtx, flushCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer flushCancel()
		if err := shutdownTracing(flushCtx); err != nil {
			log.Err(err).Msg("tracer shutdown")
		}
	}()

	cache, closeCache, err := newUserCache(ctx, c)
	if err != nil {
		return err
	}
	defer closeCache()

	backend := transport.New(c.GetAPIBaseURL(),
		transport.WithTimeout(c.GetAPITimeout()),
		transport.WithLoginFallback(c.GetLoginFallback()),
		transport.WithLogger(log.Logger),
	)

	portal := server.New(c, backend, server.WithUserCache(cache))
	httpServer := &http.Server{
		Addr:              c.GetPort(),
		Handler:           otelhttp.NewHandler(portal, c.GetAppName()),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() { serveErr <- listenAndServe(httpServer) }()

	select {
	case err := <-serveErr:
		return err
	case <-waitForStopSignal():
	}
	returnError = shutdown(httpServer)
	return returnError
}

// newUserCache shares users across instances through redis when REDIS_ADDR is
// set and keeps them in process otherwise.
func newUserCache(ctx context.Context, c config.Config) (session.UserCache, func(), error) {
	if addr := c.GetRedisAddr(); addr != "" {
		client, err := usercache.Dial(ctx, addr, c.GetRedisPassword(), c.GetRedisDB())
		if err != nil {
			return nil, nil, fmt.Errorf("usercache.Dial: %w", err)
		}
		log.Info().Str("addr", addr).Msg("user cache: redis")
		return usercache.NewRedis(client, usercache.DefaultKeyPrefix), func() { _ = client.Close() }, nil
	}

	cache := usercache.NewInMemory()
	go cache.RunJanitor(ctx, janitorInterval)
	log.Info().Msg("user cache: in memory")
	return cache, func() {}, nil
}

func listenAndServe(server *http.Server) error {
	log.Info().Str("addr", server.Addr).Msg("Server listening")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func waitForStopSignal() <-chan os.Signal {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	return stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}

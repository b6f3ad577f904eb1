// Command memcached-cache inspects and edits named caches on a memcached
// cluster configured the same way as the application.
//
//	memcached-cache -config application.yaml -cache books get isbn-1
//	memcached-cache -cache books put isbn-1 Dune
//	memcached-cache -cache books clear
//	memcached-cache names
//	memcached-cache ping
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/goforj/memcached"
	zaplog "github.com/goforj/memcached/log/zap"
)

var errUsage = errors.New("usage: memcached-cache [flags] names|ping|get <key>|put <key> <value>|evict <key>|clear")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.LookupEnv, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, lookup memcached.LookupFunc, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("memcached-cache", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "YAML properties file")
	cacheName := fs.String("cache", "default", "cache name")
	logLevel := fs.String("log-level", "warn", "log level (debug, info, warn, error)")
	timeout := fs.Duration("timeout", 10*time.Second, "overall command timeout")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	logger, err := newLogger(*logLevel, stderr)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	if err := execute(ctx, fs.Args(), *configPath, *cacheName, lookup, zaplog.New(logger), stdout); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprintln(stderr, err)
			return 2
		}
		logger.Error("command failed", zap.Error(err))
		return 1
	}
	return 0
}

func newLogger(level string, w io.Writer) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid -log-level %q: %w", level, err)
	}
	enc := zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	return zap.New(zapcore.NewCore(enc, zapcore.AddSync(w), lvl)), nil
}

func execute(ctx context.Context, args []string, configPath, cacheName string, lookup memcached.LookupFunc, logger memcached.Logger, out io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}
	props, err := memcached.LoadProperties(configPath, lookup)
	if err != nil {
		return err
	}
	if args[0] == "names" {
		return printNames(out, props)
	}

	manager, err := memcached.New(ctx, props, memcached.WithLogger(logger))
	if err != nil {
		return err
	}
	defer manager.Close()
	cache := manager.Cache(cacheName)

	switch {
	case args[0] == "ping" && len(args) == 1:
		if err := manager.Client().Ping(ctx); err != nil {
			return err
		}
		fmt.Fprintln(out, "PONG")
	case args[0] == "get" && len(args) == 2:
		v, ok, err := cache.GetCtx(ctx, args[1])
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%s: key %q not found", cacheName, args[1])
		}
		fmt.Fprintln(out, string(v))
	case args[0] == "put" && len(args) == 3:
		return cache.PutCtx(ctx, args[1], []byte(args[2]))
	case args[0] == "evict" && len(args) == 2:
		return cache.EvictCtx(ctx, args[1])
	case args[0] == "clear" && len(args) == 1:
		return cache.ClearCtx(ctx)
	default:
		return errUsage
	}
	return nil
}

// printNames lists the caches with a configured expiration, then the default.
func printNames(out io.Writer, props memcached.Properties) error {
	names := make([]string, 0, len(props.Expirations))
	for name := range props.Expirations {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		fmt.Fprintf(out, "%s\t%s\n", name, formatExpiration(props.Expirations[name]))
	}
	_, err := fmt.Fprintf(out, "*\t%s\n", formatExpiration(props.Expiration))
	return err
}

func formatExpiration(d time.Duration) string {
	if d == memcached.NoExpiration {
		return "never"
	}
	return d.String()
}

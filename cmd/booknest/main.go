package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"booknest/internal/config"
	"booknest/internal/ratelimit"
	"booknest/internal/screen"
	"booknest/internal/util"
	"booknest/pkg/api"
	"booknest/pkg/present"
	"booknest/pkg/session"
	"booknest/pkg/storage"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// app holds everything a command needs.
type app struct {
	cfg     config.FileConfig
	logger  *slog.Logger
	store   storage.Storage
	redis   *redis.Client
	client  *api.Client
	session *session.Store
	tr      *present.Translator
	notify  *cliNotifier
	policy  screen.AttachPolicy

	in  *bufio.Reader
	out io.Writer
}

type command struct {
	name  string
	usage string
	run   func(ctx context.Context, a *app, args []string) error
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("booknest", flag.ContinueOnError)
	fs.SetOutput(stderr)
	cfgPath := fs.String("config", config.ConfigPath, "path to config.yaml")
	fs.Usage = func() { printUsage(stderr) }
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		printUsage(stderr)
		return 2
	}
	cmd, ok := lookupCommand(fs.Arg(0))
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n", fs.Arg(0))
		printUsage(stderr)
		return 2
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(stderr, "failed to load config: %v\n", err)
		return 1
	}
	logger := util.InitLogger(cfg.LogLevel, cfg.LogFormat, stderr)

	a, err := newApp(ctx, cfg, logger, stdin, stdout, stderr)
	if err != nil {
		logger.Error("failed to init client", "err", err)
		return 1
	}
	defer a.close()

	if err := cmd.run(ctx, a, fs.Args()[1:]); err != nil {
		var usage usageError
		switch {
		case errors.As(err, &usage):
			fmt.Fprintf(stderr, "usage: booknest %s %s\n", cmd.name, cmd.usage)
			return 2
		case a.notify.count() == 0:
			fmt.Fprintf(stderr, "error: %v\n", err)
		}
		return 1
	}
	return 0
}

func newApp(ctx context.Context, cfg config.FileConfig, logger *slog.Logger, stdin io.Reader, stdout, stderr io.Writer) (*app, error) {
	a := &app{
		cfg:    cfg,
		logger: logger,
		notify: &cliNotifier{w: stderr},
		in:     bufio.NewReader(stdin),
		out:    stdout,
	}
	if cfg.ChartAttachPolicy == config.PolicyRollback {
		a.policy = screen.Rollback
	}
	if cfg.StorageDriver == config.StorageRedis || cfg.LoginRateLimitPerMinute > 0 {
		a.redis = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	}

	switch cfg.StorageDriver {
	case config.StorageMemory:
		a.store = storage.NewMemoryStorage()
	case config.StorageRedis:
		a.store = storage.NewRedisStorage(a.redis, cfg.RedisPrefix)
	default:
		key, err := config.ParseStorageKey(cfg.StorageKey)
		if err != nil {
			return nil, err
		}
		fileStore, err := storage.NewFileStorage(cfg.StorageDir, key)
		if err != nil {
			return nil, err
		}
		a.store = fileStore
	}

	timeout, err := config.ParseRequestTimeout(cfg.RequestTimeout)
	if err != nil {
		return nil, err
	}
	a.client = api.NewClient(api.Config{BaseURL: cfg.APIURL, Timeout: timeout, Logger: logger})

	sessCfg := session.Config{Storage: a.store, Auth: a.client, Logger: logger}
	if cfg.LoginRateLimitPerMinute > 0 {
		limiter, err := ratelimit.NewFixedWindowLimiter(a.redis, "", cfg.LoginRateLimitPerMinute, time.Minute)
		if err != nil {
			return nil, err
		}
		sessCfg.Limiter = limiter
	}
	a.session, err = session.Open(ctx, sessCfg)
	if err != nil {
		a.close()
		return nil, err
	}
	a.client.SetTokenSource(a.session)
	a.tr = present.NewTranslator(ctx, nil, a.store, cfg.Language)
	return a, nil
}

func (a *app) close() {
	if a.session != nil {
		a.session.Close()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
}

func (a *app) media(path string) string {
	return present.MediaURL(a.cfg.MediaURL, path)
}

// confirm asks a yes/no question on the terminal.
func (a *app) confirm(prompt string) bool {
	fmt.Fprintf(a.out, "%s [y/N] ", prompt)
	line, _ := a.in.ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}

// cliNotifier prints notices to stderr and counts them so the same failure
// is not printed twice.
type cliNotifier struct {
	mu sync.Mutex
	w  io.Writer
	n  int
}

func (c *cliNotifier) Notify(n screen.Notice) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n++
	fmt.Fprintf(c.w, "error: %s: %v\n", n.Op, n.Err)
}

func (c *cliNotifier) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

type usageError struct{}

func (usageError) Error() string { return "usage" }

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "usage: booknest [-config path] <command> [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "commands:")
	for _, c := range commands() {
		fmt.Fprintf(w, "  %-13s %s\n", c.name, c.usage)
	}
}

func lookupCommand(name string) (command, bool) {
	for _, c := range commands() {
		if c.name == name {
			return c, true
		}
	}
	return command{}, false
}

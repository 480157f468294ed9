package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/Well2333/clashprofile/internal/config"
	"github.com/Well2333/clashprofile/internal/fetch"
	"github.com/Well2333/clashprofile/internal/httpapi"
	"github.com/Well2333/clashprofile/internal/logger"
	"github.com/Well2333/clashprofile/internal/model"
	"github.com/Well2333/clashprofile/internal/store"
	"github.com/Well2333/clashprofile/internal/template"
	"github.com/Well2333/clashprofile/internal/updater"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stderr))
}

func run(args []string, stderr io.Writer) int {
	env, err := config.LoadEnv()
	if err != nil {
		fmt.Fprintf(stderr, "environment: %v\n", err)
		return 2
	}

	fs := flag.NewFlagSet("clashprofile", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", env.ConfigPath, "配置文件路径")
	dataDir := fs.String("data", env.DataDir, "数据目录（profile/provider/template）")
	healthcheck := fs.Bool("healthcheck", false, "请求本机 /healthz 后退出（用于容器健康检查）")
	healthTimeout := fs.Duration("healthcheck-timeout", 3*time.Second, "健康检查超时")
	readHeaderTimeout := fs.Duration("read-header-timeout", 5*time.Second, "HTTP ReadHeaderTimeout（请求头读取超时）")
	shutdownTimeout := fs.Duration("shutdown-timeout", 10*time.Second, "收到退出信号后的优雅退出等待时间")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, err := config.Load(*configPath)
	if errors.Is(err, config.ErrCreated) {
		fmt.Fprintln(stderr, err)
		return 0
	}
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}

	if *healthcheck {
		u, err := deriveHealthzURL(cfg.Addr())
		if err != nil {
			fmt.Fprintln(stderr, err)
			return 1
		}
		if err := runHealthcheck(u, *healthTimeout); err != nil {
			fmt.Fprintln(stderr, err)
			return 1
		}
		return 0
	}

	log, err := logger.New(logger.Config{Level: cfg.LogLevel, Format: env.LogFormat, OutputPath: cfg.LogFile})
	if err != nil {
		fmt.Fprintf(stderr, "logger: %v\n", err)
		return 1
	}
	defer func() { _ = log.Sync() }()

	layout := store.Layout{Root: *dataDir}
	if err := layout.Init(); err != nil {
		log.Error("init data dir", zap.Error(err))
		return 1
	}
	templates := template.Store{Dir: layout.TemplateDir()}
	seeded, err := templates.Seed()
	if err != nil {
		log.Error("seed templates", zap.Error(err))
		return 1
	}
	if len(seeded) > 0 {
		log.Info("bundled templates copied", zap.Strings("templates", seeded), zap.String("dir", templates.Dir))
	}

	if err := cfg.Validate(templates.Exists); err != nil {
		printViolations(stderr, *configPath, err)
		return 1
	}
	for _, w := range cfg.Warnings() {
		log.Warn(w)
	}

	fetcher := fetch.New(fetch.Options{
		Concurrency: int64(cfg.DownloadSem),
		Retries:     cfg.DownloadRetry,
		Timeout:     cfg.DownloadTimeout,
		Logger:      log,
	})
	up := updater.New(cfg, fetcher, templates, layout, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := up.Update(ctx); err != nil {
		log.Error("initial update failed", zap.Error(err))
	}
	sched, err := up.Schedule(cfg.UpdateCron, cfg.UpdateTZ)
	if err != nil {
		log.Error("schedule updates", zap.Error(err))
		return 1
	}
	defer sched.Stop()

	srv := &http.Server{
		Addr: cfg.Addr(),
		Handler: httpapi.NewHandler(httpapi.Options{
			Prefix:  cfg.URLPrefix,
			Headers: cfg.Headers,
			Layout:  layout,
			Updater: up,
			Logger:  log,
		}),
		ReadHeaderTimeout: *readHeaderTimeout,
	}
	log.Info("listening", zap.String("addr", cfg.Addr()))

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")

		shCtx, cancel := context.WithTimeout(context.Background(), *shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shCtx); err != nil {
			log.Warn("graceful shutdown failed", zap.Error(err))
			_ = srv.Close()
		}
		<-sched.Stop().Done()

		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server", zap.Error(err))
			return 1
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server", zap.Error(err))
			return 1
		}
	}
	return 0
}

// printViolations writes one "path: message" line per invalid field.
func printViolations(w io.Writer, path string, err error) {
	var ve *model.ValidationError
	if !errors.As(err, &ve) {
		fmt.Fprintf(w, "%s: %v\n", path, err)
		return
	}
	fmt.Fprintf(w, "%s: %d 项配置不合法\n", path, len(ve.Violations))
	for _, v := range ve.Violations {
		fmt.Fprintf(w, "  %s: %s\n", v.Field, v.Message)
	}
}

// deriveHealthzURL turns a listen address into a loopback /healthz URL.
func deriveHealthzURL(listen string) (string, error) {
	s := strings.TrimSpace(listen)
	if s == "" {
		return "", errors.New("empty listen address")
	}
	if strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") {
		u, err := url.Parse(s)
		if err != nil {
			return "", err
		}
		u.Path = "/healthz"
		u.RawQuery = ""
		return u.String(), nil
	}
	if !strings.Contains(s, ":") {
		s = ":" + s
	}
	host, port, err := net.SplitHostPort(s)
	if err != nil {
		return "", fmt.Errorf("invalid listen address %q: %w", listen, err)
	}
	switch host {
	case "", "0.0.0.0", "::":
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port) + "/healthz", nil
}

func runHealthcheck(u string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<10))
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, u)
	}
	return nil
}

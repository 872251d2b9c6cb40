// Command ioco-fakeapi serves the in-memory backend for local testing of
// the ioco client.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/alexjbarnes/ioco/internal/fakeapi"
)

var Version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type config struct {
	ListenAddr string
	BasePath   string
	Secret     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	SeedUsers  string
	LogLevel   string
}

func loadConfig() (*config, error) {
	cfg := &config{}

	accessTTL, err := durationEnv("ACCESS_TTL", 15*time.Minute)
	if err != nil {
		return nil, err
	}

	refreshTTL, err := durationEnv("REFRESH_TTL", 7*24*time.Hour)
	if err != nil {
		return nil, err
	}

	flag.StringVar(&cfg.ListenAddr, "listen-addr", envOr("LISTEN_ADDR", ":8080"), "HTTP listen address")
	flag.StringVar(&cfg.BasePath, "base-path", envOr("BASE_PATH", "/api"), "path prefix for every route")
	flag.StringVar(&cfg.Secret, "secret", os.Getenv("JWT_SECRET"), "HS256 signing secret (random when empty)")
	flag.DurationVar(&cfg.AccessTTL, "access-ttl", accessTTL, "access token lifetime")
	flag.DurationVar(&cfg.RefreshTTL, "refresh-ttl", refreshTTL, "refresh token lifetime")
	flag.StringVar(&cfg.SeedUsers, "seed-users", os.Getenv("SEED_USERS"), "comma-separated email:password pairs to create at startup")
	flag.StringVar(&cfg.LogLevel, "log-level", envOr("LOG_LEVEL", "info"), "log level (debug, info, warn, error)")
	flag.Parse()

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}

	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", key, err)
	}

	return d, nil
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type seedUser struct {
	Email    string
	Password string
}

// parseSeedUsers parses "a@x.com:pw1,b@y.com:pw2". Passwords may contain
// colons; the email may not.
func parseSeedUsers(s string) ([]seedUser, error) {
	var users []seedUser
	if s == "" {
		return users, nil
	}

	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}

		email, password, ok := strings.Cut(pair, ":")
		if !ok {
			return nil, fmt.Errorf("invalid user entry (missing ':'): %s", pair)
		}

		if email == "" || password == "" {
			return nil, fmt.Errorf("empty email or password in: %s", pair)
		}

		users = append(users, seedUser{Email: email, Password: password})
	}

	return users, nil
}

func run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parseLogLevel(cfg.LogLevel)}))

	seeds, err := parseSeedUsers(cfg.SeedUsers)
	if err != nil {
		return fmt.Errorf("parsing seed users: %w", err)
	}

	api := fakeapi.New(fakeapi.Config{
		Secret:     []byte(cfg.Secret),
		AccessTTL:  cfg.AccessTTL,
		RefreshTTL: cfg.RefreshTTL,
		BasePath:   cfg.BasePath,
		Logger:     logger,
	})
	defer api.Close()

	for _, seed := range seeds {
		name, _, _ := strings.Cut(seed.Email, "@")
		u, err := api.Store.AddUser(name, "", seed.Email, seed.Password, 2)
		if err != nil {
			return fmt.Errorf("seeding %s: %w", seed.Email, err)
		}
		logger.Info("seeded user", slog.String("email", u.Email), slog.Int64("id", u.ID))
	}

	server := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      api.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	logger.Info("starting fake api",
		slog.String("version", Version),
		slog.String("listen", cfg.ListenAddr),
		slog.String("base_path", cfg.BasePath),
		slog.Duration("access_ttl", cfg.AccessTTL),
		slog.Int("users", len(seeds)),
	)

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

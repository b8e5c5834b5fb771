// Package app はサブコマンドの解析と依存関係のワイヤリングを行う。
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/time/rate"

	"github.com/hitoshi/newshub/internal/aggregator"
	"github.com/hitoshi/newshub/internal/config"
	"github.com/hitoshi/newshub/internal/database"
	"github.com/hitoshi/newshub/internal/handler"
	"github.com/hitoshi/newshub/internal/logger"
	"github.com/hitoshi/newshub/internal/metrics"
	"github.com/hitoshi/newshub/internal/middleware"
	"github.com/hitoshi/newshub/internal/preference"
	"github.com/hitoshi/newshub/internal/provider"
	"github.com/hitoshi/newshub/internal/repository"
	"github.com/hitoshi/newshub/internal/security"
	"github.com/hitoshi/newshub/internal/worker/cleanup"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、LOG_LEVELに従ってJSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		// 設定エラーもJSONログで出力できるようにする
		logger.SetupDefault(w, os.Getenv("LOG_LEVEL"))
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger.SetupDefault(w, cfg.LogLevel)
	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck と query はAPIキーを必要としないため、フル初期化をスキップする
	switch cmd {
	case CommandHealthcheck:
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	case CommandQuery:
		logger.SetupDefault(os.Stderr, os.Getenv("LOG_LEVEL"))
		return runQuery(context.Background(), w, args[1:])
	}

	if cmd == CommandMigrate {
		return runMigrate(w, args[1:])
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.Any("providers", enabledProviderIDs(cfg)),
		slog.Bool("database", cfg.HasDatabase()),
	)

	return runServe(cfg)
}

// runServe はAPIサーバーモードで起動する。
// 全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. 設定ストア（DATABASE_URL未設定時はインメモリ）
	prefRepo, db, err := openPreferenceRepository(cfg)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	jobCtx, stopJobs := context.WithCancel(context.Background())
	defer stopJobs()
	if db != nil {
		// 期限切れ設定の削除を日次でバックグラウンド実行
		job := cleanup.NewPreferenceCleanupJob(db, slog.Default(), cfg.PreferenceRetentionDays)
		go job.Start(jobCtx, cleanup.DefaultInterval)
	}

	// 2. メトリクス
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(reg)

	// 3. プロバイダーとアグリゲーター
	ssrfGuard := security.NewSSRFGuard()
	providers := newProviders(cfg, provider.Options{
		HTTPClient:      ssrfGuard.NewSafeClient(cfg.ProviderTimeout),
		Guard:           ssrfGuard,
		Logger:          slog.Default(),
		Metrics:         collector,
		Sanitizer:       security.NewTextSanitizer(),
		MaxResponseSize: cfg.ProviderMaxSize,
	})
	agg := aggregator.New(providers, slog.Default(), collector, cfg.ProviderTimeout)

	// 4. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(middleware.NewRateLimiterConfig(cfg.RateLimitPreferences))
	defer rateLimiter.Stop()

	deps := &handler.RouterDeps{
		Logger:            slog.Default(),
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		Aggregator:        agg,
		PreferenceService: preference.NewService(prefRepo, slog.Default()),
		MetricsHandler:    metrics.Handler(reg),
	}
	if db != nil {
		deps.HealthPinger = db
	}

	router := handler.NewRouter(deps)

	// 5. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-stop:
	case err := <-serverErr:
		return fmt.Errorf("server listen error: %w", err)
	}
	slog.Info("shutting down API server...")
	stopJobs()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// openPreferenceRepository は設定ストアを開く。
// DATABASE_URLが設定されていればマイグレーションを適用したPostgreSQLを使い、
// 未設定ならインメモリ実装を返す（dbはnil）。
func openPreferenceRepository(cfg *config.Config) (repository.PreferenceRepository, *sql.DB, error) {
	if !cfg.HasDatabase() {
		slog.Warn("DATABASE_URL is not set; preferences are stored in memory")
		return repository.NewMemoryPreferenceRepo(), nil, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	slog.Info("database connection established")

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("migration failed: %w", err)
	}

	return repository.NewPostgresPreferenceRepo(db), db, nil
}

// newProviders はAPIキーが設定されたプロバイダーのみを生成する。
// 送信枠のリミッターはプロバイダーごとに独立して持つ。
func newProviders(cfg *config.Config, opts provider.Options) []provider.Provider {
	limiter := func() *rate.Limiter {
		return rate.NewLimiter(rate.Limit(float64(cfg.ProviderRateLimit)/60), cfg.ProviderRateBurst)
	}

	var providers []provider.Provider
	if cfg.NewsAPIKey != "" {
		o := opts
		o.Limiter = limiter()
		providers = append(providers, provider.NewNewsAPI(cfg.NewsAPIKey, o))
	}
	if cfg.GuardianAPIKey != "" {
		o := opts
		o.Limiter = limiter()
		providers = append(providers, provider.NewGuardian(cfg.GuardianAPIKey, o))
	}
	if cfg.NYTAPIKey != "" {
		o := opts
		o.Limiter = limiter()
		providers = append(providers, provider.NewNYT(cfg.NYTAPIKey, o))
	}
	return providers
}

// enabledProviderIDs はAPIキーが設定されたプロバイダーの識別子を返す。キーそのものは含めない。
func enabledProviderIDs(cfg *config.Config) []string {
	var ids []string
	for _, p := range newProviders(cfg, provider.Options{}) {
		ids = append(ids, string(p.ID()))
	}
	return ids
}

// runMigrate はデータベースマイグレーションを実行する。
// 引数なしで未適用分をすべて適用し、"down" で最後の1つを戻す。
// プロバイダーのAPIキーは不要で、DATABASE_URLのみを必要とする。
func runMigrate(w io.Writer, args []string) error {
	logger.SetupDefault(w, os.Getenv("LOG_LEVEL"))

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		return errors.New("DATABASE_URL is required for migrate")
	}

	direction := "up"
	if len(args) > 0 {
		direction = args[0]
	}

	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(databaseURL)),
		slog.String("direction", direction),
	)

	switch direction {
	case "up":
		if err := database.RunMigrations(databaseURL); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	case "down":
		if err := database.RollbackMigration(databaseURL); err != nil {
			return fmt.Errorf("rollback failed: %w", err)
		}
	default:
		return fmt.Errorf("unknown migrate direction %q (want up or down)", direction)
	}

	status, err := database.Status(databaseURL)
	if err != nil {
		return err
	}
	slog.Info("database migrations completed successfully",
		slog.Uint64("version", uint64(status.Version)),
		slog.Bool("applied", status.Applied),
		slog.Bool("dirty", status.Dirty),
	)
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}

package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/salonbook/internal/account"
	"github.com/hitoshi/salonbook/internal/auth"
	"github.com/hitoshi/salonbook/internal/catalog"
	"github.com/hitoshi/salonbook/internal/config"
	"github.com/hitoshi/salonbook/internal/contact"
	"github.com/hitoshi/salonbook/internal/database"
	"github.com/hitoshi/salonbook/internal/graph"
	"github.com/hitoshi/salonbook/internal/handler"
	"github.com/hitoshi/salonbook/internal/logger"
	"github.com/hitoshi/salonbook/internal/metrics"
	"github.com/hitoshi/salonbook/internal/middleware"
	"github.com/hitoshi/salonbook/internal/repository"
	"github.com/hitoshi/salonbook/internal/worker/cleanup"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// cleanupInterval はお問い合わせクリーンアップの実行間隔。
const cleanupInterval = 24 * time.Hour

// Init はアプリケーションの初期化を行う。
// .envファイルがあれば読み込み、環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, slog.LevelInfo)

	// 2. .envの読み込み（既存の環境変数は上書きしない）
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	// 3. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 4. 設定されたログレベルで再初期化
	logger.SetupDefault(w, logger.ParseLevel(cfg.LogLevel))

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
// SIGINTまたはSIGTERMを受信すると実行中のモードを停止する。
func Run(w io.Writer, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return run(ctx, w, args)
}

func run(ctx context.Context, w io.Writer, args []string) error {
	cmd, err := ParseCommand(args)
	if err != nil {
		return err
	}

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
	)

	switch cmd {
	case CommandWorker:
		return runWorker(ctx, cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(ctx, cfg)
	}
}

// openDB はDB接続を開き、疎通を確認する。
func openDB(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)
	return db, nil
}

// apiServer はAPIサーバーの構成要素。
type apiServer struct {
	handler     http.Handler
	rateLimiter *middleware.RateLimiter
}

// newAPIServer は全依存関係をワイヤリングしたHTTPハンドラーを構築する。
// cacheがnilの場合、メニュー一覧はキャッシュせずDBから取得する。
func newAPIServer(cfg *config.Config, db *sql.DB, cache repository.ServiceCache, reg *prometheus.Registry) (*apiServer, error) {
	collector := metrics.NewCollector(reg)

	// 1. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	contactRepo := repository.NewPostgresContactRepo(db)
	var serviceRepo repository.ServiceRepository = repository.NewPostgresServiceRepo(db)
	if cache != nil {
		serviceRepo = repository.NewCachedServiceRepo(serviceRepo, cache)
	}

	// 2. 認証
	authenticator, err := auth.NewAuthenticator(cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to create authenticator: %w", err)
	}
	tokenIssuer := auth.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL)

	// 3. ドメインサービス
	accountService := account.NewService(userRepo, serviceRepo, authenticator, tokenIssuer)
	catalogService := catalog.NewService(serviceRepo)
	contactService := contact.NewService(contactRepo)

	// 4. GraphQL
	rateLimiter := middleware.NewRateLimiter(
		middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitAuth),
	)
	resolver := graph.NewResolver(accountService, catalogService, contactService, rateLimiter, collector)
	schema, err := graph.NewSchema(resolver)
	if err != nil {
		rateLimiter.Stop()
		return nil, err
	}

	// 5. ルーター
	router := handler.NewRouter(&handler.RouterDeps{
		Logger:            slog.Default(),
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		TokenVerifier:     tokenIssuer,
		StatusRecorder:    collector,
		HealthChecker:     db,
		GraphQLHandler:    graph.NewHandler(schema),
		MetricsHandler:    metrics.Handler(reg),
	})

	return &apiServer{handler: router, rateLimiter: rateLimiter}, nil
}

// newServicesCache はREDIS_URLが設定されていればRedisのメニューキャッシュを返す。
// Redisに接続できない場合はキャッシュなしで起動する。
func newServicesCache(ctx context.Context, cfg *config.Config) (repository.ServiceCache, func()) {
	if cfg.RedisURL == "" {
		return nil, func() {}
	}

	client, err := repository.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		slog.Warn("redis unavailable, services cache disabled",
			slog.String("error", err.Error()),
		)
		return nil, func() {}
	}

	slog.Info("services cache enabled",
		slog.Duration("ttl", cfg.ServicesCacheTTL),
	)
	return repository.NewRedisServiceCache(client, cfg.ServicesCacheTTL), func() { client.Close() }
}

// runServe はAPIサーバーモードで起動する。
// ctxがキャンセルされるとグレースフルシャットダウンを行う。
func runServe(ctx context.Context, cfg *config.Config) error {
	db, err := openDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	cache, closeCache := newServicesCache(ctx, cfg)
	defer closeCache()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	api, err := newAPIServer(cfg, db, cache, reg)
	if err != nil {
		return err
	}
	defer api.rateLimiter.Stop()

	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           api.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server listen error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down API server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// 保持期間を超過したお問い合わせを日次で削除する。
// ctxがキャンセルされるまでブロックする。
func runWorker(ctx context.Context, cfg *config.Config) error {
	db, err := openDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	contactRepo := repository.NewPostgresContactRepo(db)

	collector, metricsServer := newWorkerMetrics(cfg.WorkerMetricsPort)
	if metricsServer != nil {
		go func() {
			slog.Info("worker metrics server starting", slog.String("addr", metricsServer.Addr))
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("worker metrics server failed", slog.String("error", err.Error()))
			}
		}()
	}

	job := cleanup.NewCleanupJob(contactRepo, slog.Default(), collector)
	job.RetentionDays = cfg.ContactRetentionDays

	slog.Info("worker starting",
		slog.Duration("cleanup_interval", cleanupInterval),
		slog.Int("retention_days", cfg.ContactRetentionDays),
	)

	job.Start(ctx, cleanupInterval)

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			slog.Warn("worker metrics server shutdown failed", slog.String("error", err.Error()))
		}
	}

	slog.Info("worker stopped gracefully")
	return nil
}

// newWorkerMetrics はワーカー用のメトリクス記録先と、それを公開するHTTPサーバーを返す。
// portが空の場合はメトリクスを記録せず、サーバーはnil。
func newWorkerMetrics(port string) (metrics.MetricsCollector, *http.Server) {
	if port == "" {
		return metrics.NopCollector{}, nil
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	r := chi.NewRouter()
	r.Method(http.MethodGet, "/metrics", metrics.Handler(reg))

	return metrics.NewCollector(reg), &http.Server{
		Addr:              ":" + port,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	version, err := database.RunMigrations(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully",
		slog.Uint64("version", uint64(version)),
	)
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	endpoint := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(endpoint)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLのパスワードをマスクする。
// 解析できないURLは全体を伏せる。
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "***"
	}
	return u.Redacted()
}

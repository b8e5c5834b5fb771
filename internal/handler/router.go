package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/newshub/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Logger *slog.Logger

	// ミドルウェア依存
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter // nilの場合は設定APIを制限しない

	// 記事
	Aggregator NewsAggregator

	// 設定
	PreferenceService PreferenceServiceInterface

	// 運用
	HealthPinger   Pinger       // nilの場合は疎通確認を行わない
	MetricsHandler http.Handler // nilの場合は/metricsを公開しない
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → Logging → Recovery → SecurityHeaders → CORS
//
// 設定API（/api/preferences）にはルート単位でクライアントごとのレート制限を追加する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	r.Use(middleware.NewRequestIDMiddleware())
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewRecoveryMiddleware(logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	newsHandler := NewNewsHandler(deps.Aggregator, logger)
	prefHandler := NewPreferenceHandler(deps.PreferenceService, logger)

	limited := func(h http.HandlerFunc) http.Handler {
		if deps.RateLimiter == nil {
			return h
		}
		return deps.RateLimiter.Middleware()(h)
	}

	// --- 運用エンドポイント ---
	r.Get("/health", NewHealthHandler(deps.HealthPinger))
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	r.Route("/api", func(r chi.Router) {
		// 記事（認証・レート制限なし）
		r.Get("/news", newsHandler.GetNews)

		// 選択肢
		r.Get("/sources", ListSources)
		r.Get("/categories", ListCategories)

		// クライアント設定
		r.Route("/preferences", func(r chi.Router) {
			r.Method(http.MethodPost, "/", limited(prefHandler.CreatePreference))

			r.Route("/{clientID}", func(r chi.Router) {
				r.Method(http.MethodGet, "/", limited(prefHandler.GetPreference))
				r.Method(http.MethodPut, "/", limited(prefHandler.UpdatePreference))
				r.Method(http.MethodDelete, "/", limited(prefHandler.DeletePreference))
			})
		})
	})

	return r
}

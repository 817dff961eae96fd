package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/taskman/internal/metrics"
	"github.com/hitoshi/taskman/internal/middleware"
)

// HealthChecker はヘルスチェック時のDB疎通確認インターフェース。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// インフラ依存
	HealthChecker     HealthChecker
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger

	// メトリクス
	RequestRecorder middleware.RequestRecorder
	Gatherer        prometheus.Gatherer

	// 認証
	AuthService  AuthServiceInterface
	AuthRecorder AuthRecorder

	// JWT検証
	TokenValidator middleware.TokenValidator

	// タスク
	TaskService TaskServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → Metrics → SecurityHeaders → CORS
//
// 認証ルート（/api/auth/*）はIPベースのレート制限のみを適用し、
// タスクルート（/api/tasks/*）はJWT認証とユーザーベースのレート制限を適用する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	// 全ルート共通のミドルウェア
	r.Use(middleware.NewRecoveryMiddleware())
	if deps.Logger != nil {
		r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	}
	if deps.RequestRecorder != nil {
		r.Use(middleware.NewMetricsMiddleware(deps.RequestRecorder))
	}
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthRecorder)
	taskHandler := NewTaskHandler(deps.TaskService)

	// --- 認証不要のルート ---

	// ヘルスチェック（Dockerヘルスチェックと監視用）
	r.Get("/health", healthHandler(deps.HealthChecker))

	// Prometheusメトリクス
	if deps.Gatherer != nil {
		r.Get("/metrics", metrics.Handler(deps.Gatherer).ServeHTTP)
	}

	// 認証ルート（IPベースのレート制限を適用）
	r.Route("/api/auth", func(r chi.Router) {
		if deps.RateLimiter != nil {
			r.Use(deps.RateLimiter.AuthMiddleware())
		}
		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)
	})

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Auth(JWT) → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewAuthMiddleware(deps.TokenValidator))
		if deps.RateLimiter != nil {
			r.Use(deps.RateLimiter.GeneralMiddleware())
		}

		// タスク管理
		r.Route("/api/tasks", func(r chi.Router) {
			r.Get("/", taskHandler.List)
			r.Post("/", taskHandler.Create)

			// /search と /export は /{id} より先にマッチさせる
			r.Get("/search", taskHandler.Search)
			r.Get("/export", taskHandler.Export)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", taskHandler.Get)
				r.Put("/", taskHandler.Update)
				r.Delete("/", taskHandler.Delete)
			})
		})
	})

	return r
}

// healthHandler はDB疎通を確認し、ヘルスチェック結果を返すハンドラーを生成する。
func healthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := "ok"
		statusCode := http.StatusOK

		if checker != nil {
			if err := checker.PingContext(r.Context()); err != nil {
				slog.Error("health check: database ping failed", slog.String("error", err.Error()))
				status = "unavailable"
				statusCode = http.StatusServiceUnavailable
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode)
		json.NewEncoder(w).Encode(map[string]string{"status": status})
	}
}

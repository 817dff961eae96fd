// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/mail"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/taskman/internal/auth"
	"github.com/hitoshi/taskman/internal/model"
)

// minPasswordLength はパスワードの最小文字数。
const minPasswordLength = 8

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	// Register は新規ユーザーを登録し、トークンを発行する。
	Register(ctx context.Context, name, email, rawPassword string) (*auth.Result, error)
	// Login は資格情報を検証し、トークンを発行する。
	Login(ctx context.Context, email, rawPassword string) (*auth.Result, error)
}

// AuthRecorder は認証イベントのメトリクス記録インターフェース。
type AuthRecorder interface {
	RecordRegistration()
	RecordLogin()
}

// AuthHandler はユーザー登録・ログインのHTTPハンドラー。
type AuthHandler struct {
	service  AuthServiceInterface
	recorder AuthRecorder
}

// NewAuthHandler はAuthHandlerを生成する。
// recorderはnilの場合メトリクスを記録しない。
func NewAuthHandler(service AuthServiceInterface, recorder AuthRecorder) *AuthHandler {
	return &AuthHandler{
		service:  service,
		recorder: recorder,
	}
}

// --- リクエスト・レスポンス型 ---

// registerRequest はユーザー登録リクエストのボディ。
type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// loginRequest はログインリクエストのボディ。
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// authResponse は登録・ログイン成功時のレスポンス。
type authResponse struct {
	Token string `json:"token"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// Register は新規ユーザーを登録する。
// POST /api/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, invalidBodyError())
		return
	}

	if apiErr := validateRegisterRequest(&req); apiErr != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, apiErr)
		return
	}

	result, err := h.service.Register(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	if h.recorder != nil {
		h.recorder.RecordRegistration()
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(authResponse{
		Token: result.Token,
		Email: result.Email,
		Name:  result.Name,
	})
}

// Login は資格情報を検証し、トークンを発行する。
// POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, invalidBodyError())
		return
	}

	if req.Email == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("email", "必須項目です"))
		return
	}
	if req.Password == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("password", "必須項目です"))
		return
	}

	result, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	if h.recorder != nil {
		h.recorder.RecordLogin()
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(authResponse{
		Token: result.Token,
		Email: result.Email,
		Name:  result.Name,
	})
}

// validateRegisterRequest は登録リクエストの入力検証を行う。
// 検証に失敗した場合はAPIErrorを返し、成功した場合はnilを返す。
func validateRegisterRequest(req *registerRequest) *model.APIError {
	if strings.TrimSpace(req.Name) == "" {
		return model.NewValidationError("name", "必須項目です")
	}
	if req.Email == "" {
		return model.NewValidationError("email", "必須項目です")
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		return model.NewValidationError("email", "メールアドレスの形式が正しくありません")
	}
	if len(req.Password) < minPasswordLength {
		return model.NewValidationError("password", "8文字以上で入力してください")
	}
	return nil
}

// SetupAuthRoutes は認証関連のルーティングを設定したchi.Routerを返す。
func SetupAuthRoutes(service AuthServiceInterface, recorder AuthRecorder) http.Handler {
	r := chi.NewRouter()
	h := NewAuthHandler(service, recorder)

	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)
	})

	return r
}

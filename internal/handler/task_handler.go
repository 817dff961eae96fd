package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/taskman/internal/middleware"
	"github.com/hitoshi/taskman/internal/model"
	"github.com/hitoshi/taskman/internal/task"
)

// maxTitleLength はタイトルの最大文字数。
const maxTitleLength = 255

// xlsxContentType はxlsxドキュメントのMIMEタイプ。
const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// exportFilenameFormat はエクスポートファイル名のタイムスタンプ形式。
const exportFilenameFormat = "20060102_150405"

// TaskServiceInterface はタスクハンドラーが必要とするサービスインターフェース。
type TaskServiceInterface interface {
	// List はユーザーのタスク一覧を作成日時降順で返す。
	List(ctx context.Context, userID int64) ([]*model.Task, error)
	// Get は指定IDのタスクを返す。
	Get(ctx context.Context, userID, taskID int64) (*model.Task, error)
	// Search はフィルタ条件に一致するタスクを作成日時降順で返す。
	Search(ctx context.Context, userID int64, filter model.TaskFilter) ([]*model.Task, error)
	// Create はタスクを作成して返す。
	Create(ctx context.Context, userID int64, input task.Input) (*model.Task, error)
	// Update は既存タスクを更新して返す。
	Update(ctx context.Context, userID, taskID int64, input task.Input) (*model.Task, error)
	// Delete は指定IDのタスクを削除する。
	Delete(ctx context.Context, userID, taskID int64) error
	// Export はフィルタ条件に一致するタスクをxlsxのバイト列として返す。
	Export(ctx context.Context, userID int64, filter model.TaskFilter) ([]byte, error)
}

// TaskHandler はタスク管理のHTTPハンドラー。
type TaskHandler struct {
	service TaskServiceInterface
}

// NewTaskHandler はTaskHandlerを生成する。
func NewTaskHandler(service TaskServiceInterface) *TaskHandler {
	return &TaskHandler{
		service: service,
	}
}

// --- リクエスト・レスポンス型 ---

// taskRequest はタスクの作成・更新リクエストのボディ。
// status/priority/dueDateは省略可能で、省略時の扱いはサービス層に委ねる。
type taskRequest struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      *string    `json:"status"`
	Priority    *string    `json:"priority"`
	DueDate     *time.Time `json:"dueDate"`
}

// taskResponse はタスクのレスポンス。タイムスタンプはISO-8601形式で出力される。
type taskResponse struct {
	ID          int64              `json:"id"`
	Title       string             `json:"title"`
	Description string             `json:"description,omitempty"`
	Status      model.TaskStatus   `json:"status"`
	Priority    model.TaskPriority `json:"priority"`
	CreatedAt   time.Time          `json:"createdAt"`
	UpdatedAt   time.Time          `json:"updatedAt"`
	DueDate     *time.Time         `json:"dueDate,omitempty"`
}

// toTaskResponse はドメインモデルをレスポンス型に変換する。
func toTaskResponse(t *model.Task) taskResponse {
	return taskResponse{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Status:      t.Status,
		Priority:    t.Priority,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
		DueDate:     t.DueDate,
	}
}

// toTaskResponses はタスク一覧をレスポンス型のスライスに変換する。
func toTaskResponses(tasks []*model.Task) []taskResponse {
	responses := make([]taskResponse, len(tasks))
	for i, t := range tasks {
		responses[i] = toTaskResponse(t)
	}
	return responses
}

// List はユーザーのタスク一覧を取得する。
// GET /api/tasks
func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	tasks, err := h.service.List(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toTaskResponses(tasks))
}

// Get はタスク詳細を取得する。
// GET /api/tasks/{id}
func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	taskID, ok := parseTaskID(w, r)
	if !ok {
		return
	}

	t, err := h.service.Get(r.Context(), userID, taskID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toTaskResponse(t))
}

// Search はフィルタ条件に一致するタスク一覧を取得する。
// GET /api/tasks/search?search=xxx&status=TODO&priority=HIGH
func (h *TaskHandler) Search(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	filter, apiErr := parseTaskFilter(r)
	if apiErr != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, apiErr)
		return
	}

	tasks, err := h.service.Search(r.Context(), userID, filter)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toTaskResponses(tasks))
}

// Create はタスクを作成する。
// POST /api/tasks
func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	input, apiErr := decodeTaskRequest(r)
	if apiErr != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, apiErr)
		return
	}

	created, err := h.service.Create(r.Context(), userID, *input)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toTaskResponse(created))
}

// Update は既存タスクを更新する。
// PUT /api/tasks/{id}
func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	taskID, ok := parseTaskID(w, r)
	if !ok {
		return
	}

	input, apiErr := decodeTaskRequest(r)
	if apiErr != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, apiErr)
		return
	}

	updated, err := h.service.Update(r.Context(), userID, taskID, *input)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toTaskResponse(updated))
}

// Delete はタスクを削除する。
// DELETE /api/tasks/{id}
func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	taskID, ok := parseTaskID(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), userID, taskID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Export はフィルタ条件に一致するタスクをxlsxファイルとしてダウンロードさせる。
// GET /api/tasks/export?search=xxx&status=TODO&priority=HIGH
func (h *TaskHandler) Export(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	filter, apiErr := parseTaskFilter(r)
	if apiErr != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, apiErr)
		return
	}

	data, err := h.service.Export(r.Context(), userID, filter)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	filename := "tasks_" + time.Now().Format(exportFilenameFormat) + ".xlsx"

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Write(data)
}

// --- ヘルパー ---

// requireUserID はコンテキストから認証済みユーザーIDを取得する。
// 取得できない場合は401を書き込み、falseを返す。
func requireUserID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return 0, false
	}
	return userID, true
}

// parseTaskID はURLパラメータからタスクIDを取得する。
// 数値として解析できない場合は400を書き込み、falseを返す。
func parseTaskID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("id", "数値で指定してください"))
		return 0, false
	}
	return id, true
}

// decodeTaskRequest はリクエストボディを解析し、入力検証を行う。
// タイトルは必須・255文字以内。status/priorityは指定された場合のみ定義済み値であること。
func decodeTaskRequest(r *http.Request) (*task.Input, *model.APIError) {
	var req taskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, invalidBodyError()
	}

	if strings.TrimSpace(req.Title) == "" {
		return nil, model.NewValidationError("title", "必須項目です")
	}
	if utf8.RuneCountInString(req.Title) > maxTitleLength {
		return nil, model.NewValidationError("title", "255文字以内で入力してください")
	}

	input := &task.Input{
		Title:       req.Title,
		Description: req.Description,
		DueDate:     req.DueDate,
	}

	if req.Status != nil && *req.Status != "" {
		status, ok := model.ParseTaskStatus(*req.Status)
		if !ok {
			return nil, model.NewValidationError("status", "TODO、IN_PROGRESS、DONEのいずれかを指定してください")
		}
		input.Status = &status
	}

	if req.Priority != nil && *req.Priority != "" {
		priority, ok := model.ParseTaskPriority(*req.Priority)
		if !ok {
			return nil, model.NewValidationError("priority", "LOW、MEDIUM、HIGHのいずれかを指定してください")
		}
		input.Priority = &priority
	}

	return input, nil
}

// parseTaskFilter はクエリパラメータから検索フィルタを構築する。
// 空のパラメータは条件として適用しない。
func parseTaskFilter(r *http.Request) (model.TaskFilter, *model.APIError) {
	filter := model.TaskFilter{
		Text: r.URL.Query().Get("search"),
	}

	if raw := r.URL.Query().Get("status"); raw != "" {
		status, ok := model.ParseTaskStatus(raw)
		if !ok {
			return model.TaskFilter{}, model.NewValidationError("status", "TODO、IN_PROGRESS、DONEのいずれかを指定してください")
		}
		filter.Status = &status
	}

	if raw := r.URL.Query().Get("priority"); raw != "" {
		priority, ok := model.ParseTaskPriority(raw)
		if !ok {
			return model.TaskFilter{}, model.NewValidationError("priority", "LOW、MEDIUM、HIGHのいずれかを指定してください")
		}
		filter.Priority = &priority
	}

	return filter, nil
}

// invalidBodyError はリクエストボディ解析失敗のエラーを生成する。
func invalidBodyError() *model.APIError {
	return &model.APIError{
		Code:     model.ErrCodeValidation,
		Message:  "リクエストボディの解析に失敗しました。",
		Category: "validation",
		Action:   "正しいJSON形式でリクエストしてください。",
	}
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}

// apiErrorResponse はAPIエラーのレスポンスボディ。
type apiErrorResponse struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(apiErrorResponse{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		statusCode := mapAPIErrorToHTTPStatus(apiErr)
		if statusCode >= 500 {
			slog.Error("internal server error", slog.String("error", err.Error()))
		}
		writeAPIErrorResponse(w, statusCode, apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	writeAPIErrorResponse(w, http.StatusInternalServerError, &model.APIError{
		Code:     "INTERNAL_ERROR",
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	})
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeValidation, model.ErrCodeDuplicateEmail:
		return http.StatusBadRequest
	case model.ErrCodeTaskNotFound:
		return http.StatusNotFound
	case model.ErrCodeInvalidCredentials, model.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case model.ErrCodeUserNotFound:
		// 認証通過後の不整合はクライアント起因ではない
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// SetupTaskRoutes はタスク管理関連のルーティングを設定したchi.Routerを返す。
func SetupTaskRoutes(service TaskServiceInterface) http.Handler {
	r := chi.NewRouter()
	h := NewTaskHandler(service)

	r.Route("/api/tasks", func(r chi.Router) {
		r.Get("/", h.List)
		r.Post("/", h.Create)
		r.Get("/search", h.Search)
		r.Get("/export", h.Export)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.Get)
			r.Put("/", h.Update)
			r.Delete("/", h.Delete)
		})
	})

	return r
}

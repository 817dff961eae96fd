package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/taskman/internal/middleware"
	"github.com/hitoshi/taskman/internal/model"
	"github.com/hitoshi/taskman/internal/task"
)

// mockTaskService はTaskServiceInterfaceのテスト用モック。
type mockTaskService struct {
	listFunc   func(ctx context.Context, userID int64) ([]*model.Task, error)
	getFunc    func(ctx context.Context, userID, taskID int64) (*model.Task, error)
	searchFunc func(ctx context.Context, userID int64, filter model.TaskFilter) ([]*model.Task, error)
	createFunc func(ctx context.Context, userID int64, input task.Input) (*model.Task, error)
	updateFunc func(ctx context.Context, userID, taskID int64, input task.Input) (*model.Task, error)
	deleteFunc func(ctx context.Context, userID, taskID int64) error
	exportFunc func(ctx context.Context, userID int64, filter model.TaskFilter) ([]byte, error)
}

var _ TaskServiceInterface = (*mockTaskService)(nil)

func (m *mockTaskService) List(ctx context.Context, userID int64) ([]*model.Task, error) {
	return m.listFunc(ctx, userID)
}

func (m *mockTaskService) Get(ctx context.Context, userID, taskID int64) (*model.Task, error) {
	return m.getFunc(ctx, userID, taskID)
}

func (m *mockTaskService) Search(ctx context.Context, userID int64, filter model.TaskFilter) ([]*model.Task, error) {
	return m.searchFunc(ctx, userID, filter)
}

func (m *mockTaskService) Create(ctx context.Context, userID int64, input task.Input) (*model.Task, error) {
	return m.createFunc(ctx, userID, input)
}

func (m *mockTaskService) Update(ctx context.Context, userID, taskID int64, input task.Input) (*model.Task, error) {
	return m.updateFunc(ctx, userID, taskID, input)
}

func (m *mockTaskService) Delete(ctx context.Context, userID, taskID int64) error {
	return m.deleteFunc(ctx, userID, taskID)
}

func (m *mockTaskService) Export(ctx context.Context, userID int64, filter model.TaskFilter) ([]byte, error) {
	return m.exportFunc(ctx, userID, filter)
}

// serveTaskRequest は認証済みユーザーIDをコンテキストに載せてルーター経由でリクエストを実行する。
func serveTaskRequest(service TaskServiceInterface, req *http.Request, userID int64) *httptest.ResponseRecorder {
	req = req.WithContext(middleware.ContextWithUserID(req.Context(), userID))
	rec := httptest.NewRecorder()
	SetupTaskRoutes(service).ServeHTTP(rec, req)
	return rec
}

func sampleTask(id int64) *model.Task {
	return &model.Task{
		ID:          id,
		UserID:      42,
		Title:       "週報を書く",
		Description: "金曜までに提出",
		Status:      model.TaskStatusTodo,
		Priority:    model.TaskPriorityMedium,
		CreatedAt:   time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
		UpdatedAt:   time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
	}
}

// 一覧取得で200とタスク配列が返ることを検証
func TestTaskHandler_List_Success(t *testing.T) {
	service := &mockTaskService{
		listFunc: func(ctx context.Context, userID int64) ([]*model.Task, error) {
			if userID != 42 {
				t.Errorf("userID = %d, want 42", userID)
			}
			return []*model.Task{sampleTask(1), sampleTask(2)}, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
	rec := serveTaskRequest(service, req, 42)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d\nbody: %s", rec.Code, http.StatusOK, rec.Body.String())
	}

	var resp []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if len(resp) != 2 {
		t.Fatalf("tasks length = %d, want 2", len(resp))
	}
	if resp[0]["title"] != "週報を書く" {
		t.Errorf("title = %v, want %q", resp[0]["title"], "週報を書く")
	}
}

// 認証済みユーザーIDがコンテキストにない場合に401が返ることを検証
func TestTaskHandler_List_MissingUserID(t *testing.T) {
	service := &mockTaskService{
		listFunc: func(ctx context.Context, userID int64) ([]*model.Task, error) {
			t.Fatal("service should not be called without user ID")
			return nil, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
	rec := httptest.NewRecorder()
	SetupTaskRoutes(service).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
	body := decodeErrorBody(t, rec)
	if body["code"] != model.ErrCodeUnauthorized {
		t.Errorf("code = %q, want %q", body["code"], model.ErrCodeUnauthorized)
	}
}

// 詳細取得で200とキャメルケースのJSONが返ることを検証
func TestTaskHandler_Get_Success(t *testing.T) {
	due := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	service := &mockTaskService{
		getFunc: func(ctx context.Context, userID, taskID int64) (*model.Task, error) {
			if taskID != 7 {
				t.Errorf("taskID = %d, want 7", taskID)
			}
			tk := sampleTask(7)
			tk.DueDate = &due
			return tk, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/tasks/7", nil)
	rec := serveTaskRequest(service, req, 42)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d\nbody: %s", rec.Code, http.StatusOK, rec.Body.String())
	}

	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	for _, key := range []string{"id", "title", "description", "status", "priority", "createdAt", "updatedAt", "dueDate"} {
		if _, ok := resp[key]; !ok {
			t.Errorf("response missing field %q", key)
		}
	}
	if resp["id"] != float64(7) {
		t.Errorf("id = %v, want 7", resp["id"])
	}
}

// 存在しないタスクの取得で404が返ることを検証
func TestTaskHandler_Get_NotFound(t *testing.T) {
	service := &mockTaskService{
		getFunc: func(ctx context.Context, userID, taskID int64) (*model.Task, error) {
			return nil, model.NewTaskNotFoundError(taskID)
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/tasks/999", nil)
	rec := serveTaskRequest(service, req, 42)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
	body := decodeErrorBody(t, rec)
	if body["code"] != model.ErrCodeTaskNotFound {
		t.Errorf("code = %q, want %q", body["code"], model.ErrCodeTaskNotFound)
	}
}

// 数値でないタスクIDで400が返ることを検証
func TestTaskHandler_Get_InvalidID(t *testing.T) {
	service := &mockTaskService{
		getFunc: func(ctx context.Context, userID, taskID int64) (*model.Task, error) {
			t.Fatal("service should not be called for invalid ID")
			return nil, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/tasks/abc", nil)
	rec := serveTaskRequest(service, req, 42)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

// 検索クエリパラメータがフィルタとしてサービスに渡ることを検証
func TestTaskHandler_Search_FilterParsing(t *testing.T) {
	var captured model.TaskFilter
	service := &mockTaskService{
		searchFunc: func(ctx context.Context, userID int64, filter model.TaskFilter) ([]*model.Task, error) {
			captured = filter
			return []*model.Task{}, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/tasks/search?search=会議&status=IN_PROGRESS&priority=HIGH", nil)
	rec := serveTaskRequest(service, req, 42)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d\nbody: %s", rec.Code, http.StatusOK, rec.Body.String())
	}
	if captured.Text != "会議" {
		t.Errorf("filter.Text = %q, want %q", captured.Text, "会議")
	}
	if captured.Status == nil || *captured.Status != model.TaskStatusInProgress {
		t.Errorf("filter.Status = %v, want IN_PROGRESS", captured.Status)
	}
	if captured.Priority == nil || *captured.Priority != model.TaskPriorityHigh {
		t.Errorf("filter.Priority = %v, want HIGH", captured.Priority)
	}
}

// 未定義のステータス・優先度での検索が400になることを検証
func TestTaskHandler_Search_InvalidFilter(t *testing.T) {
	service := &mockTaskService{
		searchFunc: func(ctx context.Context, userID int64, filter model.TaskFilter) ([]*model.Task, error) {
			t.Fatal("service should not be called for invalid filter")
			return nil, nil
		},
	}

	cases := []struct {
		name  string
		query string
	}{
		{"status不正", "?status=WAITING"},
		{"priority不正", "?priority=URGENT"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/tasks/search"+tc.query, nil)
			rec := serveTaskRequest(service, req, 42)

			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
			}
			body := decodeErrorBody(t, rec)
			if body["code"] != model.ErrCodeValidation {
				t.Errorf("code = %q, want %q", body["code"], model.ErrCodeValidation)
			}
		})
	}
}

// タスク作成で201が返り、入力がサービスに渡ることを検証
func TestTaskHandler_Create_Success(t *testing.T) {
	var captured task.Input
	service := &mockTaskService{
		createFunc: func(ctx context.Context, userID int64, input task.Input) (*model.Task, error) {
			captured = input
			tk := sampleTask(1)
			tk.Title = input.Title
			return tk, nil
		},
	}

	body := `{"title":"資料作成","description":"来週の会議用","status":"IN_PROGRESS","priority":"HIGH"}`
	req := httptest.NewRequest(http.MethodPost, "/api/tasks", strings.NewReader(body))
	rec := serveTaskRequest(service, req, 42)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d\nbody: %s", rec.Code, http.StatusCreated, rec.Body.String())
	}
	if captured.Title != "資料作成" {
		t.Errorf("input.Title = %q, want %q", captured.Title, "資料作成")
	}
	if captured.Status == nil || *captured.Status != model.TaskStatusInProgress {
		t.Errorf("input.Status = %v, want IN_PROGRESS", captured.Status)
	}
	if captured.Priority == nil || *captured.Priority != model.TaskPriorityHigh {
		t.Errorf("input.Priority = %v, want HIGH", captured.Priority)
	}
}

// status/priority省略時にnilのままサービスへ渡ることを検証
func TestTaskHandler_Create_OmittedOptionalFields(t *testing.T) {
	var captured task.Input
	service := &mockTaskService{
		createFunc: func(ctx context.Context, userID int64, input task.Input) (*model.Task, error) {
			captured = input
			return sampleTask(1), nil
		},
	}

	body := `{"title":"資料作成"}`
	req := httptest.NewRequest(http.MethodPost, "/api/tasks", strings.NewReader(body))
	rec := serveTaskRequest(service, req, 42)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d\nbody: %s", rec.Code, http.StatusCreated, rec.Body.String())
	}
	if captured.Status != nil {
		t.Errorf("input.Status = %v, want nil", captured.Status)
	}
	if captured.Priority != nil {
		t.Errorf("input.Priority = %v, want nil", captured.Priority)
	}
	if captured.DueDate != nil {
		t.Errorf("input.DueDate = %v, want nil", captured.DueDate)
	}
}

// タスク作成の入力検証を検証
func TestTaskHandler_Create_Validation(t *testing.T) {
	service := &mockTaskService{
		createFunc: func(ctx context.Context, userID int64, input task.Input) (*model.Task, error) {
			t.Fatal("service should not be called for invalid input")
			return nil, nil
		},
	}

	longTitle := strings.Repeat("あ", 256)
	cases := []struct {
		name string
		body string
	}{
		{"不正なJSON", `{not json`},
		{"title欠落", `{"description":"説明のみ"}`},
		{"titleが空白のみ", `{"title":"   "}`},
		{"titleが256文字", `{"title":"` + longTitle + `"}`},
		{"status不正", `{"title":"t","status":"WAITING"}`},
		{"priority不正", `{"title":"t","priority":"URGENT"}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/tasks", strings.NewReader(tc.body))
			rec := serveTaskRequest(service, req, 42)

			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
			}
			body := decodeErrorBody(t, rec)
			if body["code"] != model.ErrCodeValidation {
				t.Errorf("code = %q, want %q", body["code"], model.ErrCodeValidation)
			}
		})
	}
}

// タスク更新で200と更新後のタスクが返ることを検証
func TestTaskHandler_Update_Success(t *testing.T) {
	service := &mockTaskService{
		updateFunc: func(ctx context.Context, userID, taskID int64, input task.Input) (*model.Task, error) {
			if taskID != 7 {
				t.Errorf("taskID = %d, want 7", taskID)
			}
			tk := sampleTask(7)
			tk.Title = input.Title
			tk.Status = model.TaskStatusDone
			return tk, nil
		},
	}

	body := `{"title":"週報を書く","status":"DONE"}`
	req := httptest.NewRequest(http.MethodPut, "/api/tasks/7", strings.NewReader(body))
	rec := serveTaskRequest(service, req, 42)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d\nbody: %s", rec.Code, http.StatusOK, rec.Body.String())
	}

	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp["status"] != "DONE" {
		t.Errorf("status = %v, want DONE", resp["status"])
	}
}

// 存在しないタスクの更新で404が返ることを検証
func TestTaskHandler_Update_NotFound(t *testing.T) {
	service := &mockTaskService{
		updateFunc: func(ctx context.Context, userID, taskID int64, input task.Input) (*model.Task, error) {
			return nil, model.NewTaskNotFoundError(taskID)
		},
	}

	body := `{"title":"更新"}`
	req := httptest.NewRequest(http.MethodPut, "/api/tasks/999", strings.NewReader(body))
	rec := serveTaskRequest(service, req, 42)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

// タスク削除で204が返り、ボディが空であることを検証
func TestTaskHandler_Delete_Success(t *testing.T) {
	service := &mockTaskService{
		deleteFunc: func(ctx context.Context, userID, taskID int64) error {
			if taskID != 7 {
				t.Errorf("taskID = %d, want 7", taskID)
			}
			return nil
		},
	}

	req := httptest.NewRequest(http.MethodDelete, "/api/tasks/7", nil)
	rec := serveTaskRequest(service, req, 42)

	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNoContent)
	}
	if rec.Body.Len() != 0 {
		t.Errorf("body = %q, want empty", rec.Body.String())
	}
}

// 存在しないタスクの削除で404が返ることを検証
func TestTaskHandler_Delete_NotFound(t *testing.T) {
	service := &mockTaskService{
		deleteFunc: func(ctx context.Context, userID, taskID int64) error {
			return model.NewTaskNotFoundError(taskID)
		},
	}

	req := httptest.NewRequest(http.MethodDelete, "/api/tasks/999", nil)
	rec := serveTaskRequest(service, req, 42)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

// エクスポートでxlsx用のヘッダーとボディが返ることを検証
func TestTaskHandler_Export_Success(t *testing.T) {
	data := []byte("xlsx-bytes")
	service := &mockTaskService{
		exportFunc: func(ctx context.Context, userID int64, filter model.TaskFilter) ([]byte, error) {
			return data, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/tasks/export?status=TODO", nil)
	rec := serveTaskRequest(service, req, 42)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d\nbody: %s", rec.Code, http.StatusOK, rec.Body.String())
	}

	if got := rec.Header().Get("Content-Type"); got != xlsxContentType {
		t.Errorf("Content-Type = %q, want %q", got, xlsxContentType)
	}
	disposition := rec.Header().Get("Content-Disposition")
	if !strings.HasPrefix(disposition, "attachment; filename=tasks_") {
		t.Errorf("Content-Disposition = %q, want attachment with tasks_ prefix", disposition)
	}
	if !strings.HasSuffix(disposition, ".xlsx") {
		t.Errorf("Content-Disposition = %q, want .xlsx suffix", disposition)
	}
	if got := rec.Header().Get("Content-Length"); got != strconv.Itoa(len(data)) {
		t.Errorf("Content-Length = %q, want %d", got, len(data))
	}
	if rec.Body.String() != string(data) {
		t.Errorf("body = %q, want %q", rec.Body.String(), data)
	}
}

// APIError以外のエラーが500とINTERNAL_ERRORになることを検証
func TestTaskHandler_List_UnexpectedError(t *testing.T) {
	service := &mockTaskService{
		listFunc: func(ctx context.Context, userID int64) ([]*model.Task, error) {
			return nil, errors.New("connection reset")
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
	rec := serveTaskRequest(service, req, 42)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}
	body := decodeErrorBody(t, rec)
	if body["code"] != "INTERNAL_ERROR" {
		t.Errorf("code = %q, want INTERNAL_ERROR", body["code"])
	}
}

// APIErrorコードとHTTPステータスコードの対応を検証
func TestMapAPIErrorToHTTPStatus(t *testing.T) {
	cases := []struct {
		code string
		want int
	}{
		{model.ErrCodeValidation, http.StatusBadRequest},
		{model.ErrCodeDuplicateEmail, http.StatusBadRequest},
		{model.ErrCodeTaskNotFound, http.StatusNotFound},
		{model.ErrCodeInvalidCredentials, http.StatusUnauthorized},
		{model.ErrCodeUnauthorized, http.StatusUnauthorized},
		{model.ErrCodeUserNotFound, http.StatusInternalServerError},
		{"UNKNOWN_CODE", http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			got := mapAPIErrorToHTTPStatus(&model.APIError{Code: tc.code})
			if got != tc.want {
				t.Errorf("mapAPIErrorToHTTPStatus(%s) = %d, want %d", tc.code, got, tc.want)
			}
		})
	}
}

// Package task はタスクのCRUD・検索・エクスポートのビジネスロジックを提供する。
package task

import (
	"context"
	"fmt"
	"time"

	"github.com/hitoshi/taskman/internal/model"
	"github.com/hitoshi/taskman/internal/repository"
	"github.com/hitoshi/taskman/internal/security"
)

// Input はタスクの作成・更新リクエストを表す。
// Status/Priority/DueDateがnilの場合は「指定なし」を意味する。
type Input struct {
	Title       string
	Description string
	Status      *model.TaskStatus
	Priority    *model.TaskPriority
	DueDate     *time.Time
}

// ExportWriter はタスク一覧をドキュメントのバイト列に変換するコーデックのインターフェース。
type ExportWriter interface {
	Write(tasks []*model.Task) ([]byte, error)
}

// ExportRecorder はエクスポート件数のメトリクス記録インターフェース。
type ExportRecorder interface {
	RecordTasksExported(count int)
}

// Service はタスク管理のビジネスロジックを提供する。
type Service struct {
	taskRepo  repository.TaskRepository
	sanitizer security.TextSanitizerService
	writer    ExportWriter
	recorder  ExportRecorder
}

// NewService はServiceを生成する。
func NewService(
	taskRepo repository.TaskRepository,
	sanitizer security.TextSanitizerService,
	writer ExportWriter,
	recorder ExportRecorder,
) *Service {
	return &Service{
		taskRepo:  taskRepo,
		sanitizer: sanitizer,
		writer:    writer,
		recorder:  recorder,
	}
}

// sanitizeTitle はタイトルをサニタイズし、結果が空の場合はバリデーションエラーを返す。
// 境界層の必須チェックはタグ除去前の文字列に対して行われるため、
// タグのみで構成されたタイトルはここで拒否する。
func (s *Service) sanitizeTitle(title string) (string, error) {
	sanitized := s.sanitizer.Sanitize(title)
	if sanitized == "" {
		return "", model.NewValidationError("title", "有効な文字を1文字以上入力してください")
	}
	return sanitized, nil
}

// List はユーザーのタスク一覧を作成日時降順で返す。
func (s *Service) List(ctx context.Context, userID int64) ([]*model.Task, error) {
	return s.taskRepo.ListByUser(ctx, userID)
}

// Get は指定IDのタスクを返す。
// 存在しない、または他ユーザー所有の場合はTASK_NOT_FOUNDエラーを返す。
func (s *Service) Get(ctx context.Context, userID, taskID int64) (*model.Task, error) {
	task, err := s.taskRepo.FindByIDAndUser(ctx, taskID, userID)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, model.NewTaskNotFoundError(taskID)
	}
	return task, nil
}

// Search はフィルタ条件に一致するユーザーのタスクを作成日時降順で返す。
// Textは大文字小文字を区別しない部分一致でタイトルまたは説明に適用される。
// 空のText、nilのStatus/Priorityは条件として適用されず、条件はANDで結合される。
func (s *Service) Search(ctx context.Context, userID int64, filter model.TaskFilter) ([]*model.Task, error) {
	return s.taskRepo.Search(ctx, userID, filter)
}

// Create はタスクを作成して返す。
// Statusが未指定の場合はTODO、Priorityが未指定の場合はMEDIUMを設定する。
// サニタイズ後にタイトルが空になる場合はバリデーションエラーを返す。
// IDとcreated_at/updated_atはストアが採番する。
func (s *Service) Create(ctx context.Context, userID int64, input Input) (*model.Task, error) {
	title, err := s.sanitizeTitle(input.Title)
	if err != nil {
		return nil, err
	}

	status := model.TaskStatusTodo
	if input.Status != nil {
		status = *input.Status
	}
	priority := model.TaskPriorityMedium
	if input.Priority != nil {
		priority = *input.Priority
	}

	return s.taskRepo.Create(ctx, &model.Task{
		UserID:      userID,
		Title:       title,
		Description: s.sanitizer.Sanitize(input.Description),
		Status:      status,
		Priority:    priority,
		DueDate:     input.DueDate,
	})
}

// Update は既存タスクを更新して返す。
// タイトル・説明・期日は無条件に置き換える（説明・期日はクリア可能）。
// サニタイズ後にタイトルが空になる場合はバリデーションエラーを返す。
// Status/Priorityはnilでない場合のみ置き換え、nilの場合は保存済みの値を維持する。
// updated_atはストアが更新する。対象が存在しない場合はTASK_NOT_FOUNDエラーを返す。
func (s *Service) Update(ctx context.Context, userID, taskID int64, input Input) (*model.Task, error) {
	title, err := s.sanitizeTitle(input.Title)
	if err != nil {
		return nil, err
	}

	existing, err := s.taskRepo.FindByIDAndUser(ctx, taskID, userID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, model.NewTaskNotFoundError(taskID)
	}

	existing.Title = title
	existing.Description = s.sanitizer.Sanitize(input.Description)
	if input.Status != nil {
		existing.Status = *input.Status
	}
	if input.Priority != nil {
		existing.Priority = *input.Priority
	}
	existing.DueDate = input.DueDate

	updated, err := s.taskRepo.Update(ctx, existing)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		// 読み取りと書き込みの間に削除された
		return nil, model.NewTaskNotFoundError(taskID)
	}

	return updated, nil
}

// Delete は指定IDのタスクを削除する。
// 対象が存在しない場合はTASK_NOT_FOUNDエラーを返し、ストアは変更しない。
func (s *Service) Delete(ctx context.Context, userID, taskID int64) error {
	deleted, err := s.taskRepo.Delete(ctx, taskID, userID)
	if err != nil {
		return err
	}
	if !deleted {
		return model.NewTaskNotFoundError(taskID)
	}
	return nil
}

// Export はフィルタ条件に一致するタスクをスプレッドシートのバイト列として返す。
// 検索条件の意味はSearchと同一。結果が空でもヘッダー行のみのドキュメントを返す。
func (s *Service) Export(ctx context.Context, userID int64, filter model.TaskFilter) ([]byte, error) {
	tasks, err := s.taskRepo.Search(ctx, userID, filter)
	if err != nil {
		return nil, err
	}

	data, err := s.writer.Write(tasks)
	if err != nil {
		return nil, fmt.Errorf("タスクのエクスポートに失敗しました: %w", err)
	}

	if s.recorder != nil {
		s.recorder.RecordTasksExported(len(tasks))
	}

	return data, nil
}

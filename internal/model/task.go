// Package model はドメインモデルを定義する。
package model

import "time"

// Task は追跡対象の作業単位を表す。
type Task struct {
	ID          int64
	UserID      int64
	Title       string
	Description string
	Status      TaskStatus
	Priority    TaskPriority
	DueDate     *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TaskStatus はタスクの進行状態を表す。
type TaskStatus string

const (
	// TaskStatusTodo は未着手状態。
	TaskStatusTodo TaskStatus = "TODO"
	// TaskStatusInProgress は作業中状態。
	TaskStatusInProgress TaskStatus = "IN_PROGRESS"
	// TaskStatusDone は完了状態。
	TaskStatusDone TaskStatus = "DONE"
)

// ParseTaskStatus は文字列をTaskStatusに変換する。
// 未定義の値の場合はfalseを返す。
func ParseTaskStatus(s string) (TaskStatus, bool) {
	switch TaskStatus(s) {
	case TaskStatusTodo, TaskStatusInProgress, TaskStatusDone:
		return TaskStatus(s), true
	}
	return "", false
}

// TaskPriority はタスクの優先度を表す。
type TaskPriority string

const (
	// TaskPriorityLow は低優先度。
	TaskPriorityLow TaskPriority = "LOW"
	// TaskPriorityMedium は中優先度。
	TaskPriorityMedium TaskPriority = "MEDIUM"
	// TaskPriorityHigh は高優先度。
	TaskPriorityHigh TaskPriority = "HIGH"
)

// ParseTaskPriority は文字列をTaskPriorityに変換する。
// 未定義の値の場合はfalseを返す。
func ParseTaskPriority(s string) (TaskPriority, bool) {
	switch TaskPriority(s) {
	case TaskPriorityLow, TaskPriorityMedium, TaskPriorityHigh:
		return TaskPriority(s), true
	}
	return "", false
}

// TaskFilter はタスク検索の条件を表す。
// Textが空の場合は全文一致条件を適用しない。
// Status/Priorityがnilの場合はその条件を適用しない。
type TaskFilter struct {
	Text     string
	Status   *TaskStatus
	Priority *TaskPriority
}

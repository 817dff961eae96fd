// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/taskman/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
// 登録後のユーザーは更新・削除の対象外のため、参照系と作成のみを公開する。
type UserRepository interface {
	// ExistsByEmail は指定メールアドレスのユーザーが存在するかを返す。
	ExistsByEmail(ctx context.Context, email string) (bool, error)

	// Create はユーザーを作成し、IDとタイムスタンプを採番して返す。
	// メールアドレスの一意制約違反はIsUniqueViolationで判定できるエラーを返す。
	Create(ctx context.Context, user *model.User) (*model.User, error)

	// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)
}

// TaskRepository はタスクデータの永続化インターフェース。
// すべての操作は所有ユーザーのIDでスコープされる。
type TaskRepository interface {
	// ListByUser はユーザーのタスク一覧を作成日時降順で返す。
	ListByUser(ctx context.Context, userID int64) ([]*model.Task, error)

	// FindByIDAndUser は指定IDかつ指定ユーザー所有のタスクを取得する。
	// 見つからない場合はnilを返す。
	FindByIDAndUser(ctx context.Context, id, userID int64) (*model.Task, error)

	// Search はフィルタ条件に一致するユーザーのタスクを作成日時降順で返す。
	// Textは大文字小文字を区別しない部分一致でタイトルまたは説明に適用する。
	// 空のTextとnilのStatus/Priorityは条件として適用しない。条件はANDで結合する。
	Search(ctx context.Context, userID int64, filter model.TaskFilter) ([]*model.Task, error)

	// Create はタスクを作成し、IDとcreated_at/updated_atを採番して返す。
	Create(ctx context.Context, task *model.Task) (*model.Task, error)

	// Update は既存タスクを上書き更新し、updated_atを更新して返す。
	// 対象が存在しない場合はnilを返す。
	Update(ctx context.Context, task *model.Task) (*model.Task, error)

	// Delete は指定IDかつ指定ユーザー所有のタスクを削除する。
	// 削除対象が存在した場合はtrueを返す。
	Delete(ctx context.Context, id, userID int64) (bool, error)
}

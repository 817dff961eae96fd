package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/hitoshi/taskman/internal/model"
)

// taskColumns はタスク取得クエリで共通して使用するカラムリスト。
const taskColumns = `id, user_id, title, description, status, priority, due_date, created_at, updated_at`

// PostgresTaskRepo はPostgreSQLを使用したタスクリポジトリ。
type PostgresTaskRepo struct {
	db *sql.DB
}

// NewPostgresTaskRepo はPostgresTaskRepoを生成する。
func NewPostgresTaskRepo(db *sql.DB) *PostgresTaskRepo {
	return &PostgresTaskRepo{db: db}
}

// scanTask は1行分のタスクをスキャンする。
func scanTask(row interface{ Scan(dest ...any) error }) (*model.Task, error) {
	task := &model.Task{}
	var dueDate sql.NullTime

	err := row.Scan(
		&task.ID, &task.UserID, &task.Title, &task.Description,
		&task.Status, &task.Priority, &dueDate, &task.CreatedAt, &task.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if dueDate.Valid {
		task.DueDate = &dueDate.Time
	}
	return task, nil
}

// ListByUser はユーザーのタスク一覧を作成日時降順で返す。
func (r *PostgresTaskRepo) ListByUser(ctx context.Context, userID int64) ([]*model.Task, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+taskColumns+` FROM tasks
		 WHERE user_id = $1
		 ORDER BY created_at DESC, id DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("タスク一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	return collectTasks(rows)
}

// FindByIDAndUser は指定IDかつ指定ユーザー所有のタスクを取得する。見つからない場合はnilを返す。
func (r *PostgresTaskRepo) FindByIDAndUser(ctx context.Context, id, userID int64) (*model.Task, error) {
	task, err := scanTask(r.db.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = $1 AND user_id = $2`,
		id, userID,
	))

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("タスクの取得に失敗しました: %w", err)
	}

	return task, nil
}

// Search はフィルタ条件に一致するユーザーのタスクを作成日時降順で返す。
// Textはタイトルまたは説明への大文字小文字を区別しない部分一致。
// 空のText、nilのStatus/Priorityは条件を適用しない。条件はANDで結合する。
func (r *PostgresTaskRepo) Search(ctx context.Context, userID int64, filter model.TaskFilter) ([]*model.Task, error) {
	var pattern string
	if filter.Text != "" {
		pattern = "%" + escapeLikePattern(filter.Text) + "%"
	}

	var status, priority string
	if filter.Status != nil {
		status = string(*filter.Status)
	}
	if filter.Priority != nil {
		priority = string(*filter.Priority)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+taskColumns+` FROM tasks
		 WHERE user_id = $1
		   AND ($2 = '' OR title ILIKE $2 OR description ILIKE $2)
		   AND ($3 = '' OR status = $3)
		   AND ($4 = '' OR priority = $4)
		 ORDER BY created_at DESC, id DESC`,
		userID, pattern, status, priority,
	)
	if err != nil {
		return nil, fmt.Errorf("タスクの検索に失敗しました: %w", err)
	}
	defer rows.Close()

	return collectTasks(rows)
}

// Create はタスクを作成し、IDとcreated_at/updated_atを採番して返す。
func (r *PostgresTaskRepo) Create(ctx context.Context, task *model.Task) (*model.Task, error) {
	now := time.Now().UTC()

	saved := *task
	saved.CreatedAt = now
	saved.UpdatedAt = now

	err := r.db.QueryRowContext(ctx,
		`INSERT INTO tasks (user_id, title, description, status, priority, due_date, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id`,
		saved.UserID, saved.Title, saved.Description, saved.Status, saved.Priority,
		nullableTime(saved.DueDate), saved.CreatedAt, saved.UpdatedAt,
	).Scan(&saved.ID)
	if err != nil {
		return nil, fmt.Errorf("タスクの作成に失敗しました: %w", err)
	}

	return &saved, nil
}

// Update は既存タスクを上書き更新し、updated_atを更新して返す。
// 対象が存在しない場合はnilを返す。
func (r *PostgresTaskRepo) Update(ctx context.Context, task *model.Task) (*model.Task, error) {
	saved := *task
	saved.UpdatedAt = time.Now().UTC()

	err := r.db.QueryRowContext(ctx,
		`UPDATE tasks
		 SET title = $1, description = $2, status = $3, priority = $4, due_date = $5, updated_at = $6
		 WHERE id = $7 AND user_id = $8
		 RETURNING created_at`,
		saved.Title, saved.Description, saved.Status, saved.Priority,
		nullableTime(saved.DueDate), saved.UpdatedAt, saved.ID, saved.UserID,
	).Scan(&saved.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("タスクの更新に失敗しました: %w", err)
	}

	return &saved, nil
}

// Delete は指定IDかつ指定ユーザー所有のタスクを削除する。
// 削除対象が存在した場合はtrueを返す。
func (r *PostgresTaskRepo) Delete(ctx context.Context, id, userID int64) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM tasks WHERE id = $1 AND user_id = $2`,
		id, userID,
	)
	if err != nil {
		return false, fmt.Errorf("タスクの削除に失敗しました: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("削除件数の取得に失敗しました: %w", err)
	}

	return rowsAffected > 0, nil
}

// collectTasks はクエリ結果の全行をスキャンして返す。
func collectTasks(rows *sql.Rows) ([]*model.Task, error) {
	tasks := []*model.Task{}
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("タスク行のスキャンに失敗しました: %w", err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("タスク行の読み取りに失敗しました: %w", err)
	}
	return tasks, nil
}

// escapeLikePattern はLIKE/ILIKEのワイルドカード文字をエスケープする。
// 検索文字列中の % と _ をリテラルとして扱うため。
func escapeLikePattern(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}

// nullableTime は*time.TimeをNULL許容のバインド値に変換する。
func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

// compile-time interface check
var _ TaskRepository = (*PostgresTaskRepo)(nil)

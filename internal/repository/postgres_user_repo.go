package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/hitoshi/taskman/internal/model"
)

// pgUniqueViolation はPostgreSQLの一意制約違反を示すエラーコード。
const pgUniqueViolation = "23505"

// IsUniqueViolation はエラーがPostgreSQLの一意制約違反かどうかを判定する。
// 重複チェックとINSERTの間の競合で発生する二次的な失敗経路の判定に使用する。
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pgUniqueViolation
}

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

// ExistsByEmail は指定メールアドレスのユーザーが存在するかを返す。
func (r *PostgresUserRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE email = $1)`,
		email,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check email existence: %w", err)
	}
	return exists, nil
}

// Create はユーザーを作成し、IDとタイムスタンプを採番して返す。
func (r *PostgresUserRepo) Create(ctx context.Context, user *model.User) (*model.User, error) {
	now := time.Now().UTC()

	saved := *user
	saved.CreatedAt = now
	saved.UpdatedAt = now

	err := r.db.QueryRowContext(ctx,
		`INSERT INTO users (name, email, password_hash, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id`,
		saved.Name, saved.Email, saved.PasswordHash, saved.CreatedAt, saved.UpdatedAt,
	).Scan(&saved.ID)
	if err != nil {
		if IsUniqueViolation(err) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}

	return &saved, nil
}

// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	user := &model.User{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, email, name, password_hash, created_at, updated_at
		 FROM users WHERE email = $1`,
		email,
	).Scan(&user.ID, &user.Email, &user.Name, &user.PasswordHash, &user.CreatedAt, &user.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}

	return user, nil
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)

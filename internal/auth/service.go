// Package auth はユーザー登録・ログインとトークン発行を提供する。
package auth

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/taskman/internal/model"
	"github.com/hitoshi/taskman/internal/repository"
)

// Result は登録・ログイン成功時のレスポンス。
type Result struct {
	Token string
	Email string
	Name  string
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	userRepo repository.UserRepository
	hasher   *PasswordHasher
	issuer   *TokenIssuer
}

// NewService はServiceを生成する。
func NewService(userRepo repository.UserRepository, hasher *PasswordHasher, issuer *TokenIssuer) *Service {
	return &Service{
		userRepo: userRepo,
		hasher:   hasher,
		issuer:   issuer,
	}
}

// Register は新規ユーザーを登録し、トークンを発行する。
// メールアドレスが登録済みの場合はDUPLICATE_EMAILエラーを返す。
// 重複チェックはINSERT前に行うが、チェックとINSERTの間の競合で発生する
// 一意制約違反も同じエラーにマップする。
func (s *Service) Register(ctx context.Context, name, email, rawPassword string) (*Result, error) {
	exists, err := s.userRepo.ExistsByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to check email existence: %w", err)
	}
	if exists {
		return nil, model.NewDuplicateEmailError(email)
	}

	hash, err := s.hasher.Hash(rawPassword)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := s.userRepo.Create(ctx, &model.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
	})
	if err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, model.NewDuplicateEmailError(email)
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	token, err := s.issuer.Issue(user)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}

	slog.Info("user registered",
		slog.Int64("user_id", user.ID),
	)

	return &Result{Token: token, Email: user.Email, Name: user.Name}, nil
}

// authenticate は保存済みハッシュに対して資格情報を照合する。
// 失敗理由は呼び出し側に漏らさず、常にINVALID_CREDENTIALSを返す。
func (s *Service) authenticate(ctx context.Context, email, rawPassword string) error {
	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("failed to find user by email: %w", err)
	}
	if user == nil || !s.hasher.Verify(rawPassword, user.PasswordHash) {
		return model.NewInvalidCredentialsError()
	}
	return nil
}

// Login は資格情報を検証し、トークンを発行する。
// メールアドレス未登録とパスワード不一致はどちらもINVALID_CREDENTIALSを返し、
// 呼び出し側から区別できないようにする。
// 検証通過後にユーザーが取得できない不整合はUSER_NOT_FOUND（内部エラー扱い）を返す。
func (s *Service) Login(ctx context.Context, email, rawPassword string) (*Result, error) {
	if err := s.authenticate(ctx, email, rawPassword); err != nil {
		return nil, err
	}

	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	if user == nil {
		// 検証は通ったのにユーザーが存在しない。クライアント起因ではない。
		slog.Error("authenticated user missing from store",
			slog.String("email", email),
		)
		return nil, model.NewUserNotFoundError()
	}

	token, err := s.issuer.Issue(user)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}

	slog.Info("user logged in",
		slog.Int64("user_id", user.ID),
	)

	return &Result{Token: token, Email: user.Email, Name: user.Name}, nil
}

package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// DefaultBcryptCost はbcryptハッシュのデフォルトコスト。
// コスト12はハッシュ計算時間とのバランスが取れた強度を提供する。
const DefaultBcryptCost = 12

// PasswordHasher はパスワードの不可逆ハッシュ化と照合を提供する。
type PasswordHasher struct {
	cost int
}

// NewPasswordHasher はPasswordHasherを生成する。
// costが0以下の場合はDefaultBcryptCostを使用する。
func NewPasswordHasher(cost int) *PasswordHasher {
	if cost <= 0 {
		cost = DefaultBcryptCost
	}
	return &PasswordHasher{cost: cost}
}

// Hash は生パスワードのbcryptハッシュを生成する。
func (h *PasswordHasher) Hash(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(bytes), nil
}

// Verify は生パスワードがハッシュと一致するかを返す。
func (h *PasswordHasher) Verify(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

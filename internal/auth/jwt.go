package auth

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/hitoshi/taskman/internal/model"
)

var (
	// ErrInvalidToken はトークンが不正な場合に返される。
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpiredToken はトークンが期限切れの場合に返される。
	ErrExpiredToken = errors.New("token has expired")
)

// TokenConfig はトークン発行の設定。
// 署名鍵と有効期間はグローバル状態ではなく構築時に注入する。
type TokenConfig struct {
	SecretKey string
	Expiry    time.Duration
	Issuer    string
}

// TokenClaims はJWTトークンのカスタムクレーム。
type TokenClaims struct {
	UserID int64  `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// TokenIssuer は署名付き・期限付きベアラートークンの発行と検証を行う。
// トークンはステートレスであり、サーバー側にセッションを保持しない。
type TokenIssuer struct {
	config TokenConfig
}

// NewTokenIssuer はTokenIssuerを生成する。
func NewTokenIssuer(config TokenConfig) *TokenIssuer {
	return &TokenIssuer{config: config}
}

// Issue は指定ユーザーの署名付きトークンを発行する。
// HS256で署名し、有効期限・発行時刻・一意なjtiを含める。
func (i *TokenIssuer) Issue(user *model.User) (string, error) {
	now := time.Now()
	claims := TokenClaims{
		UserID: user.ID,
		Email:  user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.config.Issuer,
			Subject:   strconv.FormatInt(user.ID, 10),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.config.Expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ID:        uuid.New().String(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(i.config.SecretKey))
}

// Validate はトークンの署名と有効期限を検証し、クレームを返す。
// 署名方式がHMAC以外の場合はErrInvalidTokenを返す。
func (i *TokenIssuer) Validate(tokenString string) (*TokenClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &TokenClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(i.config.SecretKey), nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*TokenClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// Package security はアプリケーションのセキュリティ機能を提供する。
//
// TextSanitizerService はタスクのタイトル・説明として保存される文字列を
// サニタイズし、格納型XSSのリスクからユーザーを保護する。
// タスクのテキストフィールドはプレーンテキストとして扱うため、
// bluemondayのStrictPolicyですべてのHTMLタグを除去する。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizerService はテキストのサニタイズ機能のインターフェースを定義する。
// タスクの作成・更新時に使用される。
type TextSanitizerService interface {
	// Sanitize は入力文字列からすべてのHTMLタグを除去し、前後の空白を取り除く。
	// 空文字列の入力には空文字列を返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(raw string) string
}

// textSanitizer はTextSanitizerServiceの実装。
// bluemondayのポリシーを保持し、スレッドセーフにサニタイズ処理を行う。
type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerServiceの新しいインスタンスを生成する。
// StrictPolicyはすべてのタグ・属性を除去し、テキストノードのみを残す。
func NewTextSanitizer() *textSanitizer {
	return &textSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Sanitize は入力文字列からすべてのHTMLタグを除去し、前後の空白を取り除く。
func (s *textSanitizer) Sanitize(raw string) string {
	if raw == "" {
		return ""
	}
	// StrictPolicyはテキストをHTMLエスケープして返すため、
	// プレーンテキストとして保存する前にエスケープを戻す
	return strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(raw)))
}

// compile-time interface check
var _ TextSanitizerService = (*textSanitizer)(nil)

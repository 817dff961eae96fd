package security

import "testing"

// textSanitizerはTextSanitizerServiceインターフェースを満たすことを検証
func TestTextSanitizer_ImplementsInterface(t *testing.T) {
	var _ TextSanitizerService = NewTextSanitizer()
}

// HTMLタグが除去され、テキストのみが残ることを検証
func TestTextSanitizer_StripsHTMLTags(t *testing.T) {
	s := NewTextSanitizer()

	cases := []struct {
		name  string
		input string
		want  string
	}{
		{"scriptタグ", `<script>alert('xss')</script>レポート作成`, "レポート作成"},
		{"imgタグのonerror", `<img src=x onerror=alert(1)>買い物`, "買い物"},
		{"通常のタグ", `<b>重要な</b>タスク`, "重要なタスク"},
		{"aタグ", `<a href="https://evil.example">リンク</a>`, "リンク"},
		{"ネストしたタグ", `<div><span>会議の準備</span></div>`, "会議の準備"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := s.Sanitize(tc.input)
			if got != tc.want {
				t.Errorf("Sanitize(%q) = %q, want %q", tc.input, got, tc.want)
			}
		})
	}
}

// プレーンテキストがそのまま保持されることを検証
func TestTextSanitizer_PreservesPlainText(t *testing.T) {
	s := NewTextSanitizer()

	cases := []string{
		"週次レポートの作成",
		"Tom & Jerry",
		"進捗 50% 完了",
		"a < b かつ b > c",
	}

	for _, input := range cases {
		t.Run(input, func(t *testing.T) {
			got := s.Sanitize(input)
			if got != input {
				t.Errorf("Sanitize(%q) = %q, want unchanged", input, got)
			}
		})
	}
}

// 前後の空白が除去されることを検証
func TestTextSanitizer_TrimsWhitespace(t *testing.T) {
	s := NewTextSanitizer()

	got := s.Sanitize("  タイトル  ")
	if got != "タイトル" {
		t.Errorf("Sanitize = %q, want %q", got, "タイトル")
	}
}

// 空文字列の入力には空文字列を返すことを検証
func TestTextSanitizer_EmptyInput(t *testing.T) {
	s := NewTextSanitizer()

	if got := s.Sanitize(""); got != "" {
		t.Errorf("Sanitize(\"\") = %q, want empty", got)
	}
}

// 同一入力に対して常に同一出力を返す（冪等）ことを検証
func TestTextSanitizer_Idempotent(t *testing.T) {
	s := NewTextSanitizer()

	input := `<b>重要</b> & 緊急`
	once := s.Sanitize(input)
	twice := s.Sanitize(once)

	if once != twice {
		t.Errorf("Sanitize is not idempotent: first %q, second %q", once, twice)
	}
}

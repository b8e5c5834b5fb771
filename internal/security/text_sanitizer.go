// Package security はアプリケーションのセキュリティ機能を提供する。
//
// TextSanitizer はプロバイダーが返す記事概要からHTMLを取り除き、
// プレーンテキストとしてクライアントへ渡せる形に整える。
// bluemondayのStrictPolicyで全タグを除去する。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizer はHTML混じりの文字列をプレーンテキストに変換するインターフェース。
type TextSanitizer interface {
	// SanitizeText は全タグを除去し、実体参照を復元し、連続空白を1つに詰めた文字列を返す。
	// 空文字列の入力には空文字列を返す。
	SanitizeText(raw string) string
}

// textSanitizer はTextSanitizerの実装。
// bluemondayのポリシーはスレッドセーフに共有できる。
type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerの新しいインスタンスを生成する。
func NewTextSanitizer() *textSanitizer {
	p := bluemonday.StrictPolicy()
	// ブロック要素の境界で単語が連結しないよう、除去したタグを空白に置き換える
	p.AddSpaceWhenStrippingTag(true)

	return &textSanitizer{
		policy: p,
	}
}

// maxUnescapePasses は実体参照の復元とタグ除去を繰り返す上限回数。
const maxUnescapePasses = 4

// SanitizeText はHTMLを除去したプレーンテキストを返す。
// 実体参照で書かれたタグも復元後に除去する。
func (s *textSanitizer) SanitizeText(raw string) string {
	if raw == "" {
		return ""
	}
	// 変化しなくなるまでタグ除去と実体参照の復元を繰り返す
	text := raw
	for i := 0; i < maxUnescapePasses; i++ {
		next := html.UnescapeString(s.policy.Sanitize(text))
		if next == text {
			return strings.Join(strings.Fields(text), " ")
		}
		text = next
	}
	// 上限に達した場合はエスケープされたまま返す
	return strings.Join(strings.Fields(s.policy.Sanitize(text)), " ")
}

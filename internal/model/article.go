// Package model はドメインモデルを定義する。
package model

import "time"

// SourceType は記事を生成したプロバイダーアダプターの種別を表す。
type SourceType string

const (
	// SourceTypeNewsAPI はNewsAPI（top-headlines）由来の記事。
	SourceTypeNewsAPI SourceType = "NewsAPI"
	// SourceTypeGuardian はThe Guardian（content search）由来の記事。
	SourceTypeGuardian SourceType = "Guardian"
	// SourceTypeNYT はThe New York Times（article search）由来の記事。
	SourceTypeNYT SourceType = "NYT"
)

// Source は記事の配信元を表す。
// IDが取得できないプロバイダーではnilになる。
type Source struct {
	ID   *string    `json:"id"`
	Name string     `json:"name"`
	Type SourceType `json:"type"`
}

// Article はプロバイダー間で共通の正規化済み記事。
// IDの一意性はプロバイダー内でのみ保証される。
// 欠損フィールドはnilとして表現し、JSONではnullになる。
type Article struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Description *string `json:"description"`
	URL         string  `json:"url"`
	Image       *string `json:"image"`
	PublishedAt string  `json:"publishedAt"`
	Source      Source  `json:"source"`
	Author      *string `json:"author"`
}

// PublishedTime はPublishedAtをパースした時刻を返す。
// パースできない場合はokがfalseになる。
func (a Article) PublishedTime() (time.Time, bool) {
	return ParseTimestamp(a.PublishedAt)
}

// timestampLayouts はプロバイダーが返す公開日時の書式。
// NYTは "2024-01-02T03:04:05+0000" のようにコロンなしのオフセットを返す。
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05-0700",
	"2006-01-02T15:04:05.000-0700",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseTimestamp はISO-8601形式の日時文字列をパースする。
func ParseTimestamp(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// StringPtr は空文字列をnil、それ以外をポインタに変換する。
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

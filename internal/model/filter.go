package model

import "strings"

// ProviderID はプロバイダーの識別子。
// Filter.SourcesやUserPreference.PreferredSourcesで使用する。
type ProviderID string

const (
	ProviderNewsAPI  ProviderID = "newsapi"
	ProviderGuardian ProviderID = "guardian"
	ProviderNYT      ProviderID = "nyt"
)

// ProviderInfo はプロバイダーの識別子と表示名の組。
type ProviderInfo struct {
	ID   ProviderID `json:"id"`
	Name string     `json:"name"`
}

// Providers は選択可能なプロバイダーの一覧（表示順）。
var Providers = []ProviderInfo{
	{ID: ProviderNewsAPI, Name: "NewsAPI"},
	{ID: ProviderGuardian, Name: "The Guardian"},
	{ID: ProviderNYT, Name: "New York Times"},
}

// IsKnownProvider は識別子が既知のプロバイダーかを判定する。
func IsKnownProvider(id ProviderID) bool {
	for _, p := range Providers {
		if p.ID == id {
			return true
		}
	}
	return false
}

// Categories は選択可能なカテゴリの一覧。
var Categories = []string{
	"business",
	"entertainment",
	"general",
	"health",
	"science",
	"sports",
	"technology",
}

// IsKnownCategory はカテゴリが列挙値に含まれるかを判定する。
func IsKnownCategory(category string) bool {
	for _, c := range Categories {
		if c == category {
			return true
		}
	}
	return false
}

// DefaultPage はページ番号未指定時の値。
const DefaultPage = 1

// Filter は記事取得の正規化済みクエリ。
// FromDate/ToDateはYYYY-MM-DD形式で、前後関係は検証しない。
type Filter struct {
	Query    string
	Category string
	Sources  []ProviderID
	FromDate string
	ToDate   string
	Page     int
}

// Includes はプロバイダーがこのフィルタで有効かを判定する。
// Sourcesが空の場合は全プロバイダーが有効。
func (f Filter) Includes(id ProviderID) bool {
	if len(f.Sources) == 0 {
		return true
	}
	for _, s := range f.Sources {
		if s == id {
			return true
		}
	}
	return false
}

// Equal はフィルタの全フィールドが一致するかを判定する。
func (f Filter) Equal(other Filter) bool {
	if f.Query != other.Query ||
		f.Category != other.Category ||
		f.FromDate != other.FromDate ||
		f.ToDate != other.ToDate ||
		f.Page != other.Page ||
		len(f.Sources) != len(other.Sources) {
		return false
	}
	for i := range f.Sources {
		if f.Sources[i] != other.Sources[i] {
			return false
		}
	}
	return true
}

// ParseSources はカンマ区切りのプロバイダー識別子をパースする。
// 空要素は無視する。未知の識別子はそのまま保持する（どのアダプターにも一致しない）。
func ParseSources(raw string) []ProviderID {
	if raw == "" {
		return nil
	}
	var sources []ProviderID
	for _, s := range strings.Split(raw, ",") {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		sources = append(sources, ProviderID(s))
	}
	return sources
}

// JoinSources はプロバイダー識別子をカンマ区切りで連結する。
func JoinSources(sources []ProviderID) string {
	parts := make([]string, len(sources))
	for i, s := range sources {
		parts[i] = string(s)
	}
	return strings.Join(parts, ",")
}

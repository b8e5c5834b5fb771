package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/hitoshi/newshub/internal/model"
)

const (
	// nytEndpoint はThe New York Times Article Search APIのエンドポイント。
	nytEndpoint = "https://api.nytimes.com/svc/search/v2/articlesearch.json"
	// nytImageBaseURL はmultimediaの相対パスに前置するベースURL。
	nytImageBaseURL = "https://www.nytimes.com/"
	nytSourceID     = "new-york-times"
	nytSourceName   = "The New York Times"
)

// NYT はThe New York Times（記事検索API）のアダプター。
// ページサイズは固定10件でAPI側から変更できない。
type NYT struct {
	client
}

// NewNYT はNYTアダプターを生成する。
func NewNYT(apiKey string, opts Options) *NYT {
	return &NYT{client: newClient(model.ProviderNYT, apiKey, "api-key", nytEndpoint, opts)}
}

// ID はプロバイダー識別子を返す。
func (p *NYT) ID() model.ProviderID { return model.ProviderNYT }

type nytResponse struct {
	Status   string `json:"status"`
	Response struct {
		Docs []nytArticle `json:"docs"`
	} `json:"response"`
}

type nytArticle struct {
	ID       string `json:"_id"`
	Headline struct {
		Main string `json:"main"`
	} `json:"headline"`
	Abstract *string `json:"abstract"`
	WebURL   string  `json:"web_url"`
	// multimediaは配列を想定するが、形式が異なる場合は画像なしとして扱う
	Multimedia json.RawMessage `json:"multimedia"`
	PubDate    string          `json:"pub_date"`
	Byline     *struct {
		Original *string `json:"original"`
	} `json:"byline"`
}

type nytMultimedia struct {
	URL string `json:"url"`
}

// Fetch は記事検索から記事を取得する。
func (p *NYT) Fetch(ctx context.Context, filter model.Filter) []model.Article {
	return p.fetch(ctx, p.params(filter), p.decode)
}

func (p *NYT) params(filter model.Filter) url.Values {
	params := url.Values{}
	params.Set("page", strconv.Itoa(page(filter)))
	setIfNotEmpty(params, "q", filter.Query)
	if filter.Category != "" {
		params.Set("fq", newsDeskQuery(filter.Category))
	}
	setIfNotEmpty(params, "begin_date", compactDate(filter.FromDate))
	setIfNotEmpty(params, "end_date", compactDate(filter.ToDate))
	return params
}

// newsDeskQuery はカテゴリをnews_deskのフィールド式に変換する。
func newsDeskQuery(category string) string {
	return fmt.Sprintf("news_desk:(%s)", category)
}

// compactDate はYYYY-MM-DDの区切りを除去してYYYYMMDDにする。
func compactDate(date string) string {
	return strings.ReplaceAll(date, "-", "")
}

func (p *NYT) decode(body []byte) ([]model.Article, error) {
	var resp nytResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("NYTのレスポンスのパースに失敗しました: %w", err)
	}
	if resp.Status != "" && !strings.EqualFold(resp.Status, "ok") {
		return nil, fmt.Errorf("NYTがエラーステータスを返しました: %s", resp.Status)
	}

	articles := make([]model.Article, 0, len(resp.Response.Docs))
	for _, a := range resp.Response.Docs {
		var author *string
		if a.Byline != nil {
			author = nonEmpty(a.Byline.Original)
		}
		articles = append(articles, model.Article{
			ID:          a.ID,
			Title:       a.Headline.Main,
			Description: p.text(a.Abstract),
			URL:         a.WebURL,
			Image:       p.image(firstMultimediaURL(a.Multimedia)),
			PublishedAt: a.PubDate,
			Source: model.Source{
				ID:   model.StringPtr(nytSourceID),
				Name: nytSourceName,
				Type: model.SourceTypeNYT,
			},
			Author: author,
		})
	}
	return articles, nil
}

// firstMultimediaURL は先頭のmultimediaの絶対URLを返す。
// multimediaが空、または配列でない場合は空文字列を返す。
func firstMultimediaURL(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var items []nytMultimedia
	if err := json.Unmarshal(raw, &items); err != nil || len(items) == 0 {
		return ""
	}
	if items[0].URL == "" {
		return ""
	}
	return nytImageBaseURL + items[0].URL
}

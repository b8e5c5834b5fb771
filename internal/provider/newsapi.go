package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/hitoshi/newshub/internal/model"
)

const (
	// newsAPIEndpoint はNewsAPIのtop-headlinesエンドポイント。
	newsAPIEndpoint = "https://newsapi.org/v2/top-headlines"
	// newsAPICountry はtop-headlinesの対象国（固定）。
	newsAPICountry = "us"
)

// NewsAPI はNewsAPI（汎用ヘッドラインAPI）のアダプター。
// 記事にIDがないため、URLをIDとして使用する。
type NewsAPI struct {
	client
}

// NewNewsAPI はNewsAPIアダプターを生成する。
func NewNewsAPI(apiKey string, opts Options) *NewsAPI {
	return &NewsAPI{client: newClient(model.ProviderNewsAPI, apiKey, "apiKey", newsAPIEndpoint, opts)}
}

// ID はプロバイダー識別子を返す。
func (p *NewsAPI) ID() model.ProviderID { return model.ProviderNewsAPI }

type newsAPIResponse struct {
	Status   string           `json:"status"`
	Code     string           `json:"code"`
	Message  string           `json:"message"`
	Articles []newsAPIArticle `json:"articles"`
}

type newsAPIArticle struct {
	Source struct {
		ID   *string `json:"id"`
		Name string  `json:"name"`
	} `json:"source"`
	Author      *string `json:"author"`
	Title       string  `json:"title"`
	Description *string `json:"description"`
	URL         string  `json:"url"`
	URLToImage  *string `json:"urlToImage"`
	PublishedAt string  `json:"publishedAt"`
}

// Fetch はtop-headlinesから記事を取得する。
func (p *NewsAPI) Fetch(ctx context.Context, filter model.Filter) []model.Article {
	return p.fetch(ctx, p.params(filter), p.decode)
}

func (p *NewsAPI) params(filter model.Filter) url.Values {
	params := url.Values{}
	params.Set("page", strconv.Itoa(page(filter)))
	params.Set("pageSize", strconv.Itoa(pageSize))
	params.Set("country", newsAPICountry)
	setIfNotEmpty(params, "q", filter.Query)
	setIfNotEmpty(params, "category", filter.Category)
	setIfNotEmpty(params, "from", filter.FromDate)
	setIfNotEmpty(params, "to", filter.ToDate)
	return params
}

func (p *NewsAPI) decode(body []byte) ([]model.Article, error) {
	var resp newsAPIResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("NewsAPIのレスポンスのパースに失敗しました: %w", err)
	}
	if resp.Status != "" && resp.Status != "ok" {
		return nil, fmt.Errorf("NewsAPIがエラーを返しました: %s: %s", resp.Code, resp.Message)
	}

	articles := make([]model.Article, 0, len(resp.Articles))
	for _, a := range resp.Articles {
		var image string
		if a.URLToImage != nil {
			image = *a.URLToImage
		}
		articles = append(articles, model.Article{
			ID:          a.URL,
			Title:       a.Title,
			Description: p.text(a.Description),
			URL:         a.URL,
			Image:       p.image(image),
			PublishedAt: a.PublishedAt,
			Source: model.Source{
				ID:   a.Source.ID,
				Name: a.Source.Name,
				Type: model.SourceTypeNewsAPI,
			},
			Author: nonEmpty(a.Author),
		})
	}
	return articles, nil
}

// nonEmpty は空文字列のポインタをnilに揃える。
func nonEmpty(s *string) *string {
	if s == nil {
		return nil
	}
	return model.StringPtr(*s)
}

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
	// guardianEndpoint はThe Guardian Content APIの検索エンドポイント。
	guardianEndpoint = "https://content.guardianapis.com/search"
	// guardianShowFields はレスポンスに含める追加フィールド。
	guardianShowFields = "headline,trailText,thumbnail,publication,lastModified,byline"
	guardianSourceID   = "the-guardian"
	guardianSourceName = "The Guardian"
)

// Guardian はThe Guardian（コンテンツ検索API）のアダプター。
// 名前空間が1つのため、配信元は固定値になる。
type Guardian struct {
	client
}

// NewGuardian はGuardianアダプターを生成する。
func NewGuardian(apiKey string, opts Options) *Guardian {
	return &Guardian{client: newClient(model.ProviderGuardian, apiKey, "api-key", guardianEndpoint, opts)}
}

// ID はプロバイダー識別子を返す。
func (p *Guardian) ID() model.ProviderID { return model.ProviderGuardian }

type guardianResponse struct {
	Response struct {
		Status  string            `json:"status"`
		Message string            `json:"message"`
		Results []guardianArticle `json:"results"`
	} `json:"response"`
}

type guardianArticle struct {
	ID                 string `json:"id"`
	WebTitle           string `json:"webTitle"`
	WebURL             string `json:"webUrl"`
	WebPublicationDate string `json:"webPublicationDate"`
	Fields             *struct {
		TrailText string `json:"trailText"`
		Thumbnail string `json:"thumbnail"`
		Byline    string `json:"byline"`
	} `json:"fields"`
}

// Fetch はコンテンツ検索から記事を取得する。
func (p *Guardian) Fetch(ctx context.Context, filter model.Filter) []model.Article {
	return p.fetch(ctx, p.params(filter), p.decode)
}

func (p *Guardian) params(filter model.Filter) url.Values {
	params := url.Values{}
	params.Set("page", strconv.Itoa(page(filter)))
	params.Set("page-size", strconv.Itoa(pageSize))
	params.Set("show-fields", guardianShowFields)
	setIfNotEmpty(params, "q", filter.Query)
	setIfNotEmpty(params, "section", filter.Category)
	setIfNotEmpty(params, "from-date", filter.FromDate)
	setIfNotEmpty(params, "to-date", filter.ToDate)
	return params
}

func (p *Guardian) decode(body []byte) ([]model.Article, error) {
	var resp guardianResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("Guardianのレスポンスのパースに失敗しました: %w", err)
	}
	if resp.Response.Status != "" && resp.Response.Status != "ok" {
		return nil, fmt.Errorf("Guardianがエラーを返しました: %s", resp.Response.Message)
	}

	articles := make([]model.Article, 0, len(resp.Response.Results))
	for _, a := range resp.Response.Results {
		var trailText, thumbnail, byline string
		if a.Fields != nil {
			trailText = a.Fields.TrailText
			thumbnail = a.Fields.Thumbnail
			byline = a.Fields.Byline
		}
		articles = append(articles, model.Article{
			ID:          a.ID,
			Title:       a.WebTitle,
			Description: p.text(model.StringPtr(trailText)),
			URL:         a.WebURL,
			Image:       p.image(thumbnail),
			PublishedAt: a.WebPublicationDate,
			Source: model.Source{
				ID:   model.StringPtr(guardianSourceID),
				Name: guardianSourceName,
				Type: model.SourceTypeGuardian,
			},
			Author: model.StringPtr(byline),
		})
	}
	return articles, nil
}

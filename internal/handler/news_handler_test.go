package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/hitoshi/newshub/internal/model"
)

// --- モック定義 ---

// mockAggregator はNewsAggregatorのモック実装。
type mockAggregator struct {
	aggregateFn func(ctx context.Context, filter model.Filter) ([]model.Article, error)
}

func (m *mockAggregator) Aggregate(ctx context.Context, filter model.Filter) ([]model.Article, error) {
	if m.aggregateFn != nil {
		return m.aggregateFn(ctx, filter)
	}
	return []model.Article{}, nil
}

func strPtr(s string) *string { return &s }

// --- ParseFilter テスト ---

func TestParseFilter_AllParameters(t *testing.T) {
	q, _ := url.ParseQuery("query=ai&category=technology&sources=guardian,nyt&fromDate=2024-01-01&toDate=2024-01-31&page=3")

	f := ParseFilter(q)

	if f.Query != "ai" {
		t.Errorf("Query = %q, want %q", f.Query, "ai")
	}
	if f.Category != "technology" {
		t.Errorf("Category = %q, want %q", f.Category, "technology")
	}
	if model.JoinSources(f.Sources) != "guardian,nyt" {
		t.Errorf("Sources = %v, want [guardian nyt]", f.Sources)
	}
	if f.FromDate != "2024-01-01" || f.ToDate != "2024-01-31" {
		t.Errorf("FromDate/ToDate = %q/%q", f.FromDate, f.ToDate)
	}
	if f.Page != 3 {
		t.Errorf("Page = %d, want 3", f.Page)
	}
}

func TestParseFilter_PageDefaults(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  int
	}{
		{"absent", "", 1},
		{"empty", "page=", 1},
		{"non-numeric", "page=abc", 1},
		{"zero", "page=0", 1},
		{"negative", "page=-2", 1},
		{"valid", "page=2", 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, _ := url.ParseQuery(tt.query)
			if got := ParseFilter(q).Page; got != tt.want {
				t.Errorf("Page = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestParseFilter_SourcesBlankEntriesDropped(t *testing.T) {
	q, _ := url.ParseQuery("sources=guardian,,nyt,")
	f := ParseFilter(q)
	if model.JoinSources(f.Sources) != "guardian,nyt" {
		t.Errorf("Sources = %v, want [guardian nyt]", f.Sources)
	}

	q, _ = url.ParseQuery("sources=")
	if f := ParseFilter(q); len(f.Sources) != 0 {
		t.Errorf("empty sources should mean all providers, got %v", f.Sources)
	}
}

// --- GET /api/news テスト ---

func TestNewsHandler_GetNews_Success(t *testing.T) {
	agg := &mockAggregator{
		aggregateFn: func(ctx context.Context, filter model.Filter) ([]model.Article, error) {
			if filter.Category != "technology" {
				t.Errorf("Category = %q, want %q", filter.Category, "technology")
			}
			if model.JoinSources(filter.Sources) != "guardian,nyt" {
				t.Errorf("Sources = %v", filter.Sources)
			}
			if filter.Page != 1 {
				t.Errorf("Page = %d, want 1", filter.Page)
			}
			return []model.Article{
				{
					ID:          "nyt://article/1",
					Title:       "Chips",
					Description: strPtr("About chips"),
					URL:         "https://www.nytimes.com/chips",
					PublishedAt: "2024-05-02T10:00:00+0000",
					Source:      model.Source{ID: strPtr("new-york-times"), Name: "The New York Times", Type: model.SourceTypeNYT},
				},
			}, nil
		},
	}
	h := NewNewsHandler(agg, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/news?category=technology&sources=guardian,nyt", nil)
	w := httptest.NewRecorder()
	h.GetNews(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want %q", ct, "application/json")
	}

	var body struct {
		Articles []map[string]any `json:"articles"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if len(body.Articles) != 1 {
		t.Fatalf("articles = %d, want 1", len(body.Articles))
	}

	a := body.Articles[0]
	for _, key := range []string{"id", "title", "description", "url", "image", "publishedAt", "source", "author"} {
		if _, ok := a[key]; !ok {
			t.Errorf("missing field %q", key)
		}
	}
	if a["image"] != nil || a["author"] != nil {
		t.Errorf("missing image/author should serialize as null: image=%v author=%v", a["image"], a["author"])
	}
	src := a["source"].(map[string]any)
	if src["type"] != "NYT" || src["name"] != "The New York Times" {
		t.Errorf("source = %v", src)
	}
}

func TestNewsHandler_GetNews_EmptyResultIsArray(t *testing.T) {
	agg := &mockAggregator{
		aggregateFn: func(ctx context.Context, filter model.Filter) ([]model.Article, error) {
			return nil, nil
		},
	}
	h := NewNewsHandler(agg, nil)

	w := httptest.NewRecorder()
	h.GetNews(w, httptest.NewRequest(http.MethodGet, "/api/news", nil))

	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}
	if got := strings.TrimSpace(w.Body.String()); got != `{"articles":[]}` {
		t.Errorf("body = %s, want {\"articles\":[]}", got)
	}
}

func TestNewsHandler_GetNews_AggregatorError_Returns500(t *testing.T) {
	agg := &mockAggregator{
		aggregateFn: func(ctx context.Context, filter model.Filter) ([]model.Article, error) {
			return nil, errors.New("unexpected")
		},
	}
	h := NewNewsHandler(agg, nil)

	w := httptest.NewRecorder()
	h.GetNews(w, httptest.NewRequest(http.MethodGet, "/api/news?page=2", nil))

	resp := w.Result()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusInternalServerError)
	}

	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if body["error"] != "Failed to fetch news" {
		t.Errorf("error = %q, want %q", body["error"], "Failed to fetch news")
	}
}

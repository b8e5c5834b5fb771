package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/newshub/internal/model"
)

const nytFixture = `{
  "status": "OK",
  "response": {
    "docs": [
      {
        "_id": "nyt://article/1",
        "headline": {"main": "Tech desk story"},
        "abstract": "A short abstract.",
        "web_url": "https://www.nytimes.com/2024/05/01/technology/story.html",
        "multimedia": [
          {"url": "images/2024/05/01/multimedia/photo.jpg"},
          {"url": "images/2024/05/01/multimedia/second.jpg"}
        ],
        "pub_date": "2024-05-01T09:15:00+0000",
        "byline": {"original": "By Cade Metz"}
      },
      {
        "_id": "nyt://article/2",
        "headline": {"main": "No media"},
        "abstract": null,
        "web_url": "https://www.nytimes.com/2024/05/01/world/no-media.html",
        "multimedia": [],
        "pub_date": "2024-05-01T05:00:00+0000"
      },
      {
        "_id": "nyt://article/3",
        "headline": {"main": "Object media"},
        "abstract": "",
        "web_url": "https://www.nytimes.com/2024/05/01/world/object.html",
        "multimedia": {"default": {"url": "https://static01.nyt.com/x.jpg"}},
        "pub_date": "2024-05-01T04:00:00+0000",
        "byline": {"original": null}
      }
    ]
  }
}`

func TestNYT_Fetch_BuildsQuery(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		want := map[string]string{
			"api-key":    "nyt-key",
			"page":       "3",
			"q":          "climate",
			"fq":         "news_desk:(technology)",
			"begin_date": "20240501",
			"end_date":   "20240531",
		}
		for k, v := range want {
			if got := q.Get(k); got != v {
				t.Errorf("param %s = %q, want %q", k, got, v)
			}
		}
		if _, ok := q["page-size"]; ok {
			t.Error("NYTにページサイズを送ってはならない")
		}
		w.Write([]byte(`{"status":"OK","response":{"docs":[]}}`))
	}))
	defer server.Close()

	var buf bytes.Buffer
	p := NewNYT("nyt-key", newTestOptions(server, &buf))
	p.endpoint = server.URL

	p.Fetch(context.Background(), model.Filter{
		Query:    "climate",
		Category: "technology",
		FromDate: "2024-05-01",
		ToDate:   "2024-05-31",
		Page:     3,
	})
}

func TestNYT_Fetch_OmitsCategoryAndDates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		for _, k := range []string{"q", "fq", "begin_date", "end_date"} {
			if _, ok := q[k]; ok {
				t.Errorf("空の %s はクエリに含めてはならない", k)
			}
		}
		w.Write([]byte(`{"status":"OK","response":{"docs":[]}}`))
	}))
	defer server.Close()

	var buf bytes.Buffer
	p := NewNYT("k", newTestOptions(server, &buf))
	p.endpoint = server.URL

	p.Fetch(context.Background(), model.Filter{Page: 1})
}

func TestNYT_Fetch_MapsArticles(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(nytFixture))
	}))
	defer server.Close()

	var buf bytes.Buffer
	p := NewNYT("k", newTestOptions(server, &buf))
	p.endpoint = server.URL

	got := p.Fetch(context.Background(), model.Filter{Page: 1})
	if len(got) != 3 {
		t.Fatalf("記事数 = %d, want 3", len(got))
	}

	a := got[0]
	if a.ID != "nyt://article/1" {
		t.Errorf("ID = %q", a.ID)
	}
	if a.Title != "Tech desk story" {
		t.Errorf("Title = %q", a.Title)
	}
	if a.Description == nil || *a.Description != "A short abstract." {
		t.Errorf("Description = %v", a.Description)
	}
	if a.Image == nil || *a.Image != "https://www.nytimes.com/images/2024/05/01/multimedia/photo.jpg" {
		t.Errorf("Image = %v, 先頭のmultimediaから組み立てるべき", a.Image)
	}
	if a.PublishedAt != "2024-05-01T09:15:00+0000" {
		t.Errorf("PublishedAt = %q", a.PublishedAt)
	}
	if a.Source.ID == nil || *a.Source.ID != "new-york-times" || a.Source.Name != "The New York Times" {
		t.Errorf("Source = %+v", a.Source)
	}
	if a.Source.Type != model.SourceTypeNYT {
		t.Errorf("Source.Type = %q", a.Source.Type)
	}
	if a.Author == nil || *a.Author != "By Cade Metz" {
		t.Errorf("Author = %v", a.Author)
	}
}

// TestNYT_Fetch_EmptyMultimedia_ImageIsNil はmultimediaが空の場合に画像がnilになることを検証する。
func TestNYT_Fetch_EmptyMultimedia_ImageIsNil(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(nytFixture))
	}))
	defer server.Close()

	var buf bytes.Buffer
	p := NewNYT("k", newTestOptions(server, &buf))
	p.endpoint = server.URL

	got := p.Fetch(context.Background(), model.Filter{Page: 1})
	if len(got) != 3 {
		t.Fatalf("記事数 = %d, want 3", len(got))
	}

	for _, a := range got[1:] {
		if a.Image != nil {
			t.Errorf("%s: Image = %q, want nil", a.ID, *a.Image)
		}
		if a.Description != nil {
			t.Errorf("%s: Description = %q, want nil", a.ID, *a.Description)
		}
		if a.Author != nil {
			t.Errorf("%s: Author = %q, want nil", a.ID, *a.Author)
		}
	}
}

func TestNYT_Fetch_SourceIDNotShared(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(nytFixture))
	}))
	defer server.Close()

	var buf bytes.Buffer
	p := NewNYT("k", newTestOptions(server, &buf))
	p.endpoint = server.URL

	got := p.Fetch(context.Background(), model.Filter{Page: 1})
	if len(got) < 2 {
		t.Fatalf("記事数 = %d, want >= 2", len(got))
	}

	*got[0].Source.ID = "changed"
	if *got[1].Source.ID != "new-york-times" {
		t.Errorf("1件目の変更が2件目に波及した: Source.ID = %q", *got[1].Source.ID)
	}
}

func TestNYT_FirstMultimediaURL(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"先頭のURLを絶対URLにする", `[{"url":"images/a.jpg"},{"url":"images/b.jpg"}]`, "https://www.nytimes.com/images/a.jpg"},
		{"空配列は空文字列", `[]`, ""},
		{"先頭のURLが空なら画像なし", `[{"url":""},{"url":"images/b.jpg"}]`, ""},
		{"配列でなければ空文字列", `{"default":{"url":"x.jpg"}}`, ""},
		{"未指定は空文字列", ``, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := firstMultimediaURL(json.RawMessage(tt.raw)); got != tt.want {
				t.Errorf("firstMultimediaURL(%s) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestNYT_CompactDate(t *testing.T) {
	tests := map[string]string{
		"2024-05-01": "20240501",
		"20240501":   "20240501",
		"":           "",
	}
	for in, want := range tests {
		if got := compactDate(in); got != want {
			t.Errorf("compactDate(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNYT_Fetch_NullDocs(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"OK","response":{"docs":null}}`))
	}))
	defer server.Close()

	var buf bytes.Buffer
	p := NewNYT("k", newTestOptions(server, &buf))
	p.endpoint = server.URL

	got := p.Fetch(context.Background(), model.Filter{Page: 1})
	if got == nil || len(got) != 0 {
		t.Errorf("docsがnullの場合は空リスト（非nil）を返すべき: got %v", got)
	}
}

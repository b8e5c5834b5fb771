// Package newsclient はニュースAPIのクライアント側ロジックを提供する。
// Clientは/api/newsと/api/preferencesのHTTPクライアント、
// Hookはフィルタ変化に追従する記事取得、Sessionは設定に基づくフィルタ操作を担う。
package newsclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hitoshi/newshub/internal/model"
)

const (
	// maxResponseSize はレスポンスボディの読み取り上限（10MiB）。
	maxResponseSize = 10 << 20
	defaultTimeout  = 30 * time.Second
)

// Client はnewshub APIのHTTPクライアント。
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient はClientを生成する。
// baseURLはスキームとホストを含むAPIのベースURL（例: "http://localhost:8080"）。
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// StatusError は2xx以外のHTTPレスポンスを表す。
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("unexpected status %d", e.StatusCode)
}

// EncodeFilter はFilterを/api/newsのクエリパラメータに変換する。
// 空のフィールドは送らない。pageは常に送る。
func EncodeFilter(filter model.Filter) url.Values {
	q := url.Values{}
	if filter.Query != "" {
		q.Set("query", filter.Query)
	}
	if filter.Category != "" {
		q.Set("category", filter.Category)
	}
	if len(filter.Sources) > 0 {
		q.Set("sources", model.JoinSources(filter.Sources))
	}
	if filter.FromDate != "" {
		q.Set("fromDate", filter.FromDate)
	}
	if filter.ToDate != "" {
		q.Set("toDate", filter.ToDate)
	}
	page := filter.Page
	if page < 1 {
		page = model.DefaultPage
	}
	q.Set("page", strconv.Itoa(page))
	return q
}

// FetchNews はFilterに対応する記事を取得する。
func (c *Client) FetchNews(ctx context.Context, filter model.Filter) ([]model.Article, error) {
	var body struct {
		Articles []model.Article `json:"articles"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/news?"+EncodeFilter(filter).Encode(), nil, &body); err != nil {
		return nil, fmt.Errorf("failed to fetch news: %w", err)
	}
	if body.Articles == nil {
		body.Articles = []model.Article{}
	}
	return body.Articles, nil
}

// CreatePreference はサーバーに設定を保存し、発行されたクライアントIDを返す。
func (c *Client) CreatePreference(ctx context.Context, pref model.UserPreference) (string, model.UserPreference, error) {
	var body struct {
		ClientID    string               `json:"client_id"`
		Preferences model.UserPreference `json:"preferences"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/preferences", pref, &body); err != nil {
		return "", model.UserPreference{}, fmt.Errorf("failed to create preference: %w", err)
	}
	return body.ClientID, body.Preferences, nil
}

// GetPreference はサーバーから設定を取得する。存在しない場合はnilを返す。
func (c *Client) GetPreference(ctx context.Context, clientID string) (*model.UserPreference, error) {
	var pref model.UserPreference
	err := c.do(ctx, http.MethodGet, "/api/preferences/"+url.PathEscape(clientID), nil, &pref)
	if err != nil {
		if se, ok := err.(*StatusError); ok && se.StatusCode == http.StatusNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get preference: %w", err)
	}
	return &pref, nil
}

// PutPreference はサーバーの設定を上書き保存する。
func (c *Client) PutPreference(ctx context.Context, clientID string, pref model.UserPreference) (model.UserPreference, error) {
	var saved model.UserPreference
	if err := c.do(ctx, http.MethodPut, "/api/preferences/"+url.PathEscape(clientID), pref, &saved); err != nil {
		return model.UserPreference{}, fmt.Errorf("failed to put preference: %w", err)
	}
	return saved, nil
}

// do はJSONリクエストを送信し、2xxレスポンスをoutにデコードする。
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var reqBody io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{StatusCode: resp.StatusCode, Message: errorMessage(body)}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// errorMessage はエラーレスポンスからメッセージを取り出す。
// {"error": "..."} と統一エラーフォーマット {"message": "..."} の両方に対応する。
func errorMessage(body []byte) string {
	var e struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &e) != nil {
		return ""
	}
	if e.Error != "" {
		return e.Error
	}
	return e.Message
}

// Package provider は外部ニュースAPIのアダプターを提供する。
// 各アダプターは正規化済みFilterをプロバイダー固有のクエリに変換し、
// 1回のHTTP GETを行い、レスポンスを正規化済みArticleに写像する。
// 失敗は呼び出し元へ伝播させず、ログとメトリクスに記録して空リストを返す。
package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/hitoshi/newshub/internal/metrics"
	"github.com/hitoshi/newshub/internal/model"
	"github.com/hitoshi/newshub/internal/security"
	"golang.org/x/time/rate"
)

const (
	// pageSize はページサイズを指定できるプロバイダーに渡す固定値。
	pageSize = 20
	// defaultMaxResponseSize はレスポンスボディの読み取り上限（デフォルト: 2MiB）。
	defaultMaxResponseSize = 2 << 20
	userAgent              = "newshub/1.0"
)

// Provider はニュースプロバイダーのアダプター。
type Provider interface {
	// ID はFilter.Sourcesとの照合に使う識別子を返す。
	ID() model.ProviderID
	// Fetch はFilterに対応する記事を取得する。
	// 失敗時はエラーを返さず空リストを返す。戻り値はnilにならない。
	Fetch(ctx context.Context, filter model.Filter) []model.Article
}

// Options はアダプター共通の依存関係。
// 未指定のフィールドには安全なデフォルトが使われる。
type Options struct {
	HTTPClient      *http.Client
	Logger          *slog.Logger
	Metrics         metrics.MetricsCollector
	Sanitizer       security.TextSanitizer
	Guard           security.OutboundGuard
	Limiter         *rate.Limiter // nilの場合は送信枠を制限しない
	MaxResponseSize int64
}

// failure はプロバイダー呼び出し失敗の分類。
// reasonはメトリクスのラベルに使う。
type failure struct {
	reason     string
	statusCode int
	err        error
}

func (f *failure) Error() string {
	if f.statusCode != 0 {
		return fmt.Sprintf("%s (status %d): %v", f.reason, f.statusCode, f.err)
	}
	return fmt.Sprintf("%s: %v", f.reason, f.err)
}

func (f *failure) Unwrap() error { return f.err }

// client はアダプター共通のHTTP呼び出しと記録処理。
type client struct {
	id         model.ProviderID
	apiKey     string
	keyParam   string // APIキーを渡すクエリパラメータ名
	endpoint   string // テスト用にエンドポイントを差し替え可能
	httpClient *http.Client
	logger     *slog.Logger
	metrics    metrics.MetricsCollector
	sanitizer  security.TextSanitizer
	guard      security.OutboundGuard
	limiter    *rate.Limiter
	maxSize    int64
}

func newClient(id model.ProviderID, apiKey, keyParam, endpoint string, opts Options) client {
	c := client{
		id:         id,
		apiKey:     apiKey,
		keyParam:   keyParam,
		endpoint:   endpoint,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		metrics:    opts.Metrics,
		sanitizer:  opts.Sanitizer,
		guard:      opts.Guard,
		limiter:    opts.Limiter,
		maxSize:    opts.MaxResponseSize,
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: 8 * time.Second}
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.metrics == nil {
		c.metrics = metrics.Nop{}
	}
	if c.sanitizer == nil {
		c.sanitizer = security.NewTextSanitizer()
	}
	if c.guard == nil {
		c.guard = security.NewSSRFGuard()
	}
	if c.maxSize <= 0 {
		c.maxSize = defaultMaxResponseSize
	}
	return c
}

// fetch はクエリを送信し、decodeで記事に変換する。
// すべての失敗はここで吸収され、空リストが返る。
func (c *client) fetch(ctx context.Context, params url.Values, decode func(body []byte) ([]model.Article, error)) []model.Article {
	start := time.Now()
	provider := string(c.id)

	articles, err := c.do(ctx, params, decode)
	c.metrics.RecordProviderLatency(provider, time.Since(start))

	if err != nil {
		var f *failure
		reason := "unknown"
		attrs := []any{
			slog.String("provider", provider),
			slog.String("error", err.Error()),
		}
		if errors.As(err, &f) {
			reason = f.reason
			if f.statusCode != 0 {
				attrs = append(attrs, slog.Int("http_status", f.statusCode))
			}
		}
		attrs = append(attrs, slog.String("reason", reason))

		c.metrics.RecordProviderFailure(provider, reason)
		c.logger.Error("プロバイダーからの記事取得に失敗しました", attrs...)
		return []model.Article{}
	}

	c.metrics.RecordProviderSuccess(provider)
	c.metrics.RecordArticlesFetched(provider, len(articles))
	c.logger.Debug("プロバイダーから記事を取得しました",
		slog.String("provider", provider),
		slog.Int("article_count", len(articles)),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	if articles == nil {
		return []model.Article{}
	}
	return articles
}

func (c *client) do(ctx context.Context, params url.Values, decode func(body []byte) ([]model.Article, error)) ([]model.Article, error) {
	if c.limiter != nil && !c.limiter.Allow() {
		return nil, &failure{reason: "rate_limited", err: model.NewProviderRateLimitedError(c.id)}
	}

	reqURL, err := url.Parse(c.endpoint)
	if err != nil {
		return nil, &failure{reason: "request", err: fmt.Errorf("エンドポイントURLのパースに失敗しました: %w", err)}
	}

	q := reqURL.Query()
	for k, vs := range params {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	q.Set(c.keyParam, c.apiKey)
	reqURL.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return nil, &failure{reason: "request", err: fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)}
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &failure{reason: "transport", err: redactURLError(err)}
	}
	defer resp.Body.Close()

	c.metrics.RecordProviderHTTPStatus(string(c.id), resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &failure{
			reason:     "http_status",
			statusCode: resp.StatusCode,
			err:        model.NewProviderFetchFailedError(c.id, http.StatusText(resp.StatusCode)),
		}
	}

	// 上限+1バイトまで読み、超過を検出する
	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxSize+1))
	if err != nil {
		return nil, &failure{reason: "read", err: fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)}
	}
	if int64(len(body)) > c.maxSize {
		return nil, &failure{reason: "too_large", err: fmt.Errorf("レスポンスサイズが上限 %d バイトを超えました", c.maxSize)}
	}

	articles, err := decode(body)
	if err != nil {
		return nil, &failure{reason: "decode", err: err}
	}
	return articles, nil
}

// text は概要をプレーンテキスト化し、空ならnilを返す。
func (c *client) text(raw *string) *string {
	if raw == nil {
		return nil
	}
	return model.StringPtr(c.sanitizer.SanitizeText(*raw))
}

// image は公開http(s)URLのみを残し、それ以外はnilにする。
func (c *client) image(raw string) *string {
	if raw == "" {
		return nil
	}
	if err := c.guard.ValidateURL(raw); err != nil {
		c.logger.Debug("画像URLを破棄しました",
			slog.String("provider", string(c.id)),
			slog.String("reason", err.Error()),
		)
		return nil
	}
	return &raw
}

// redactURLError は*url.Errorから、APIキーを含むURLを取り除いたエラーを返す。
func redactURLError(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return fmt.Errorf("%s request failed: %w", urlErr.Op, urlErr.Err)
	}
	return err
}

// setIfNotEmpty は値が空でない場合のみパラメータを設定する。
func setIfNotEmpty(params url.Values, key, value string) {
	if value != "" {
		params.Set(key, value)
	}
}

// page は1未満のページ番号をデフォルト値に丸める。
func page(filter model.Filter) int {
	if filter.Page < 1 {
		return model.DefaultPage
	}
	return filter.Page
}

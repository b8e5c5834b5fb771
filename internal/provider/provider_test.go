package provider

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hitoshi/newshub/internal/metrics"
	"github.com/hitoshi/newshub/internal/model"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"
)

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
}

func newTestOptions(server *httptest.Server, buf *bytes.Buffer) Options {
	return Options{
		HTTPClient: server.Client(),
		Logger:     newTestLogger(buf),
	}
}

// countingServer はリクエスト回数を数えるテスト用サーバーを起動する。
func countingServer(t *testing.T, body string) (*httptest.Server, *int32) {
	t.Helper()
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server, &calls
}

func TestProviders_ImplementInterface(t *testing.T) {
	var _ Provider = NewNewsAPI("k", Options{})
	var _ Provider = NewGuardian("k", Options{})
	var _ Provider = NewNYT("k", Options{})
}

func TestProviders_IDs(t *testing.T) {
	tests := []struct {
		p    Provider
		want model.ProviderID
	}{
		{NewNewsAPI("k", Options{}), model.ProviderNewsAPI},
		{NewGuardian("k", Options{}), model.ProviderGuardian},
		{NewNYT("k", Options{}), model.ProviderNYT},
	}
	for _, tt := range tests {
		if got := tt.p.ID(); got != tt.want {
			t.Errorf("ID() = %q, want %q", got, tt.want)
		}
	}
}

// TestFetch_RateLimited_NoOutboundCall は送信枠を使い切った場合に外部呼び出しを行わないことを検証する。
func TestFetch_RateLimited_NoOutboundCall(t *testing.T) {
	server, calls := countingServer(t, `{"status":"ok","articles":[]}`)

	var buf bytes.Buffer
	opts := newTestOptions(server, &buf)
	opts.Limiter = rate.NewLimiter(rate.Every(time.Hour), 1)

	p := NewNewsAPI("test-key", opts)
	p.endpoint = server.URL

	p.Fetch(context.Background(), model.Filter{Page: 1})
	got := p.Fetch(context.Background(), model.Filter{Page: 1})

	if got == nil || len(got) != 0 {
		t.Errorf("送信枠超過時は空リストを返すべき: got %v", got)
	}
	if n := atomic.LoadInt32(calls); n != 1 {
		t.Errorf("外部呼び出し回数 = %d, want 1", n)
	}
	if !strings.Contains(buf.String(), "rate_limited") {
		t.Errorf("送信枠超過がログに記録されるべき: %s", buf.String())
	}
}

// TestFetch_ResponseTooLarge は上限を超えるレスポンスを失敗として扱うことを検証する。
func TestFetch_ResponseTooLarge(t *testing.T) {
	body := `{"status":"ok","articles":[{"title":"` + strings.Repeat("x", 200) + `","url":"https://example.com/a","publishedAt":"2024-01-01T00:00:00Z","source":{"id":null,"name":"X"}}]}`
	server, _ := countingServer(t, body)

	var buf bytes.Buffer
	opts := newTestOptions(server, &buf)
	opts.MaxResponseSize = 64

	p := NewNewsAPI("test-key", opts)
	p.endpoint = server.URL

	got := p.Fetch(context.Background(), model.Filter{Page: 1})
	if len(got) != 0 {
		t.Errorf("上限超過時は空リストを返すべき: got %d articles", len(got))
	}
	if !strings.Contains(buf.String(), "too_large") {
		t.Errorf("サイズ超過がログに記録されるべき: %s", buf.String())
	}
}

// TestFetch_TransportError_DoesNotLogAPIKey は通信エラーのログにAPIキーが含まれないことを検証する。
func TestFetch_TransportError_DoesNotLogAPIKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close() // 接続拒否させる

	var buf bytes.Buffer
	p := NewGuardian("super-secret-key", Options{
		HTTPClient: &http.Client{Timeout: time.Second},
		Logger:     newTestLogger(&buf),
	})
	p.endpoint = url

	got := p.Fetch(context.Background(), model.Filter{Page: 1})
	if len(got) != 0 {
		t.Errorf("通信エラー時は空リストを返すべき: got %d", len(got))
	}
	logOutput := buf.String()
	if !strings.Contains(logOutput, "transport") {
		t.Errorf("通信エラーの理由がログに記録されるべき: %s", logOutput)
	}
	if strings.Contains(logOutput, "super-secret-key") {
		t.Errorf("APIキーがログに含まれてはならない: %s", logOutput)
	}
}

// TestFetch_ContextCancelled はキャンセル済みコンテキストで空リストを返すことを検証する。
func TestFetch_ContextCancelled(t *testing.T) {
	server, _ := countingServer(t, `{"status":"OK","response":{"docs":[]}}`)

	var buf bytes.Buffer
	p := NewNYT("test-key", newTestOptions(server, &buf))
	p.endpoint = server.URL

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	got := p.Fetch(ctx, model.Filter{Page: 1})
	if got == nil || len(got) != 0 {
		t.Errorf("キャンセル時は空リストを返すべき: got %v", got)
	}
}

// TestFetch_RecordsMetrics は成功・失敗がメトリクスに記録されることを検証する。
func TestFetch_RecordsMetrics(t *testing.T) {
	okServer, _ := countingServer(t, `{"status":"ok","articles":[{"title":"A","url":"https://example.com/a","publishedAt":"2024-01-01T00:00:00Z","source":{"id":"cnn","name":"CNN"}}]}`)
	failServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer failServer.Close()

	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)

	var buf bytes.Buffer
	okOpts := newTestOptions(okServer, &buf)
	okOpts.Metrics = collector
	ok := NewNewsAPI("k", okOpts)
	ok.endpoint = okServer.URL

	failOpts := newTestOptions(failServer, &buf)
	failOpts.Metrics = collector
	fail := NewGuardian("k", failOpts)
	fail.endpoint = failServer.URL

	ok.Fetch(context.Background(), model.Filter{Page: 1})
	fail.Fetch(context.Background(), model.Filter{Page: 1})

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	values := map[string]float64{}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			key := mf.GetName()
			for _, lp := range m.GetLabel() {
				key += "," + lp.GetName() + "=" + lp.GetValue()
			}
			if c := m.GetCounter(); c != nil {
				values[key] = c.GetValue()
			}
		}
	}

	checks := map[string]float64{
		"newshub_provider_fetch_success_total,provider=newsapi":                  1,
		"newshub_provider_articles_total,provider=newsapi":                       1,
		"newshub_provider_fetch_fail_total,provider=guardian,reason=http_status": 1,
		"newshub_provider_http_status_total,provider=guardian,status_code=401":   1,
		"newshub_provider_http_status_total,provider=newsapi,status_code=200":    1,
	}
	for key, want := range checks {
		if got := values[key]; got != want {
			t.Errorf("%s = %v, want %v", key, got, want)
		}
	}
}

// Package aggregator は有効なプロバイダーへの並列問い合わせと結果の統合を提供する。
package aggregator

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"github.com/hitoshi/newshub/internal/metrics"
	"github.com/hitoshi/newshub/internal/model"
	"github.com/hitoshi/newshub/internal/provider"
)

// defaultProviderTimeout はプロバイダー1件あたりの待ち時間の上限（デフォルト）。
const defaultProviderTimeout = 8 * time.Second

// Aggregator は有効なプロバイダーに並列で問い合わせ、記事を統合する。
// 呼び出し間で状態を持たない。
type Aggregator struct {
	providers []provider.Provider
	logger    *slog.Logger
	metrics   metrics.MetricsCollector
	timeout   time.Duration
}

// New はAggregatorを生成する。
// timeoutが0以下の場合はデフォルト値8秒を使用する。
func New(providers []provider.Provider, logger *slog.Logger, collector metrics.MetricsCollector, timeout time.Duration) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	if collector == nil {
		collector = metrics.Nop{}
	}
	if timeout <= 0 {
		timeout = defaultProviderTimeout
	}
	return &Aggregator{
		providers: providers,
		logger:    logger,
		metrics:   collector,
		timeout:   timeout,
	}
}

// Aggregate はFilterで有効なプロバイダーから記事を取得し、
// 公開日時の降順に並べた統合リストを返す。
//
// 個々のプロバイダーの失敗は結果に現れない（そのプロバイダーの記事が欠けるだけ）。
// エラーを返すのは、プロバイダー呼び出しの外側で予期しない失敗が起きた場合のみ。
// プロバイダーへの呼び出しは呼び出し元のキャンセルに影響されず、各自のタイムアウトまで継続する。
func (a *Aggregator) Aggregate(ctx context.Context, filter model.Filter) (articles []model.Article, err error) {
	start := time.Now()

	defer func() {
		if rec := recover(); rec != nil {
			a.logger.Error("記事の統合中にpanicが発生しました",
				slog.Any("panic", rec),
				slog.String("stack", string(debug.Stack())),
			)
			articles = nil
			err = fmt.Errorf("記事の統合に失敗しました: %v", rec)
		}
	}()

	// 結果の順序はソートで決まるため、プロバイダーごとのスロットに格納する
	results := make([][]model.Article, len(a.providers))
	base := context.WithoutCancel(ctx)

	var wg sync.WaitGroup
	for i, p := range a.providers {
		if !filter.Includes(p.ID()) {
			continue
		}

		wg.Add(1)
		go func(i int, p provider.Provider) {
			defer wg.Done()
			results[i] = a.settle(base, p, filter)
		}(i, p)
	}
	wg.Wait()

	articles = merge(results)
	SortByPublishedDesc(articles)

	a.metrics.RecordAggregation(len(articles), time.Since(start))
	a.logger.Info("記事の統合が完了しました",
		slog.Int("article_count", len(articles)),
		slog.String("sources", model.JoinSources(filter.Sources)),
		slog.Int("page", filter.Page),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return articles, nil
}

// settle はプロバイダーを1件実行し、panicを含むあらゆる失敗を空リストに丸める。
func (a *Aggregator) settle(ctx context.Context, p provider.Provider, filter model.Filter) (articles []model.Article) {
	defer func() {
		if rec := recover(); rec != nil {
			a.logger.Error("プロバイダーの実行中にpanicが発生しました",
				slog.String("provider", string(p.ID())),
				slog.Any("panic", rec),
			)
			a.metrics.RecordProviderFailure(string(p.ID()), "panic")
			articles = nil
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	return p.Fetch(ctx, filter)
}

func merge(results [][]model.Article) []model.Article {
	total := 0
	for _, r := range results {
		total += len(r)
	}
	merged := make([]model.Article, 0, total)
	for _, r := range results {
		merged = append(merged, r...)
	}
	return merged
}

// SortByPublishedDesc は記事を公開日時の降順に並べ替える。
// 公開日時をパースできない記事は末尾に置き、その間の相対順序は保つ。
func SortByPublishedDesc(articles []model.Article) {
	keys := make([]time.Time, len(articles))
	valid := make([]bool, len(articles))
	for i, a := range articles {
		keys[i], valid[i] = a.PublishedTime()
	}

	idx := make([]int, len(articles))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(x, y int) bool {
		i, j := idx[x], idx[y]
		if valid[i] != valid[j] {
			return valid[i]
		}
		return keys[i].After(keys[j])
	})

	sorted := make([]model.Article, len(articles))
	for pos, i := range idx {
		sorted[pos] = articles[i]
	}
	copy(articles, sorted)
}

package newsclient

import (
	"context"
	"sync"

	"github.com/hitoshi/newshub/internal/model"
)

// Fetcher は記事取得の抽象。*Clientが実装する。
type Fetcher interface {
	FetchNews(ctx context.Context, filter model.Filter) ([]model.Article, error)
}

// State はHookが公開する取得状態。
type State struct {
	Data      []model.Article
	IsLoading bool
	IsError   bool
}

// Hook はフィルタの変化ごとに記事を1回取得する。
// 新しいフィルタが設定されると進行中の取得はキャンセルされ、その結果は破棄される。
type Hook struct {
	fetcher  Fetcher
	onChange func(State)

	mu      sync.Mutex
	state   State
	filter  model.Filter
	issued  bool
	seq     uint64
	cancel  context.CancelFunc
	closed  bool
	pending sync.WaitGroup
}

// NewHook はHookを生成する。onChangeは状態が変わるたびに呼ばれる（nil可）。
func NewHook(fetcher Fetcher, onChange func(State)) *Hook {
	return &Hook{
		fetcher:  fetcher,
		onChange: onChange,
		state:    State{Data: []model.Article{}},
	}
}

// SetFilter はフィルタを設定し、必要なら取得を開始する。
// 直前に発行したフィルタと等しい場合は何もしない。
func (h *Hook) SetFilter(filter model.Filter) {
	h.mu.Lock()
	if h.closed || (h.issued && h.filter.Equal(filter)) {
		h.mu.Unlock()
		return
	}
	if h.cancel != nil {
		h.cancel()
	}

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	h.filter = cloneFilter(filter)
	req := cloneFilter(filter)
	h.issued = true
	h.seq++
	seq := h.seq

	// 前回のデータは取得完了まで保持する
	h.state.IsLoading = true
	h.state.IsError = false
	snapshot := h.snapshotLocked()
	h.pending.Add(1)
	h.mu.Unlock()

	h.notify(snapshot)
	go h.run(ctx, cancel, seq, req)
}

func (h *Hook) run(ctx context.Context, cancel context.CancelFunc, seq uint64, filter model.Filter) {
	defer h.pending.Done()
	defer cancel()

	articles, err := h.fetcher.FetchNews(ctx, filter)

	h.mu.Lock()
	if seq != h.seq || h.closed {
		h.mu.Unlock()
		return
	}
	h.state.IsLoading = false
	if err != nil {
		h.state.IsError = true
	} else {
		if articles == nil {
			articles = []model.Article{}
		}
		h.state.Data = articles
		h.state.IsError = false
	}
	snapshot := h.snapshotLocked()
	h.mu.Unlock()

	h.notify(snapshot)
}

// State は現在の状態のコピーを返す。
func (h *Hook) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.snapshotLocked()
}

// Wait は発行済みの取得がすべて終わるまで待つ。
func (h *Hook) Wait() {
	h.pending.Wait()
}

// Close は進行中の取得をキャンセルし、以降のSetFilterを無視する。
func (h *Hook) Close() {
	h.mu.Lock()
	h.closed = true
	if h.cancel != nil {
		h.cancel()
	}
	h.mu.Unlock()
	h.pending.Wait()
}

func (h *Hook) snapshotLocked() State {
	s := h.state
	s.Data = append([]model.Article(nil), h.state.Data...)
	if s.Data == nil {
		s.Data = []model.Article{}
	}
	return s
}

func (h *Hook) notify(s State) {
	if h.onChange != nil {
		h.onChange(s)
	}
}

func cloneFilter(f model.Filter) model.Filter {
	f.Sources = append([]model.ProviderID(nil), f.Sources...)
	return f
}

package newsclient

import (
	"context"
	"log/slog"
	"sync"

	"github.com/hitoshi/newshub/internal/model"
)

// FilterChange はChangeFilterに渡す部分更新。nilのフィールドは変更しない。
type FilterChange struct {
	Query    *string
	Category *string
	Sources  *[]model.ProviderID
	FromDate *string
	ToDate   *string
}

// PreferenceChange はChangePreferencesに渡す部分更新。nilのフィールドは保存済みの値を保つ。
type PreferenceChange struct {
	Sources  *[]model.ProviderID
	Category *string
}

// Session はフィルタと設定を保持し、変更をHookに反映する。
type Session struct {
	store  PreferenceStore
	hook   *Hook
	logger *slog.Logger

	mu     sync.Mutex
	filter model.Filter
	prefs  model.UserPreference
}

// NewSession は保存済み設定を一度だけ読み込んでフィルタを初期化し、最初の取得を開始する。
// 設定の読み込みに失敗した場合はログに記録し、デフォルトのフィルタで続行する。
func NewSession(ctx context.Context, store PreferenceStore, hook *Hook, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Session{
		store:  store,
		hook:   hook,
		logger: logger,
		filter: model.Filter{Page: model.DefaultPage},
		prefs:  model.UserPreference{PreferredSources: []model.ProviderID{}},
	}

	pref, err := store.Load(ctx)
	if err != nil {
		logger.Warn("設定の読み込みに失敗しました", slog.String("error", err.Error()))
	}
	if pref != nil {
		s.prefs = clonePreference(*pref)
		s.filter.Sources = append([]model.ProviderID(nil), pref.PreferredSources...)
		if pref.PreferredCategory != "" {
			s.filter.Category = pref.PreferredCategory
		}
	}

	hook.SetFilter(s.filter)
	return s
}

// ChangeFilter はフィルタを部分更新し、ページを1に戻して再取得する。
func (s *Session) ChangeFilter(change FilterChange) {
	s.mu.Lock()
	if change.Query != nil {
		s.filter.Query = *change.Query
	}
	if change.Category != nil {
		s.filter.Category = *change.Category
	}
	if change.Sources != nil {
		s.filter.Sources = append([]model.ProviderID(nil), (*change.Sources)...)
	}
	if change.FromDate != nil {
		s.filter.FromDate = *change.FromDate
	}
	if change.ToDate != nil {
		s.filter.ToDate = *change.ToDate
	}
	s.filter.Page = model.DefaultPage
	filter := cloneFilter(s.filter)
	s.mu.Unlock()

	s.hook.SetFilter(filter)
}

// ChangePreferences は変更を保存済みの設定にマージして保存し、
// 優先ソースが指定されていればフィルタのソースを置き換える。
// ページは変更しない。保存に失敗した場合もフィルタは更新し、エラーを返す。
func (s *Session) ChangePreferences(ctx context.Context, change PreferenceChange) error {
	s.mu.Lock()
	if change.Sources != nil {
		s.prefs.PreferredSources = append([]model.ProviderID{}, (*change.Sources)...)
		s.filter.Sources = append([]model.ProviderID(nil), (*change.Sources)...)
	}
	if change.Category != nil {
		s.prefs.PreferredCategory = *change.Category
	}
	saved := clonePreference(s.prefs)
	filter := cloneFilter(s.filter)
	s.mu.Unlock()

	err := s.store.Save(ctx, saved)
	if err != nil {
		s.logger.Error("設定の保存に失敗しました", slog.String("error", err.Error()))
	}

	s.hook.SetFilter(filter)
	return err
}

// LoadMore は次のページを取得する。取得結果は現在のデータを置き換える。
func (s *Session) LoadMore() {
	s.mu.Lock()
	s.filter.Page++
	filter := cloneFilter(s.filter)
	s.mu.Unlock()

	s.hook.SetFilter(filter)
}

// Filter は現在のフィルタのコピーを返す。
func (s *Session) Filter() model.Filter {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneFilter(s.filter)
}

// Preferences は現在の設定のコピーを返す。
func (s *Session) Preferences() model.UserPreference {
	s.mu.Lock()
	defer s.mu.Unlock()
	return clonePreference(s.prefs)
}

// State はHookの現在の状態を返す。
func (s *Session) State() State {
	return s.hook.State()
}

func clonePreference(p model.UserPreference) model.UserPreference {
	sources := make([]model.ProviderID, len(p.PreferredSources))
	copy(sources, p.PreferredSources)
	p.PreferredSources = sources
	return p
}

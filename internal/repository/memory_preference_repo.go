package repository

import (
	"context"
	"sync"

	"github.com/hitoshi/newshub/internal/model"
)

// MemoryPreferenceRepo はプロセス内メモリに設定を保持するリポジトリ。
// DATABASE_URL未設定時に使用する。再起動で内容は失われる。
type MemoryPreferenceRepo struct {
	mu    sync.RWMutex
	prefs map[string]model.UserPreference
}

// NewMemoryPreferenceRepo はMemoryPreferenceRepoを生成する。
func NewMemoryPreferenceRepo() *MemoryPreferenceRepo {
	return &MemoryPreferenceRepo{prefs: make(map[string]model.UserPreference)}
}

// Load は指定クライアントの設定のコピーを返す。見つからない場合はnilを返す。
func (r *MemoryPreferenceRepo) Load(_ context.Context, clientID string) (*model.UserPreference, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	pref, ok := r.prefs[clientID]
	if !ok {
		return nil, nil
	}
	return &model.UserPreference{
		PreferredSources:  copySources(pref.PreferredSources),
		PreferredCategory: pref.PreferredCategory,
	}, nil
}

// Save は設定のコピーを保存する。
func (r *MemoryPreferenceRepo) Save(_ context.Context, clientID string, pref model.UserPreference) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.prefs[clientID] = model.UserPreference{
		PreferredSources:  copySources(pref.PreferredSources),
		PreferredCategory: pref.PreferredCategory,
	}
	return nil
}

// Delete は指定クライアントの設定を削除する。
func (r *MemoryPreferenceRepo) Delete(_ context.Context, clientID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.prefs, clientID)
	return nil
}

// compile-time interface check
var _ PreferenceRepository = (*MemoryPreferenceRepo)(nil)

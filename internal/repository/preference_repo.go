// Package repository はデータ永続化のインターフェースと実装を提供する。
package repository

import (
	"context"

	"github.com/hitoshi/newshub/internal/model"
)

// PreferenceRepository はクライアントごとの表示設定の永続化インターフェース。
type PreferenceRepository interface {
	// Load は指定クライアントの設定を取得する。見つからない場合はnilを返す。
	Load(ctx context.Context, clientID string) (*model.UserPreference, error)

	// Save は設定を保存する。既存の設定は上書きされる。
	Save(ctx context.Context, clientID string, pref model.UserPreference) error

	// Delete は指定クライアントの設定を削除する。存在しない場合もエラーにしない。
	Delete(ctx context.Context, clientID string) error
}

// copySources はスライスの共有を避けるためにコピーを返す。
// nilまたは空の場合は空スライスを返す。
func copySources(src []model.ProviderID) []model.ProviderID {
	dst := make([]model.ProviderID, len(src))
	copy(dst, src)
	return dst
}

package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/newshub/internal/model"
)

type sourcesResponse struct {
	Sources []model.ProviderInfo `json:"sources"`
}

type categoriesResponse struct {
	Categories []string `json:"categories"`
}

// ListSources は選択可能なプロバイダーの一覧を返す。
// GET /api/sources
func ListSources(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, sourcesResponse{Sources: model.Providers})
}

// ListCategories は選択可能なカテゴリの一覧を返す。
// GET /api/categories
func ListCategories(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, categoriesResponse{Categories: model.Categories})
}

// Pinger は依存先の疎通確認インターフェース。*sql.DBが満たす。
type Pinger interface {
	PingContext(ctx context.Context) error
}

type healthResponse struct {
	Status string `json:"status"`
}

// NewHealthHandler はヘルスチェックハンドラーを返す。
// pingerがnilでない場合は疎通を確認し、失敗時は503を返す。
func NewHealthHandler(pinger Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if pinger != nil {
			if err := pinger.PingContext(r.Context()); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
	}
}

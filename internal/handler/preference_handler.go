package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/newshub/internal/middleware"
	"github.com/hitoshi/newshub/internal/model"
)

// maxPreferenceBodySize は設定リクエストボディの上限（64KiB）。
const maxPreferenceBodySize = 64 << 10

// PreferenceServiceInterface は設定ハンドラーが必要とするサービスインターフェース。
type PreferenceServiceInterface interface {
	// Create はクライアントIDを発行して設定を保存する。
	Create(ctx context.Context, pref model.UserPreference) (string, model.UserPreference, error)
	// Get は設定を取得する。
	Get(ctx context.Context, clientID string) (*model.UserPreference, error)
	// Update は設定を上書き保存する。
	Update(ctx context.Context, clientID string, pref model.UserPreference) (model.UserPreference, error)
	// Delete は設定を削除する。
	Delete(ctx context.Context, clientID string) error
}

// PreferenceHandler はクライアント設定のHTTPハンドラー。
type PreferenceHandler struct {
	service PreferenceServiceInterface
	logger  *slog.Logger
}

// NewPreferenceHandler はPreferenceHandlerを生成する。
func NewPreferenceHandler(service PreferenceServiceInterface, logger *slog.Logger) *PreferenceHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &PreferenceHandler{
		service: service,
		logger:  logger,
	}
}

// createPreferenceResponse は設定作成のAPIレスポンス。
type createPreferenceResponse struct {
	ClientID    string               `json:"client_id"`
	Preferences model.UserPreference `json:"preferences"`
}

// CreatePreference はクライアントIDを発行して設定を保存する。
// POST /api/preferences
func (h *PreferenceHandler) CreatePreference(w http.ResponseWriter, r *http.Request) {
	pref, ok := decodePreference(w, r)
	if !ok {
		return
	}

	clientID, saved, err := h.service.Create(r.Context(), pref)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, createPreferenceResponse{
		ClientID:    clientID,
		Preferences: saved,
	})
}

// GetPreference は設定を取得する。
// GET /api/preferences/{clientID}
func (h *PreferenceHandler) GetPreference(w http.ResponseWriter, r *http.Request) {
	pref, err := h.service.Get(r.Context(), chi.URLParam(r, "clientID"))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, pref)
}

// UpdatePreference は設定を上書き保存する。
// PUT /api/preferences/{clientID}
func (h *PreferenceHandler) UpdatePreference(w http.ResponseWriter, r *http.Request) {
	pref, ok := decodePreference(w, r)
	if !ok {
		return
	}

	saved, err := h.service.Update(r.Context(), chi.URLParam(r, "clientID"), pref)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, saved)
}

// DeletePreference は設定を削除する。
// DELETE /api/preferences/{clientID}
func (h *PreferenceHandler) DeletePreference(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "clientID")); err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// decodePreference はリクエストボディをUserPreferenceにデコードする。
// 失敗時はエラーレスポンスを書き込み、falseを返す。
func decodePreference(w http.ResponseWriter, r *http.Request) (model.UserPreference, bool) {
	var pref model.UserPreference
	r.Body = http.MaxBytesReader(w, r.Body, maxPreferenceBodySize)
	if err := json.NewDecoder(r.Body).Decode(&pref); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return model.UserPreference{}, false
	}
	return pref, true
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func (h *PreferenceHandler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		middleware.WriteErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	h.logger.Error("internal server error",
		slog.String("error", err.Error()),
		slog.String("request_id", middleware.RequestIDFromContext(r.Context())),
	)
	middleware.WriteInternalServerError(w)
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeInvalidClientID, model.ErrCodeInvalidSource,
		model.ErrCodeInvalidCategory, model.ErrCodeInvalidRequest:
		return http.StatusBadRequest
	case model.ErrCodePreferenceNotFound:
		return http.StatusNotFound
	case model.ErrCodeProviderRateLimited:
		return http.StatusTooManyRequests
	case model.ErrCodeProviderFetchFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

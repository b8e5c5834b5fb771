package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/hitoshi/newshub/internal/middleware"
	"github.com/hitoshi/newshub/internal/model"
)

// NewsAggregator はニュースハンドラーが必要とする集約インターフェース。
type NewsAggregator interface {
	// Aggregate はFilterに対応する統合済み記事リストを返す。
	Aggregate(ctx context.Context, filter model.Filter) ([]model.Article, error)
}

// NewsHandler は記事取得のHTTPハンドラー。
type NewsHandler struct {
	aggregator NewsAggregator
	logger     *slog.Logger
}

// NewNewsHandler はNewsHandlerを生成する。
func NewNewsHandler(aggregator NewsAggregator, logger *slog.Logger) *NewsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &NewsHandler{
		aggregator: aggregator,
		logger:     logger,
	}
}

// newsResponse は記事一覧のAPIレスポンス。
type newsResponse struct {
	Articles []model.Article `json:"articles"`
}

// newsErrorResponse は記事取得失敗時のAPIレスポンス。
type newsErrorResponse struct {
	Error string `json:"error"`
}

// fetchFailedMessage は記事取得失敗時に返す固定メッセージ。
const fetchFailedMessage = "Failed to fetch news"

// GetNews は記事一覧を取得する。
// GET /api/news?query=&category=&sources=&fromDate=&toDate=&page=
func (h *NewsHandler) GetNews(w http.ResponseWriter, r *http.Request) {
	filter := ParseFilter(r.URL.Query())

	articles, err := h.aggregator.Aggregate(r.Context(), filter)
	if err != nil {
		h.logger.Error("記事の取得に失敗しました",
			slog.String("error", err.Error()),
			slog.String("request_id", middleware.RequestIDFromContext(r.Context())),
		)
		writeJSON(w, http.StatusInternalServerError, newsErrorResponse{Error: fetchFailedMessage})
		return
	}

	if articles == nil {
		articles = []model.Article{}
	}
	writeJSON(w, http.StatusOK, newsResponse{Articles: articles})
}

// ParseFilter はクエリパラメータをFilterに変換する。
// pageは未指定・数値以外・1未満の場合に1となる。sourcesは空要素を除いたカンマ区切り。
func ParseFilter(q url.Values) model.Filter {
	return model.Filter{
		Query:    q.Get("query"),
		Category: q.Get("category"),
		Sources:  model.ParseSources(q.Get("sources")),
		FromDate: q.Get("fromDate"),
		ToDate:   q.Get("toDate"),
		Page:     parsePage(q.Get("page")),
	}
}

func parsePage(raw string) int {
	page, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || page < 1 {
		return model.DefaultPage
	}
	return page
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}

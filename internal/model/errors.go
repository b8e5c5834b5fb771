// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: validation, preference, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidClientID     = "INVALID_CLIENT_ID"
	ErrCodeInvalidSource       = "INVALID_SOURCE"
	ErrCodeInvalidCategory     = "INVALID_CATEGORY"
	ErrCodePreferenceNotFound  = "PREFERENCE_NOT_FOUND"
	ErrCodeInvalidRequest      = "INVALID_REQUEST"
	ErrCodeProviderRateLimited = "PROVIDER_RATE_LIMITED"
	ErrCodeProviderFetchFailed = "PROVIDER_FETCH_FAILED"
)

// NewInvalidClientIDError はクライアントIDの形式不正エラーを生成する。
func NewInvalidClientIDError(clientID string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidClientID,
		Message:  fmt.Sprintf("無効なクライアントIDです: %s", clientID),
		Category: "validation",
		Action:   "POST /api/preferences で発行されたUUID形式のクライアントIDを指定してください。",
	}
}

// NewInvalidSourceError は未知のプロバイダー指定エラーを生成する。
func NewInvalidSourceError(source string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidSource,
		Message:  fmt.Sprintf("無効なソースです: %s", source),
		Category: "validation",
		Action:   "ソースには newsapi、guardian、nyt のいずれかを指定してください。",
	}
}

// NewInvalidCategoryError は未知のカテゴリ指定エラーを生成する。
func NewInvalidCategoryError(category string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCategory,
		Message:  fmt.Sprintf("無効なカテゴリです: %s", category),
		Category: "validation",
		Action:   "カテゴリは /api/categories の一覧から選択するか、空にしてください。",
	}
}

// NewPreferenceNotFoundError は設定未登録エラーを生成する。
func NewPreferenceNotFoundError(clientID string) *APIError {
	return &APIError{
		Code:     ErrCodePreferenceNotFound,
		Message:  fmt.Sprintf("指定されたクライアントの設定が見つかりません: %s", clientID),
		Category: "preference",
		Action:   "設定を保存してから再度取得してください。",
	}
}

// NewInvalidRequestError はリクエストボディの解析失敗エラーを生成する。
func NewInvalidRequestError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  "リクエストボディの解析に失敗しました。",
		Category: "validation",
		Action:   "正しいJSON形式でリクエストしてください。",
	}
}

// NewProviderRateLimitedError はプロバイダーへの送信枠超過エラーを生成する。
func NewProviderRateLimitedError(provider ProviderID) *APIError {
	return &APIError{
		Code:     ErrCodeProviderRateLimited,
		Message:  fmt.Sprintf("プロバイダーへのリクエスト上限に達しました: %s", provider),
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewProviderFetchFailedError はプロバイダーからの取得失敗エラーを生成する。
func NewProviderFetchFailedError(provider ProviderID, reason string) *APIError {
	return &APIError{
		Code:     ErrCodeProviderFetchFailed,
		Message:  fmt.Sprintf("プロバイダーからの取得に失敗しました: %s: %s", provider, reason),
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

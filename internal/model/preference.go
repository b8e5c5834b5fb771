package model

// UserPreference はユーザーの表示設定。
// クライアント側で永続化され、Filterの初期値として使用される。
type UserPreference struct {
	PreferredSources  []ProviderID `json:"preferredSources"`
	PreferredCategory string       `json:"preferredCategory"`
}

// Package preference はクライアントごとの表示設定の検証と永続化を提供する。
package preference

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/hitoshi/newshub/internal/model"
	"github.com/hitoshi/newshub/internal/repository"
)

// Service は表示設定のサービス層。
// クライアントIDの発行、設定の検証・正規化、保存・取得・削除を提供する。
type Service struct {
	repo   repository.PreferenceRepository
	logger *slog.Logger
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(repo repository.PreferenceRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:   repo,
		logger: logger,
	}
}

// Normalize は設定を検証し、正規化した値を返す。
// ソースは既知のプロバイダー識別子のみ受け付け、重複は初出順を保って除去する。
// カテゴリは空文字列または列挙値のいずれか。
func Normalize(pref model.UserPreference) (model.UserPreference, error) {
	seen := make(map[model.ProviderID]bool, len(pref.PreferredSources))
	sources := make([]model.ProviderID, 0, len(pref.PreferredSources))
	for _, raw := range pref.PreferredSources {
		id := model.ProviderID(strings.ToLower(strings.TrimSpace(string(raw))))
		if !model.IsKnownProvider(id) {
			return model.UserPreference{}, model.NewInvalidSourceError(string(raw))
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		sources = append(sources, id)
	}

	category := strings.ToLower(strings.TrimSpace(pref.PreferredCategory))
	if category != "" && !model.IsKnownCategory(category) {
		return model.UserPreference{}, model.NewInvalidCategoryError(pref.PreferredCategory)
	}

	return model.UserPreference{
		PreferredSources:  sources,
		PreferredCategory: category,
	}, nil
}

// Create は新しいクライアントIDを発行し、設定を保存する。
func (s *Service) Create(ctx context.Context, pref model.UserPreference) (string, model.UserPreference, error) {
	normalized, err := Normalize(pref)
	if err != nil {
		return "", model.UserPreference{}, err
	}

	clientID := uuid.NewString()
	if err := s.repo.Save(ctx, clientID, normalized); err != nil {
		return "", model.UserPreference{}, fmt.Errorf("設定の保存に失敗しました: %w", err)
	}

	s.logger.Info("クライアント設定を作成しました",
		slog.String("client_id", clientID),
		slog.String("sources", model.JoinSources(normalized.PreferredSources)),
		slog.String("category", normalized.PreferredCategory),
	)
	return clientID, normalized, nil
}

// Get は設定を取得する。存在しない場合はPREFERENCE_NOT_FOUNDを返す。
func (s *Service) Get(ctx context.Context, clientID string) (*model.UserPreference, error) {
	if err := validateClientID(clientID); err != nil {
		return nil, err
	}

	pref, err := s.repo.Load(ctx, clientID)
	if err != nil {
		return nil, fmt.Errorf("設定の取得に失敗しました: %w", err)
	}
	if pref == nil {
		return nil, model.NewPreferenceNotFoundError(clientID)
	}
	if pref.PreferredSources == nil {
		pref.PreferredSources = []model.ProviderID{}
	}
	return pref, nil
}

// Update は設定を検証して上書き保存し、保存した値を返す。
// 未登録のクライアントIDでも保存する（クライアント側で生成したIDを受け入れる）。
func (s *Service) Update(ctx context.Context, clientID string, pref model.UserPreference) (model.UserPreference, error) {
	if err := validateClientID(clientID); err != nil {
		return model.UserPreference{}, err
	}

	normalized, err := Normalize(pref)
	if err != nil {
		return model.UserPreference{}, err
	}

	if err := s.repo.Save(ctx, clientID, normalized); err != nil {
		return model.UserPreference{}, fmt.Errorf("設定の保存に失敗しました: %w", err)
	}

	s.logger.Debug("クライアント設定を更新しました",
		slog.String("client_id", clientID),
		slog.String("sources", model.JoinSources(normalized.PreferredSources)),
		slog.String("category", normalized.PreferredCategory),
	)
	return normalized, nil
}

// Delete は設定を削除する。存在しない場合もエラーにしない。
func (s *Service) Delete(ctx context.Context, clientID string) error {
	if err := validateClientID(clientID); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, clientID); err != nil {
		return fmt.Errorf("設定の削除に失敗しました: %w", err)
	}
	return nil
}

// validateClientID はクライアントIDがUUID形式かを検証する。
func validateClientID(clientID string) error {
	if _, err := uuid.Parse(clientID); err != nil {
		return model.NewInvalidClientIDError(clientID)
	}
	return nil
}

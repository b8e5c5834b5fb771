package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/newshub/internal/model"
)

// PostgresPreferenceRepo はPostgreSQLを使用した設定リポジトリ。
type PostgresPreferenceRepo struct {
	db *sql.DB
}

// NewPostgresPreferenceRepo はPostgresPreferenceRepoを生成する。
func NewPostgresPreferenceRepo(db *sql.DB) *PostgresPreferenceRepo {
	return &PostgresPreferenceRepo{db: db}
}

// Load は指定クライアントの設定を取得する。見つからない場合はnilを返す。
func (r *PostgresPreferenceRepo) Load(ctx context.Context, clientID string) (*model.UserPreference, error) {
	var sources []string
	pref := &model.UserPreference{}
	err := r.db.QueryRowContext(ctx,
		`SELECT preferred_sources, preferred_category FROM user_preferences WHERE client_id = $1`,
		clientID,
	).Scan(pq.Array(&sources), &pref.PreferredCategory)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load preference: %w", err)
	}

	pref.PreferredSources = make([]model.ProviderID, len(sources))
	for i, s := range sources {
		pref.PreferredSources[i] = model.ProviderID(s)
	}
	return pref, nil
}

// Save は設定をUPSERTで保存する。
func (r *PostgresPreferenceRepo) Save(ctx context.Context, clientID string, pref model.UserPreference) error {
	sources := make([]string, len(pref.PreferredSources))
	for i, s := range pref.PreferredSources {
		sources[i] = string(s)
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO user_preferences (client_id, preferred_sources, preferred_category, created_at, updated_at)
		 VALUES ($1, $2, $3, now(), now())
		 ON CONFLICT (client_id) DO UPDATE SET
		     preferred_sources = EXCLUDED.preferred_sources,
		     preferred_category = EXCLUDED.preferred_category,
		     updated_at = now()`,
		clientID, pq.Array(sources), pref.PreferredCategory,
	)
	if err != nil {
		return fmt.Errorf("failed to save preference: %w", err)
	}
	return nil
}

// Delete は指定クライアントの設定を削除する。
func (r *PostgresPreferenceRepo) Delete(ctx context.Context, clientID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM user_preferences WHERE client_id = $1`,
		clientID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete preference: %w", err)
	}
	return nil
}

// compile-time interface check
var _ PreferenceRepository = (*PostgresPreferenceRepo)(nil)

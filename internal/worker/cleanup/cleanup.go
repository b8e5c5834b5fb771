// Package cleanup は期限切れのユーザー設定を削除するジョブを提供する。
// 一定期間（デフォルト180日）更新されていないuser_preferencesの行を定期的に削除する。
package cleanup

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

// DefaultInterval はStartの実行間隔のデフォルト値。
const DefaultInterval = 24 * time.Hour

// Executor はSQLのExecContextを抽象化するインターフェース。
// *sql.DB や *sql.Tx を受け付けることができる。
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// PreferenceCleanupJob は保持期間を超過したユーザー設定の削除ジョブ。
// 削除は冪等で、対象がない場合もエラーにならない。
type PreferenceCleanupJob struct {
	db            Executor
	logger        *slog.Logger
	retentionDays int
}

// NewPreferenceCleanupJob は新しいPreferenceCleanupJobを生成する。
func NewPreferenceCleanupJob(db Executor, logger *slog.Logger, retentionDays int) *PreferenceCleanupJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &PreferenceCleanupJob{
		db:            db,
		logger:        logger,
		retentionDays: retentionDays,
	}
}

// RetentionDays は保持日数を返す。
func (j *PreferenceCleanupJob) RetentionDays() int {
	return j.retentionDays
}

// Run はupdated_atが保持期間より古い設定を削除し、削除件数を返す。
func (j *PreferenceCleanupJob) Run(ctx context.Context) (int64, error) {
	start := time.Now()

	interval := fmt.Sprintf("%d days", j.retentionDays)

	query := `DELETE FROM user_preferences WHERE updated_at < now() - $1::interval`
	result, err := j.db.ExecContext(ctx, query, interval)
	if err != nil {
		j.logger.Error("設定クリーンアップジョブの実行に失敗しました",
			slog.String("error", err.Error()),
			slog.Int("retention_days", j.retentionDays),
		)
		return 0, fmt.Errorf("設定クリーンアップの実行に失敗: %w", err)
	}

	deletedCount, err := result.RowsAffected()
	if err != nil {
		j.logger.Error("削除件数の取得に失敗しました",
			slog.String("error", err.Error()),
		)
		return 0, fmt.Errorf("削除件数の取得に失敗: %w", err)
	}

	j.logger.Info("設定クリーンアップジョブが完了しました",
		slog.Int64("deleted_count", deletedCount),
		slog.Int("retention_days", j.retentionDays),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return deletedCount, nil
}

// Start は起動直後に1回、その後interval毎にRunを実行する。ctxがキャンセルされるまでブロックする。
// 保持日数が0以下の場合は何もせずに戻る。
func (j *PreferenceCleanupJob) Start(ctx context.Context, interval time.Duration) {
	if j.retentionDays <= 0 {
		j.logger.Info("設定クリーンアップジョブは無効です")
		return
	}
	if interval <= 0 {
		interval = DefaultInterval
	}

	// エラーはRun内でログ出力済み
	_, _ = j.Run(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = j.Run(ctx)
		}
	}
}

// Package cleanup はお問い合わせメッセージの自動削除ジョブを提供する。
// 保持期間（デフォルト365日）を超過したメッセージを日次バッチで削除する。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/salonbook/internal/metrics"
)

// Purger は指定時刻より古いお問い合わせを削除するインターフェース。
// repository.ContactRepositoryが実装する。
type Purger interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// CleanupJob は保持期間を超過したお問い合わせの自動削除ジョブ。
// 削除対象がない場合も成功とする冪等な処理。
type CleanupJob struct {
	purger        Purger
	logger        *slog.Logger
	metrics       metrics.MetricsCollector
	now           func() time.Time
	RetentionDays int // お問い合わせの保持日数（デフォルト: 365）
}

// NewCleanupJob は新しいCleanupJobを生成する。
// デフォルトの保持日数は365日。
func NewCleanupJob(purger Purger, logger *slog.Logger, collector metrics.MetricsCollector) *CleanupJob {
	if collector == nil {
		collector = metrics.NopCollector{}
	}
	return &CleanupJob{
		purger:        purger,
		logger:        logger,
		metrics:       collector,
		now:           time.Now,
		RetentionDays: 365,
	}
}

// Run は保持期間を超過したお問い合わせを削除する。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()
	cutoff := j.now().UTC().AddDate(0, 0, -j.RetentionDays)

	deletedCount, err := j.purger.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		j.logger.Error("お問い合わせクリーンアップジョブの実行に失敗しました",
			slog.String("error", err.Error()),
			slog.Int("retention_days", j.RetentionDays),
		)
		return fmt.Errorf("お問い合わせクリーンアップの実行に失敗: %w", err)
	}

	j.metrics.RecordContactsPurged(deletedCount)

	duration := time.Since(start)
	j.logger.Info("お問い合わせクリーンアップジョブが完了しました",
		slog.Int64("deleted_count", deletedCount),
		slog.Int("retention_days", j.RetentionDays),
		slog.Time("cutoff", cutoff),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}

// Start はinterval間隔でRunを繰り返す。起動直後にも1回実行する。
// コンテキストがキャンセルされるまで実行を継続し、個々の失敗では停止しない。
func (j *CleanupJob) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	j.logger.Info("クリーンアップスケジューラを開始しました",
		slog.Duration("interval", interval),
		slog.Int("retention_days", j.RetentionDays),
	)

	_ = j.Run(ctx)

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("クリーンアップスケジューラを停止しました")
			return
		case <-ticker.C:
			_ = j.Run(ctx)
		}
	}
}

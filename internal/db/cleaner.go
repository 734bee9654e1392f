package db

import (
	"context"
	"database/sql"
	"time"

	"go.uber.org/zap"

	"github.com/samplerpa08-cpu/tourplan/internal/week"
)

// StartRetentionCleaner purges plans and custom locations for weeks older
// than the retention window, on the given interval. Week identifiers are
// YYYYMMDD strings, so the cutoff comparison is a plain string compare.
func StartRetentionCleaner(
	ctx context.Context,
	db *sql.DB,
	interval time.Duration,
	retention time.Duration,
	log *zap.Logger,
) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				cutoff := week.MustCompute(time.Now().Add(-retention)).ID
				var removed int64
				for _, table := range []string{"plans", "custom_locations"} {
					res, err := db.ExecContext(ctx,
						`DELETE FROM `+table+` WHERE week_start < $1`, cutoff)
					if err != nil {
						log.Error("failed to purge expired weeks",
							zap.String("table", table), zap.Error(err))
						continue
					}
					if rows, _ := res.RowsAffected(); rows > 0 {
						removed += rows
					}
				}
				if removed > 0 {
					log.Info("purged expired weeks",
						zap.String("cutoff", cutoff), zap.Int64("removed", removed))
				}
			}
		}
	}()
}

package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-event-booking/internal/domain/booking"
	"github.com/sanosuguru/go-event-booking/internal/pkg/logger"
	"github.com/sanosuguru/go-event-booking/internal/pkg/metrics"
)

// StatsProvider はステータス別の予約集計を取得するインターフェース
type StatsProvider interface {
	BookingStats(ctx context.Context, eventID string) ([]booking.StatusStat, error)
}

// BookingStatsCollector は予約集計を定期的にメトリクスへ反映するワーカー
type BookingStatsCollector struct {
	bookingService StatsProvider
	metrics        *metrics.Metrics
	interval       time.Duration
	stopCh         chan struct{}
	doneCh         chan struct{}
}

// NewBookingStatsCollector は新しいコレクターを作成
func NewBookingStatsCollector(bs StatsProvider, m *metrics.Metrics, interval time.Duration) *BookingStatsCollector {
	return &BookingStatsCollector{
		bookingService: bs,
		metrics:        m,
		interval:       interval,
		stopCh:         make(chan struct{}),
		doneCh:         make(chan struct{}),
	}
}

// Start はコレクターを開始
func (c *BookingStatsCollector) Start(ctx context.Context) {
	logger.Info("予約集計コレクター開始", zap.Duration("interval", c.interval))

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	defer close(c.doneCh)

	for {
		select {
		case <-ctx.Done():
			logger.Info("予約集計コレクター停止（コンテキストキャンセル）")
			return
		case <-c.stopCh:
			logger.Info("予約集計コレクター停止（シグナル受信）")
			return
		case <-ticker.C:
			c.collect(ctx)
		}
	}
}

// Stop はコレクターを停止
func (c *BookingStatsCollector) Stop() {
	close(c.stopCh)
	<-c.doneCh
}

// collect は全イベントの集計を取得してゲージを更新する
func (c *BookingStatsCollector) collect(ctx context.Context) {
	log := logger.Get()
	log.Debug("予約集計の収集開始")

	stats, err := c.bookingService.BookingStats(ctx, "")
	if err != nil {
		log.Error("予約集計の収集失敗", zap.Error(err))
		return
	}

	// 集計に現れないステータスは0にリセットする
	counts := map[booking.Status]int{
		booking.StatusPending:   0,
		booking.StatusConfirmed: 0,
		booking.StatusCancelled: 0,
	}
	for _, s := range stats {
		counts[s.Status] = s.Count
	}
	for status, count := range counts {
		c.metrics.BookingsByStatus.WithLabelValues(string(status)).Set(float64(count))
	}

	log.Debug("予約集計を更新", zap.Int("statuses", len(stats)))
}

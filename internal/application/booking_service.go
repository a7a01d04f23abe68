package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-event-booking/internal/config"
	"github.com/sanosuguru/go-event-booking/internal/domain/booking"
	"github.com/sanosuguru/go-event-booking/internal/domain/event"
	"github.com/sanosuguru/go-event-booking/internal/domain/transaction"
	redisinfra "github.com/sanosuguru/go-event-booking/internal/infrastructure/redis"
	"github.com/sanosuguru/go-event-booking/internal/pkg/logger"
	"github.com/sanosuguru/go-event-booking/internal/pkg/metrics"
)

// BookingPublisher は予約ライフサイクルのメッセージ発行のインターフェース
type BookingPublisher interface {
	PublishBookingConfirmed(ctx context.Context, b *booking.Booking)
	PublishBookingCancelled(ctx context.Context, b *booking.Booking)
}

// BookingService は予約の作成・キャンセルをアトミックに調整する
// 自身は永続状態を持たず、イベントと予約の2ストアに跨る単一のトランザクションを管理する
type BookingService struct {
	txm         transaction.Manager
	bookingRepo booking.Repository
	eventRepo   event.Repository
	cache       *redisinfra.AvailabilityCache
	publisher   BookingPublisher
	cfg         config.BookingConfig
}

func NewBookingService(
	txm transaction.Manager,
	br booking.Repository,
	er event.Repository,
	cache *redisinfra.AvailabilityCache,
	publisher BookingPublisher,
	cfg config.BookingConfig,
) *BookingService {
	return &BookingService{
		txm:         txm,
		bookingRepo: br,
		eventRepo:   er,
		cache:       cache,
		publisher:   publisher,
		cfg:         cfg,
	}
}

type CreateBookingInput struct {
	UserID         string
	EventID        string
	Seats          int
	IdempotencyKey string
}

// CreateBooking は座席を確保して予約を作成する
//
// 空席チェックと減算は1文の条件付きUPDATEとして適用されるため、
// 同一イベントへの並行リクエストがあっても売り越しは発生しない。
// 減算と予約行のINSERTは同一トランザクションでコミットされ、
// 途中で失敗した場合はどちらの書き込みも残らない。
func (s *BookingService) CreateBooking(ctx context.Context, input CreateBookingInput) (*booking.Booking, error) {
	if input.Seats < 1 {
		s.recordBooking("invalid")
		return nil, booking.ErrInvalidSeatCount
	}
	if input.Seats > s.cfg.MaxSeatsPerBooking {
		s.recordBooking("invalid")
		return nil, booking.ErrTooManySeats
	}

	// 冪等性チェック: 同じキーのリクエストには元の予約を返す
	if input.IdempotencyKey != "" {
		existing, err := s.bookingRepo.GetByIdempotencyKey(ctx, input.IdempotencyKey)
		if err == nil {
			return existing, nil
		}
		if !errors.Is(err, booking.ErrBookingNotFound) {
			return nil, fmt.Errorf("冪等性チェックに失敗: %w", err)
		}
	}

	ev, err := s.eventRepo.GetByID(ctx, input.EventID)
	if err != nil {
		s.recordBooking(resultOf(err))
		return nil, err
	}
	if !ev.IsBookable(time.Now()) {
		s.recordBooking("invalid")
		return nil, event.ErrEventAlreadyStarted
	}

	// 合計金額はこの時点のイベント価格で確定し、以後再計算しない
	b := booking.NewBooking(input.UserID, input.EventID, input.IdempotencyKey, input.Seats, ev.Price)
	if err := b.Validate(); err != nil {
		s.recordBooking("invalid")
		return nil, err
	}

	txCtx, cancel := context.WithTimeout(ctx, s.cfg.TxTimeout)
	defer cancel()

	start := time.Now()
	tx, err := s.txm.Begin(txCtx)
	if err != nil {
		s.recordBooking(resultOf(err))
		return nil, fmt.Errorf("トランザクション開始に失敗: %w", err)
	}
	defer tx.Rollback()

	// 重複予約の事前チェック（部分一意インデックスが競合時の最終防衛線）
	dup, err := s.bookingRepo.HasConfirmed(txCtx, tx, input.UserID, input.EventID)
	if err != nil {
		s.recordBooking(resultOf(err))
		return nil, err
	}
	if dup {
		s.recordBooking("conflict")
		return nil, booking.ErrDuplicateBooking
	}

	// 条件付き減算が成功した場合のみ予約行を作成する
	if err := s.eventRepo.DecrementAvailableSeats(txCtx, tx, ev.ID, input.Seats); err != nil {
		s.recordBooking(resultOf(err))
		return nil, err
	}
	if err := s.bookingRepo.Create(txCtx, tx, b); err != nil {
		if errors.Is(err, booking.ErrIdempotencyKeyReused) {
			// 同じキーのリクエストが競合した: ロールバック後に元の予約を返す
			_ = tx.Rollback()
			return s.bookingRepo.GetByIdempotencyKey(ctx, input.IdempotencyKey)
		}
		s.recordBooking(resultOf(err))
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		s.recordBooking(resultOf(err))
		return nil, fmt.Errorf("コミットに失敗: %w", err)
	}
	s.observeTx("create", time.Since(start))

	s.afterWrite(ctx, b, true)
	s.recordBooking("success")
	return b, nil
}

// CancelBooking は予約をキャンセルし、確保していた座席を返却する
//
// 予約行の行ロックにより同一予約への二重キャンセルは直列化され、
// status = 'confirmed' を条件とする更新で遷移は高々1回に制限される。
// 返却される座席数は予約に保存された値のみを使う。
func (s *BookingService) CancelBooking(ctx context.Context, userID, bookingID string) (*booking.Booking, error) {
	txCtx, cancel := context.WithTimeout(ctx, s.cfg.TxTimeout)
	defer cancel()

	start := time.Now()
	tx, err := s.txm.Begin(txCtx)
	if err != nil {
		s.recordCancel(resultOf(err))
		return nil, fmt.Errorf("トランザクション開始に失敗: %w", err)
	}
	defer tx.Rollback()

	b, err := s.bookingRepo.GetByIDForUpdate(txCtx, tx, bookingID)
	if err != nil {
		s.recordCancel(resultOf(err))
		return nil, err
	}
	// 他人の予約は存在しないものとして扱う
	if b.UserID != userID {
		s.recordCancel("invalid")
		return nil, booking.ErrBookingNotFound
	}
	if !b.IsConfirmed() {
		s.recordCancel("invalid")
		if b.Status == booking.StatusCancelled {
			return nil, booking.ErrAlreadyCancelled
		}
		return nil, booking.ErrNotConfirmed
	}

	ev, err := s.eventRepo.GetByID(ctx, b.EventID)
	if err != nil {
		s.recordCancel(resultOf(err))
		return nil, err
	}
	if !b.CanCancelAt(ev.StartAt, time.Now(), s.cfg.CancelCutoff) {
		s.recordCancel("cutoff")
		return nil, booking.ErrCancelCutoff
	}

	if err := b.Cancel(); err != nil {
		s.recordCancel("invalid")
		return nil, err
	}
	if err := s.bookingRepo.MarkCancelled(txCtx, tx, b); err != nil {
		s.recordCancel(resultOf(err))
		return nil, err
	}
	if err := s.eventRepo.IncrementAvailableSeats(txCtx, tx, b.EventID, b.SeatsBooked); err != nil {
		s.recordCancel(resultOf(err))
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		s.recordCancel(resultOf(err))
		return nil, fmt.Errorf("コミットに失敗: %w", err)
	}
	s.observeTx("cancel", time.Since(start))

	s.afterWrite(ctx, b, false)
	s.recordCancel("success")
	return b, nil
}

func (s *BookingService) GetBooking(ctx context.Context, id string) (*booking.Booking, error) {
	return s.bookingRepo.GetByID(ctx, id)
}

// ListBookings は検索条件に一致する予約一覧と総件数を返す
// filter.UserID が空の場合は全ユーザーが対象（管理者用）
func (s *BookingService) ListBookings(ctx context.Context, filter booking.ListFilter) ([]*booking.Booking, int, error) {
	if filter.Limit <= 0 {
		filter.Limit = 20
	}
	if filter.Limit > 100 {
		filter.Limit = 100
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return s.bookingRepo.List(ctx, filter)
}

// BookingStats はステータスごとの予約集計を返す
// eventID が空の場合は全イベントが対象
func (s *BookingService) BookingStats(ctx context.Context, eventID string) ([]booking.StatusStat, error) {
	return s.bookingRepo.Stats(ctx, eventID)
}

// afterWrite はコミット後のキャッシュ無効化とメッセージ発行を行う
// どちらも失敗しても予約処理の結果には影響しない
func (s *BookingService) afterWrite(ctx context.Context, b *booking.Booking, created bool) {
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, b.EventID); err != nil {
			logger.Warn("キャッシュ無効化エラー", zap.Error(err))
		}
	}
	if s.publisher != nil {
		if created {
			s.publisher.PublishBookingConfirmed(ctx, b)
		} else {
			s.publisher.PublishBookingCancelled(ctx, b)
		}
	}
}

func (s *BookingService) recordBooking(result string) {
	if m := metrics.Get(); m != nil {
		m.BookingsTotal.WithLabelValues(result).Inc()
	}
}

func (s *BookingService) recordCancel(result string) {
	if m := metrics.Get(); m != nil {
		m.CancellationsTotal.WithLabelValues(result).Inc()
	}
}

func (s *BookingService) observeTx(operation string, d time.Duration) {
	if m := metrics.Get(); m != nil {
		m.BookingTxDuration.WithLabelValues(operation).Observe(d.Seconds())
	}
}

// resultOf はエラーをメトリクスの result ラベルに分類する
func resultOf(err error) string {
	var insufficient *event.InsufficientSeatsError
	switch {
	case errors.As(err, &insufficient):
		return "sold_out"
	case errors.Is(err, booking.ErrDuplicateBooking):
		return "conflict"
	case errors.Is(err, event.ErrEventNotFound), errors.Is(err, booking.ErrBookingNotFound):
		return "invalid"
	case errors.Is(err, transaction.ErrContention):
		return "contention"
	default:
		return "error"
	}
}

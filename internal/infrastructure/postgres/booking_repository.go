package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sanosuguru/go-event-booking/internal/domain/booking"
	"github.com/sanosuguru/go-event-booking/internal/domain/transaction"
)

type bookingRow struct {
	ID             string     `db:"id"`
	UserID         string     `db:"user_id"`
	EventID        string     `db:"event_id"`
	SeatsBooked    int        `db:"seats_booked"`
	TotalAmount    int        `db:"total_amount"`
	Status         string     `db:"status"`
	IdempotencyKey *string    `db:"idempotency_key"`
	BookedAt       time.Time  `db:"booked_at"`
	CancelledAt    *time.Time `db:"cancelled_at"`
	CreatedAt      time.Time  `db:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at"`
}

func (r *bookingRow) toEntity() *booking.Booking {
	var key string
	if r.IdempotencyKey != nil {
		key = *r.IdempotencyKey
	}
	return &booking.Booking{
		ID:             r.ID,
		UserID:         r.UserID,
		EventID:        r.EventID,
		SeatsBooked:    r.SeatsBooked,
		TotalAmount:    r.TotalAmount,
		Status:         booking.Status(r.Status),
		IdempotencyKey: key,
		BookedAt:       r.BookedAt,
		CancelledAt:    r.CancelledAt,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

const bookingColumns = `id, user_id, event_id, seats_booked, total_amount, status, idempotency_key, booked_at, cancelled_at, created_at, updated_at`

// 一意制約の名前（マイグレーションと揃えること）
const (
	constraintActiveBooking  = "idx_bookings_active_user_event"
	constraintIdempotencyKey = "idx_bookings_idempotency_key"
)

// BookingRepository は予約リポジトリのPostgreSQL実装
type BookingRepository struct {
	db *sqlx.DB
}

// NewBookingRepository はBookingRepositoryを作成する
func NewBookingRepository(db *sqlx.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

// Create は新しい予約を作成する
// (user_id, event_id) の部分一意インデックスが重複予約の最終的な防波堤になる
func (r *BookingRepository) Create(ctx context.Context, tx transaction.Tx, b *booking.Booking) error {
	sqlxTx := UnwrapTx(tx)
	if sqlxTx == nil {
		return errors.New("トランザクションが必要です")
	}

	query := `
		INSERT INTO bookings (user_id, event_id, seats_booked, total_amount, status, idempotency_key, booked_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`
	var key *string
	if b.IdempotencyKey != "" {
		key = &b.IdempotencyKey
	}

	err := sqlxTx.QueryRowContext(ctx, query,
		b.UserID, b.EventID, b.SeatsBooked, b.TotalAmount, string(b.Status), key,
		b.BookedAt, b.CreatedAt, b.UpdatedAt,
	).Scan(&b.ID)
	if err != nil {
		if isUniqueViolation(err, constraintActiveBooking) {
			return booking.ErrDuplicateBooking
		}
		if isUniqueViolation(err, constraintIdempotencyKey) {
			return booking.ErrIdempotencyKeyReused
		}
		return classifyError(fmt.Errorf("予約作成に失敗しました: %w", err))
	}
	return nil
}

// GetByID はIDから予約を取得する
func (r *BookingRepository) GetByID(ctx context.Context, id string) (*booking.Booking, error) {
	var row bookingRow
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, booking.ErrBookingNotFound
		}
		return nil, fmt.Errorf("予約取得に失敗しました: %w", err)
	}
	return row.toEntity(), nil
}

// GetByIDForUpdate はIDから予約を行ロック付きで取得する
// キャンセルの二重実行をトランザクション境界で直列化するために使う
func (r *BookingRepository) GetByIDForUpdate(ctx context.Context, tx transaction.Tx, id string) (*booking.Booking, error) {
	sqlxTx := UnwrapTx(tx)
	if sqlxTx == nil {
		return nil, errors.New("トランザクションが必要です")
	}

	var row bookingRow
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1 FOR UPDATE`
	if err := sqlxTx.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, booking.ErrBookingNotFound
		}
		return nil, classifyError(fmt.Errorf("予約取得に失敗しました: %w", err))
	}
	return row.toEntity(), nil
}

// GetByIdempotencyKey は冪等性キーから予約を取得する
func (r *BookingRepository) GetByIdempotencyKey(ctx context.Context, key string) (*booking.Booking, error) {
	var row bookingRow
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE idempotency_key = $1`
	if err := r.db.GetContext(ctx, &row, query, key); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, booking.ErrBookingNotFound
		}
		return nil, fmt.Errorf("予約取得に失敗しました: %w", err)
	}
	return row.toEntity(), nil
}

// HasConfirmed は (user, event) の確定済み予約が存在するかを返す
func (r *BookingRepository) HasConfirmed(ctx context.Context, tx transaction.Tx, userID, eventID string) (bool, error) {
	sqlxTx := UnwrapTx(tx)
	if sqlxTx == nil {
		return false, errors.New("トランザクションが必要です")
	}

	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM bookings WHERE user_id = $1 AND event_id = $2 AND status = 'confirmed')`
	if err := sqlxTx.GetContext(ctx, &exists, query, userID, eventID); err != nil {
		return false, classifyError(fmt.Errorf("重複予約チェックに失敗しました: %w", err))
	}
	return exists, nil
}

// MarkCancelled は確定済みの予約をキャンセル状態に更新する
// WHERE status = 'confirmed' により遷移は高々1回しか適用されない
func (r *BookingRepository) MarkCancelled(ctx context.Context, tx transaction.Tx, b *booking.Booking) error {
	sqlxTx := UnwrapTx(tx)
	if sqlxTx == nil {
		return errors.New("トランザクションが必要です")
	}

	query := `
		UPDATE bookings
		SET status = 'cancelled', cancelled_at = $1, updated_at = $2
		WHERE id = $3 AND status = 'confirmed'
	`
	result, err := sqlxTx.ExecContext(ctx, query, b.CancelledAt, b.UpdatedAt, b.ID)
	if err != nil {
		return classifyError(fmt.Errorf("予約キャンセルに失敗しました: %w", err))
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("更新結果の確認に失敗しました: %w", err)
	}
	if rowsAffected == 0 {
		return booking.ErrAlreadyCancelled
	}
	return nil
}

// List は検索条件に一致する予約一覧と総件数を取得する
func (r *BookingRepository) List(ctx context.Context, filter booking.ListFilter) ([]*booking.Booking, int, error) {
	where := ` WHERE 1=1`
	args := []interface{}{}
	n := 0
	next := func(v interface{}) string {
		n++
		args = append(args, v)
		return fmt.Sprintf("$%d", n)
	}

	if filter.UserID != "" {
		where += ` AND user_id = ` + next(filter.UserID)
	}
	if filter.EventID != "" {
		where += ` AND event_id = ` + next(filter.EventID)
	}
	if filter.Status != "" {
		where += ` AND status = ` + next(string(filter.Status))
	}

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM bookings`+where, args...); err != nil {
		return nil, 0, fmt.Errorf("予約件数取得に失敗しました: %w", err)
	}

	query := `SELECT ` + bookingColumns + ` FROM bookings` + where +
		` ORDER BY created_at DESC LIMIT ` + next(filter.Limit) + ` OFFSET ` + next(filter.Offset)

	var rows []bookingRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("予約一覧取得に失敗しました: %w", err)
	}

	bookings := make([]*booking.Booking, len(rows))
	for i, row := range rows {
		bookings[i] = row.toEntity()
	}
	return bookings, total, nil
}

// Stats はステータスごとの件数・座席数・売上を集計する
func (r *BookingRepository) Stats(ctx context.Context, eventID string) ([]booking.StatusStat, error) {
	query := `
		SELECT status, COUNT(*) AS count,
		       COALESCE(SUM(seats_booked), 0) AS total_seats,
		       COALESCE(SUM(total_amount), 0) AS total_revenue
		FROM bookings
	`
	args := []interface{}{}
	if eventID != "" {
		query += ` WHERE event_id = $1`
		args = append(args, eventID)
	}
	query += ` GROUP BY status ORDER BY status`

	var rows []struct {
		Status       string `db:"status"`
		Count        int    `db:"count"`
		TotalSeats   int    `db:"total_seats"`
		TotalRevenue int    `db:"total_revenue"`
	}
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("予約集計に失敗しました: %w", err)
	}

	stats := make([]booking.StatusStat, len(rows))
	for i, row := range rows {
		stats[i] = booking.StatusStat{
			Status:       booking.Status(row.Status),
			Count:        row.Count,
			TotalSeats:   row.TotalSeats,
			TotalRevenue: row.TotalRevenue,
		}
	}
	return stats, nil
}

var _ booking.Repository = (*BookingRepository)(nil)

package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sanosuguru/go-event-booking/internal/domain/event"
	"github.com/sanosuguru/go-event-booking/internal/domain/transaction"
)

// eventRow はDBの行を表す構造体
type eventRow struct {
	ID             string    `db:"id"`
	Title          string    `db:"title"`
	Description    *string   `db:"description"`
	Category       *string   `db:"category"`
	Location       *string   `db:"location"`
	Venue          *string   `db:"venue"`
	StartAt        time.Time `db:"start_at"`
	Price          int       `db:"price"`
	TotalSeats     int       `db:"total_seats"`
	AvailableSeats int       `db:"available_seats"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
	Version        int       `db:"version"`
}

// toEntity はeventRowをEventエンティティに変換する
func (r *eventRow) toEntity() *event.Event {
	deref := func(s *string) string {
		if s == nil {
			return ""
		}
		return *s
	}
	return &event.Event{
		ID:             r.ID,
		Title:          r.Title,
		Description:    deref(r.Description),
		Category:       deref(r.Category),
		Location:       deref(r.Location),
		Venue:          deref(r.Venue),
		StartAt:        r.StartAt,
		Price:          r.Price,
		TotalSeats:     r.TotalSeats,
		AvailableSeats: r.AvailableSeats,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
		Version:        r.Version,
	}
}

const eventColumns = `id, title, description, category, location, venue, start_at, price, total_seats, available_seats, created_at, updated_at, version`

// EventRepository はイベントリポジトリのPostgreSQL実装
type EventRepository struct {
	db *sqlx.DB
}

// NewEventRepository はEventRepositoryを作成する
func NewEventRepository(db *sqlx.DB) *EventRepository {
	return &EventRepository{db: db}
}

// Create は新しいイベントを作成する
func (r *EventRepository) Create(ctx context.Context, e *event.Event) error {
	query := `
		INSERT INTO events (title, description, category, location, venue, start_at, price, total_seats, available_seats, created_at, updated_at, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id
	`
	toPtr := func(s string) *string {
		if s == "" {
			return nil
		}
		return &s
	}

	err := r.db.QueryRowContext(ctx, query,
		e.Title, toPtr(e.Description), toPtr(e.Category), toPtr(e.Location), toPtr(e.Venue),
		e.StartAt, e.Price, e.TotalSeats, e.AvailableSeats, e.CreatedAt, e.UpdatedAt, e.Version,
	).Scan(&e.ID)
	if err != nil {
		return fmt.Errorf("イベント作成に失敗しました: %w", err)
	}
	return nil
}

// GetByID はIDからイベントを取得する
func (r *EventRepository) GetByID(ctx context.Context, id string) (*event.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = $1`

	var row eventRow
	err := r.db.GetContext(ctx, &row, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, event.ErrEventNotFound
		}
		return nil, fmt.Errorf("イベント取得に失敗しました: %w", err)
	}
	return row.toEntity(), nil
}

// List は検索条件に一致するイベント一覧と総件数を取得する
func (r *EventRepository) List(ctx context.Context, filter event.ListFilter) ([]*event.Event, int, error) {
	where := ` WHERE 1=1`
	args := []interface{}{}
	n := 0
	next := func(v interface{}) string {
		n++
		args = append(args, v)
		return fmt.Sprintf("$%d", n)
	}

	if filter.Category != "" {
		where += ` AND category = ` + next(filter.Category)
	}
	if filter.Location != "" {
		where += ` AND location = ` + next(filter.Location)
	}
	if filter.UpcomingOnly {
		where += ` AND start_at > NOW()`
	}

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM events`+where, args...); err != nil {
		return nil, 0, fmt.Errorf("イベント件数取得に失敗しました: %w", err)
	}

	query := `SELECT ` + eventColumns + ` FROM events` + where +
		` ORDER BY start_at ASC LIMIT ` + next(filter.Limit) + ` OFFSET ` + next(filter.Offset)

	var rows []eventRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("イベント一覧取得に失敗しました: %w", err)
	}

	events := make([]*event.Event, len(rows))
	for i, row := range rows {
		events[i] = row.toEntity()
	}
	return events, total, nil
}

// Update はイベントのメタデータを更新する（楽観的ロック）
// 座席カウンタ（available_seats / total_seats）はこのクエリでは変更しない
func (r *EventRepository) Update(ctx context.Context, e *event.Event) error {
	query := `
		UPDATE events
		SET title = $1, description = $2, category = $3, location = $4, venue = $5,
		    start_at = $6, price = $7, updated_at = $8, version = version + 1
		WHERE id = $9 AND version = $10
	`
	toPtr := func(s string) *string {
		if s == "" {
			return nil
		}
		return &s
	}

	result, err := r.db.ExecContext(ctx, query,
		e.Title, toPtr(e.Description), toPtr(e.Category), toPtr(e.Location), toPtr(e.Venue),
		e.StartAt, e.Price, time.Now(), e.ID, e.Version,
	)
	if err != nil {
		return fmt.Errorf("イベント更新に失敗しました: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("更新結果の確認に失敗しました: %w", err)
	}
	if rowsAffected == 0 {
		// 行が存在しないのか、バージョン競合なのかを区別する
		if _, getErr := r.GetByID(ctx, e.ID); getErr != nil {
			return getErr
		}
		return event.ErrVersionConflict
	}

	e.Version++
	return nil
}

// Delete はイベントを削除する
// 確定済みの予約が参照している間は削除しない
func (r *EventRepository) Delete(ctx context.Context, id string) error {
	query := `
		DELETE FROM events
		WHERE id = $1
		  AND NOT EXISTS (SELECT 1 FROM bookings WHERE event_id = $1 AND status = 'confirmed')
	`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("イベント削除に失敗しました: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("削除結果の確認に失敗しました: %w", err)
	}
	if rowsAffected == 0 {
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return getErr
		}
		return event.ErrEventHasBookings
	}
	return nil
}

// DecrementAvailableSeats は空席数を条件付きで減算する
// チェックと減算を1文で行うため、並行実行下でも売り越しは発生しない
func (r *EventRepository) DecrementAvailableSeats(ctx context.Context, tx transaction.Tx, id string, seats int) error {
	sqlxTx := UnwrapTx(tx)
	if sqlxTx == nil {
		return errors.New("トランザクションが必要です")
	}

	query := `
		UPDATE events
		SET available_seats = available_seats - $1, updated_at = NOW()
		WHERE id = $2 AND available_seats >= $1
	`
	result, err := sqlxTx.ExecContext(ctx, query, seats, id)
	if err != nil {
		return classifyError(fmt.Errorf("座席の減算に失敗しました: %w", err))
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("減算結果の確認に失敗しました: %w", err)
	}
	if rowsAffected == 0 {
		// 行が無いのか座席不足なのかを同一トランザクション内の読み取りで区別する
		var remaining int
		err := sqlxTx.GetContext(ctx, &remaining, `SELECT available_seats FROM events WHERE id = $1`, id)
		if errors.Is(err, sql.ErrNoRows) {
			return event.ErrEventNotFound
		}
		if err != nil {
			return classifyError(fmt.Errorf("残席数の取得に失敗しました: %w", err))
		}
		return &event.InsufficientSeatsError{EventID: id, Requested: seats, Remaining: remaining}
	}
	return nil
}

// IncrementAvailableSeats は空席数を加算する
func (r *EventRepository) IncrementAvailableSeats(ctx context.Context, tx transaction.Tx, id string, seats int) error {
	sqlxTx := UnwrapTx(tx)
	if sqlxTx == nil {
		return errors.New("トランザクションが必要です")
	}

	query := `
		UPDATE events
		SET available_seats = available_seats + $1, updated_at = NOW()
		WHERE id = $2
	`
	result, err := sqlxTx.ExecContext(ctx, query, seats, id)
	if err != nil {
		return classifyError(fmt.Errorf("座席の加算に失敗しました: %w", err))
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("加算結果の確認に失敗しました: %w", err)
	}
	if rowsAffected == 0 {
		return event.ErrEventNotFound
	}
	return nil
}

// CountAvailableSeats は空席数を取得する
func (r *EventRepository) CountAvailableSeats(ctx context.Context, id string) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `SELECT available_seats FROM events WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, event.ErrEventNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("空席数取得に失敗しました: %w", err)
	}
	return count, nil
}

// インターフェースを満たしているか確認
var _ event.Repository = (*EventRepository)(nil)

package booking

import (
	"context"

	"github.com/sanosuguru/go-event-booking/internal/domain/transaction"
)

// ListFilter は予約一覧の検索条件
// UserID が空の場合は全ユーザーの予約が対象（管理者用）
type ListFilter struct {
	UserID  string
	EventID string
	Status  Status
	Limit   int
	Offset  int
}

// StatusStat はステータスごとの予約集計を表す
// キャンセル済みの予約は confirmed の集計に合算されない
type StatusStat struct {
	Status       Status
	Count        int
	TotalSeats   int
	TotalRevenue int
}

// Repository は予約リポジトリのインターフェース
type Repository interface {
	// Create は新しい予約を作成する（トランザクション必須）
	// (user_id, event_id) の確定済み予約が既に存在する場合は ErrDuplicateBooking を返す
	Create(ctx context.Context, tx transaction.Tx, booking *Booking) error

	// GetByID はIDから予約を取得する
	GetByID(ctx context.Context, id string) (*Booking, error)

	// GetByIDForUpdate はIDから予約を行ロック付きで取得する（トランザクション必須）
	GetByIDForUpdate(ctx context.Context, tx transaction.Tx, id string) (*Booking, error)

	// GetByIdempotencyKey は冪等性キーから予約を取得する
	GetByIdempotencyKey(ctx context.Context, key string) (*Booking, error)

	// HasConfirmed は (user, event) の確定済み予約が存在するかを返す（トランザクション必須）
	HasConfirmed(ctx context.Context, tx transaction.Tx, userID, eventID string) (bool, error)

	// MarkCancelled は確定済みの予約をキャンセル状態に更新する（トランザクション必須）
	// 既にキャンセル済みの場合は ErrAlreadyCancelled を返す
	MarkCancelled(ctx context.Context, tx transaction.Tx, booking *Booking) error

	// List は検索条件に一致する予約一覧と総件数を取得する
	List(ctx context.Context, filter ListFilter) ([]*Booking, int, error)

	// Stats はステータスごとの件数・座席数・売上を集計する
	// eventID が空の場合は全イベントが対象
	Stats(ctx context.Context, eventID string) ([]StatusStat, error)
}

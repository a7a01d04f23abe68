package event

import (
	"context"

	"github.com/sanosuguru/go-event-booking/internal/domain/transaction"
)

// ListFilter はイベント一覧の検索条件
type ListFilter struct {
	Category     string
	Location     string
	UpcomingOnly bool
	Limit        int
	Offset       int
}

// Repository はイベントリポジトリのインターフェース
type Repository interface {
	// Create は新しいイベントを作成する
	Create(ctx context.Context, event *Event) error

	// GetByID はIDからイベントを取得する
	GetByID(ctx context.Context, id string) (*Event, error)

	// List は検索条件に一致するイベント一覧と総件数を取得する
	List(ctx context.Context, filter ListFilter) ([]*Event, int, error)

	// Update はイベントのメタデータを更新する（楽観的ロック）
	// 座席カウンタはこのメソッドでは変更されない
	Update(ctx context.Context, event *Event) error

	// Delete はイベントを削除する
	// 確定済みの予約が参照している間は ErrEventHasBookings を返す
	Delete(ctx context.Context, id string) error

	// DecrementAvailableSeats は空席数を条件付きで減算する（トランザクション必須）
	// available_seats >= seats の場合のみ1文で減算が適用される
	// 座席不足の場合は *InsufficientSeatsError を返す
	DecrementAvailableSeats(ctx context.Context, tx transaction.Tx, id string, seats int) error

	// IncrementAvailableSeats は空席数を加算する（トランザクション必須）
	IncrementAvailableSeats(ctx context.Context, tx transaction.Tx, id string, seats int) error

	// CountAvailableSeats は空席数を取得する
	CountAvailableSeats(ctx context.Context, id string) (int, error)
}

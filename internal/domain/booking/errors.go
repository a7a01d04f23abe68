package booking

import "errors"

// Booking ドメインのエラー定義
var (
	ErrBookingNotFound    = errors.New("予約が見つかりません")
	ErrDuplicateBooking   = errors.New("同じイベントに対する確定済みの予約が既に存在します")
	ErrAlreadyCancelled   = errors.New("予約は既にキャンセルされています")
	ErrNotConfirmed       = errors.New("確定済みの予約のみキャンセルできます")
	ErrCancelCutoff       = errors.New("イベント開始が近いためキャンセルできません")
	ErrInvalidSeatCount   = errors.New("座席数は1以上である必要があります")
	ErrTooManySeats       = errors.New("1回の予約で確保できる座席数の上限を超えています")
	ErrUserIDRequired     = errors.New("ユーザーIDは必須です")
	ErrEventIDRequired    = errors.New("イベントIDは必須です")
	ErrInvalidTotalAmount = errors.New("合計金額は0以上である必要があります")
	ErrInvalidStatus      = errors.New("不正な予約ステータスです")

	// ErrIdempotencyKeyReused は同じ冪等性キーの予約が並行して作成されたことを表す
	// 呼び出し元はキーで既存の予約を引き直して返すべき
	ErrIdempotencyKeyReused = errors.New("同じ冪等性キーの予約が既に存在します")
)

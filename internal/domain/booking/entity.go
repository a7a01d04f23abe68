package booking

import "time"

// Status は予約の状態を表す
type Status string

const (
	// StatusPending はスキーマ上は定義されているが、現在の予約フローでは
	// 生成されない（決済確認ステップ導入時のために予約されている）
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
)

// IsValid は既知のステータスかを返す
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCancelled:
		return true
	}
	return false
}

// Booking は予約エンティティを表す
type Booking struct {
	ID             string
	UserID         string
	EventID        string
	SeatsBooked    int
	TotalAmount    int
	Status         Status
	IdempotencyKey string
	BookedAt       time.Time
	CancelledAt    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewBooking は確定済みの新しい予約を作成する
// totalAmount は予約時点のイベント価格 × 座席数で、後から再計算されない
func NewBooking(userID, eventID, idempotencyKey string, seats, unitPrice int) *Booking {
	now := time.Now()
	return &Booking{
		UserID:         userID,
		EventID:        eventID,
		SeatsBooked:    seats,
		TotalAmount:    unitPrice * seats,
		Status:         StatusConfirmed,
		IdempotencyKey: idempotencyKey,
		BookedAt:       now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// IsConfirmed は予約が確定状態かを返す
func (b *Booking) IsConfirmed() bool {
	return b.Status == StatusConfirmed
}

// Cancel は予約をキャンセル状態に遷移させる
// 遷移は confirmed → cancelled の一方向のみ
func (b *Booking) Cancel() error {
	if b.Status == StatusCancelled {
		return ErrAlreadyCancelled
	}
	if b.Status != StatusConfirmed {
		return ErrNotConfirmed
	}
	now := time.Now()
	b.Status = StatusCancelled
	b.CancelledAt = &now
	b.UpdatedAt = now
	return nil
}

// CanCancelAt はキャンセル締切を満たしているかを返す
// イベント開始までの残り時間が cutoff 未満の場合はキャンセル不可
func (b *Booking) CanCancelAt(eventStart time.Time, now time.Time, cutoff time.Duration) bool {
	return eventStart.Sub(now) >= cutoff
}

// Validate は予約の検証を行う
func (b *Booking) Validate() error {
	if b.UserID == "" {
		return ErrUserIDRequired
	}
	if b.EventID == "" {
		return ErrEventIDRequired
	}
	if b.SeatsBooked < 1 {
		return ErrInvalidSeatCount
	}
	if b.TotalAmount < 0 {
		return ErrInvalidTotalAmount
	}
	if !b.Status.IsValid() {
		return ErrInvalidStatus
	}
	return nil
}

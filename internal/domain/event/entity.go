package event

import "time"

// Event はイベントエンティティを表す
type Event struct {
	ID             string
	Title          string
	Description    string
	Category       string
	Location       string
	Venue          string
	StartAt        time.Time
	Price          int
	TotalSeats     int
	AvailableSeats int
	CreatedAt      time.Time
	UpdatedAt      time.Time
	Version        int // 楽観的ロック用（管理者によるメタデータ更新のみ）
}

// NewEvent は新しいイベントを作成する
// 空席数は総座席数と同じ値で初期化される
func NewEvent(title, description, category, location, venue string, startAt time.Time, price, totalSeats int) *Event {
	now := time.Now()
	return &Event{
		Title:          title,
		Description:    description,
		Category:       category,
		Location:       location,
		Venue:          venue,
		StartAt:        startAt,
		Price:          price,
		TotalSeats:     totalSeats,
		AvailableSeats: totalSeats,
		CreatedAt:      now,
		UpdatedAt:      now,
		Version:        0,
	}
}

// Validate はイベントの検証を行う
func (e *Event) Validate() error {
	if e.Title == "" {
		return ErrEventTitleRequired
	}
	if e.TotalSeats <= 0 {
		return ErrInvalidTotalSeats
	}
	if e.AvailableSeats < 0 || e.AvailableSeats > e.TotalSeats {
		return ErrInvalidAvailableSeats
	}
	if e.Price < 0 {
		return ErrInvalidPrice
	}
	if e.StartAt.IsZero() {
		return ErrEventStartRequired
	}
	return nil
}

// HasStarted はイベントが開始済みかを返す
func (e *Event) HasStarted(now time.Time) bool {
	return !e.StartAt.After(now)
}

// IsBookable はイベントが予約可能か（未開始か）を返す
func (e *Event) IsBookable(now time.Time) bool {
	return !e.HasStarted(now)
}

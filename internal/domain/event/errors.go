package event

import (
	"errors"
	"fmt"
)

// Event ドメインのエラー定義
var (
	ErrEventNotFound         = errors.New("イベントが見つかりません")
	ErrEventTitleRequired    = errors.New("イベント名は必須です")
	ErrInvalidTotalSeats     = errors.New("総座席数は1以上である必要があります")
	ErrInvalidAvailableSeats = errors.New("空席数は0以上かつ総座席数以下である必要があります")
	ErrInvalidPrice          = errors.New("価格は0以上である必要があります")
	ErrEventStartRequired    = errors.New("開催日時は必須です")
	ErrEventAlreadyStarted   = errors.New("開始済みのイベントは予約できません")
	ErrEventHasBookings      = errors.New("確定済みの予約が存在するため削除できません")
	ErrVersionConflict       = errors.New("他の更新と競合しました")
)

// InsufficientSeatsError は座席数が不足していることを表す
// Remaining には実際の残席数が入る
type InsufficientSeatsError struct {
	EventID   string
	Requested int
	Remaining int
}

func (e *InsufficientSeatsError) Error() string {
	return fmt.Sprintf("座席数が不足しています（要求: %d, 残席: %d）", e.Requested, e.Remaining)
}

package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-event-booking/internal/api"
	"github.com/sanosuguru/go-event-booking/internal/domain/booking"
	"github.com/sanosuguru/go-event-booking/internal/domain/event"
	"github.com/sanosuguru/go-event-booking/internal/domain/transaction"
	"github.com/sanosuguru/go-event-booking/internal/domain/user"
)

// toHTTPError はドメインエラーをHTTPステータスと統一レスポンスに対応付ける
//
//	不正な入力             -> 400 invalid_request
//	対象が存在しない       -> 404 not_found
//	重複予約               -> 409 conflict
//	満席                   -> 409 insufficient_capacity (残席数つき)
//	状態遷移として不正     -> 422 invalid_state
//	競合による一時的な失敗 -> 503 contention (リトライ可能)
func toHTTPError(err error) error {
	var insufficient *event.InsufficientSeatsError
	if errors.As(err, &insufficient) {
		remaining := insufficient.Remaining
		return echo.NewHTTPError(http.StatusConflict, api.ErrorResponse{
			Kind:           "insufficient_capacity",
			Detail:         insufficient.Error(),
			RemainingSeats: &remaining,
		})
	}

	switch {
	case errors.Is(err, event.ErrEventNotFound),
		errors.Is(err, booking.ErrBookingNotFound),
		errors.Is(err, user.ErrUserNotFound):
		return echo.NewHTTPError(http.StatusNotFound, api.ErrorResponse{
			Kind: "not_found", Detail: err.Error(),
		})

	case errors.Is(err, booking.ErrDuplicateBooking),
		errors.Is(err, user.ErrEmailAlreadyExists),
		errors.Is(err, event.ErrVersionConflict),
		errors.Is(err, event.ErrEventHasBookings):
		return echo.NewHTTPError(http.StatusConflict, api.ErrorResponse{
			Kind: "conflict", Detail: err.Error(),
		})

	case errors.Is(err, booking.ErrAlreadyCancelled),
		errors.Is(err, booking.ErrNotConfirmed),
		errors.Is(err, booking.ErrCancelCutoff),
		errors.Is(err, event.ErrEventAlreadyStarted):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, api.ErrorResponse{
			Kind: "invalid_state", Detail: err.Error(),
		})

	case errors.Is(err, booking.ErrInvalidSeatCount),
		errors.Is(err, booking.ErrTooManySeats),
		errors.Is(err, event.ErrEventTitleRequired),
		errors.Is(err, event.ErrInvalidTotalSeats),
		errors.Is(err, event.ErrInvalidPrice),
		errors.Is(err, event.ErrEventStartRequired),
		errors.Is(err, user.ErrNameRequired),
		errors.Is(err, user.ErrEmailRequired),
		errors.Is(err, user.ErrPasswordRequired):
		return echo.NewHTTPError(http.StatusBadRequest, api.ErrorResponse{
			Kind: "invalid_request", Detail: err.Error(),
		})

	case errors.Is(err, user.ErrInvalidCredentials):
		return echo.NewHTTPError(http.StatusUnauthorized, api.ErrorResponse{
			Kind: "unauthorized", Detail: err.Error(),
		})

	case errors.Is(err, transaction.ErrContention):
		return echo.NewHTTPError(http.StatusServiceUnavailable, api.ErrorResponse{
			Kind: "contention", Detail: "混雑のため処理できませんでした。再試行してください",
		})

	default:
		// 原因はレスポンスに出さずログ側にだけ残す
		return echo.NewHTTPError(http.StatusInternalServerError, api.ErrorResponse{
			Kind: "internal", Detail: "内部サーバーエラー",
		}).SetInternal(err)
	}
}

package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-event-booking/internal/api/middleware"
	"github.com/sanosuguru/go-event-booking/internal/application"
	"github.com/sanosuguru/go-event-booking/internal/domain/booking"
)

type BookingHandler struct {
	service BookingServiceInterface
}

func NewBookingHandler(s BookingServiceInterface) *BookingHandler {
	return &BookingHandler{service: s}
}

type CreateBookingRequest struct {
	EventID        string `json:"event_id" validate:"required" example:"550e8400-e29b-41d4-a716-446655440000"`
	Seats          int    `json:"seats" validate:"required,gt=0" example:"2"`
	IdempotencyKey string `json:"idempotency_key" example:"order-2026-001"`
}

type BookingResponse struct {
	ID          string     `json:"id" example:"550e8400-e29b-41d4-a716-446655440000"`
	UserID      string     `json:"user_id"`
	EventID     string     `json:"event_id"`
	Seats       int        `json:"seats" example:"2"`
	TotalAmount int        `json:"total_amount" example:"24000"`
	Status      string     `json:"status" example:"confirmed"`
	BookedAt    time.Time  `json:"booked_at"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

type BookingListResponse struct {
	Bookings []BookingResponse `json:"bookings"`
	Page     int               `json:"page" example:"1"`
	Limit    int               `json:"limit" example:"20"`
	Total    int               `json:"total" example:"42"`
	Pages    int               `json:"pages" example:"3"`
}

// pageParams はpage/limitクエリを正規化してオフセットに変換する
func pageParams(c echo.Context) (page, limit, offset int) {
	page, _ = strconv.Atoi(c.QueryParam("page"))
	limit, _ = strconv.Atoi(c.QueryParam("limit"))
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	return page, limit, (page - 1) * limit
}

func toBookingListResponse(bookings []*booking.Booking, page, limit, total int) BookingListResponse {
	resp := BookingListResponse{
		Bookings: make([]BookingResponse, len(bookings)),
		Page:     page,
		Limit:    limit,
		Total:    total,
		Pages:    (total + limit - 1) / limit,
	}
	for i, b := range bookings {
		resp.Bookings[i] = toBookingResponse(b)
	}
	return resp
}

func toBookingResponse(b *booking.Booking) BookingResponse {
	return BookingResponse{
		ID:          b.ID,
		UserID:      b.UserID,
		EventID:     b.EventID,
		Seats:       b.SeatsBooked,
		TotalAmount: b.TotalAmount,
		Status:      string(b.Status),
		BookedAt:    b.BookedAt,
		CancelledAt: b.CancelledAt,
		CreatedAt:   b.CreatedAt,
	}
}

// currentUserID は認証ミドルウェアが格納したユーザーIDを取り出す
func currentUserID(c echo.Context) (string, error) {
	id, ok := c.Get(middleware.ContextUserID).(string)
	if !ok || id == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "認証が必要です")
	}
	return id, nil
}

// Create は座席を確保して予約を作成する
func (h *BookingHandler) Create(c echo.Context) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}

	var req CreateBookingRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "リクエストの形式が不正です")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	b, err := h.service.CreateBooking(c.Request().Context(), application.CreateBookingInput{
		UserID:         userID,
		EventID:        req.EventID,
		Seats:          req.Seats,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusCreated, toBookingResponse(b))
}

// GetByID は予約を取得する
// 本人の予約か管理者のみ参照できる
func (h *BookingHandler) GetByID(c echo.Context) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}

	b, err := h.service.GetBooking(c.Request().Context(), c.Param("id"))
	if err != nil {
		return toHTTPError(err)
	}
	if b.UserID != userID && !middleware.IsAdmin(c) {
		// 他人の予約は存在の有無を明かさない
		return toHTTPError(booking.ErrBookingNotFound)
	}
	return c.JSON(http.StatusOK, toBookingResponse(b))
}

// ListMine はログインユーザーの予約一覧を取得する
func (h *BookingHandler) ListMine(c echo.Context) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}

	page, limit, offset := pageParams(c)

	bookings, total, err := h.service.ListBookings(c.Request().Context(), booking.ListFilter{
		UserID: userID,
		Status: booking.Status(c.QueryParam("status")),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, toBookingListResponse(bookings, page, limit, total))
}

// Cancel は予約をキャンセルし座席を返却する
// イベント開始24時間前を過ぎるとキャンセルできない
func (h *BookingHandler) Cancel(c echo.Context) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}

	b, err := h.service.CancelBooking(c.Request().Context(), userID, c.Param("id"))
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, toBookingResponse(b))
}

// ListAll は全ユーザーの予約一覧を取得する（管理者のみ）
func (h *BookingHandler) ListAll(c echo.Context) error {
	page, limit, offset := pageParams(c)

	bookings, total, err := h.service.ListBookings(c.Request().Context(), booking.ListFilter{
		EventID: c.QueryParam("event_id"),
		Status:  booking.Status(c.QueryParam("status")),
		Limit:   limit,
		Offset:  offset,
	})
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, toBookingListResponse(bookings, page, limit, total))
}

type BookingStatResponse struct {
	Status       string `json:"status" example:"confirmed"`
	Count        int    `json:"count" example:"120"`
	TotalSeats   int    `json:"total_seats" example:"245"`
	TotalRevenue int    `json:"total_revenue" example:"2940000"`
}

// Stats はステータス別の予約集計を取得する（管理者のみ）
func (h *BookingHandler) Stats(c echo.Context) error {
	stats, err := h.service.BookingStats(c.Request().Context(), c.QueryParam("event_id"))
	if err != nil {
		return toHTTPError(err)
	}

	resp := make([]BookingStatResponse, len(stats))
	for i, s := range stats {
		resp[i] = BookingStatResponse{
			Status:       string(s.Status),
			Count:        s.Count,
			TotalSeats:   s.TotalSeats,
			TotalRevenue: s.TotalRevenue,
		}
	}
	return c.JSON(http.StatusOK, resp)
}

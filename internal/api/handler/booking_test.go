package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sanosuguru/go-event-booking/internal/api"
	"github.com/sanosuguru/go-event-booking/internal/api/middleware"
	"github.com/sanosuguru/go-event-booking/internal/application"
	"github.com/sanosuguru/go-event-booking/internal/domain/booking"
	"github.com/sanosuguru/go-event-booking/internal/domain/event"
	"github.com/sanosuguru/go-event-booking/internal/domain/transaction"
)

// MockBookingService はBookingServiceInterfaceのモック
type MockBookingService struct {
	mock.Mock
}

func (m *MockBookingService) CreateBooking(ctx context.Context, input application.CreateBookingInput) (*booking.Booking, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*booking.Booking), args.Error(1)
}

func (m *MockBookingService) CancelBooking(ctx context.Context, userID, bookingID string) (*booking.Booking, error) {
	args := m.Called(ctx, userID, bookingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*booking.Booking), args.Error(1)
}

func (m *MockBookingService) GetBooking(ctx context.Context, id string) (*booking.Booking, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*booking.Booking), args.Error(1)
}

func (m *MockBookingService) ListBookings(ctx context.Context, filter booking.ListFilter) ([]*booking.Booking, int, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]*booking.Booking), args.Int(1), args.Error(2)
}

func (m *MockBookingService) BookingStats(ctx context.Context, eventID string) ([]booking.StatusStat, error) {
	args := m.Called(ctx, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]booking.StatusStat), args.Error(1)
}

func newAuthedContext(e *echo.Echo, req *http.Request, rec *httptest.ResponseRecorder, userID, role string) echo.Context {
	c := e.NewContext(req, rec)
	c.Set(middleware.ContextUserID, userID)
	c.Set(middleware.ContextUserRole, role)
	return c
}

func sampleBooking() *booking.Booking {
	now := time.Now()
	return &booking.Booking{
		ID:          "booking-123",
		UserID:      "user-123",
		EventID:     "event-123",
		SeatsBooked: 2,
		TotalAmount: 24000,
		Status:      booking.StatusConfirmed,
		BookedAt:    now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func TestBookingHandler_Create(t *testing.T) {
	e := NewTestEcho()

	t.Run("正常に予約を作成できる", func(t *testing.T) {
		mockService := new(MockBookingService)
		mockService.On("CreateBooking", mock.Anything, application.CreateBookingInput{
			UserID:         "user-123",
			EventID:        "event-123",
			Seats:          2,
			IdempotencyKey: "idem-key",
		}).Return(sampleBooking(), nil)

		handler := NewBookingHandler(mockService)

		reqBody := `{"event_id": "event-123", "seats": 2, "idempotency_key": "idem-key"}`
		req := httptest.NewRequest(http.MethodPost, "/bookings", strings.NewReader(reqBody))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		c := newAuthedContext(e, req, rec, "user-123", "user")

		err := handler.Create(c)

		require.NoError(t, err)
		assert.Equal(t, http.StatusCreated, rec.Code)

		var resp BookingResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "booking-123", resp.ID)
		assert.Equal(t, "confirmed", resp.Status)
		assert.Equal(t, 24000, resp.TotalAmount)

		mockService.AssertExpectations(t)
	})

	t.Run("未認証は401", func(t *testing.T) {
		handler := NewBookingHandler(new(MockBookingService))

		req := httptest.NewRequest(http.MethodPost, "/bookings", strings.NewReader(`{"event_id":"e","seats":1}`))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		err := handler.Create(c)

		require.Error(t, err)
		he, ok := err.(*echo.HTTPError)
		require.True(t, ok)
		assert.Equal(t, http.StatusUnauthorized, he.Code)
	})

	t.Run("seatsなしはバリデーションエラー", func(t *testing.T) {
		handler := NewBookingHandler(new(MockBookingService))

		req := httptest.NewRequest(http.MethodPost, "/bookings", strings.NewReader(`{"event_id": "event-123"}`))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		c := newAuthedContext(e, req, rec, "user-123", "user")

		err := handler.Create(c)

		require.Error(t, err)
		he, ok := err.(*echo.HTTPError)
		require.True(t, ok)
		assert.Equal(t, http.StatusBadRequest, he.Code)
	})

	t.Run("満席は409と残席数を返す", func(t *testing.T) {
		mockService := new(MockBookingService)
		mockService.On("CreateBooking", mock.Anything, mock.AnythingOfType("application.CreateBookingInput")).
			Return(nil, &event.InsufficientSeatsError{EventID: "event-123", Requested: 5, Remaining: 2})

		handler := NewBookingHandler(mockService)

		reqBody := `{"event_id": "event-123", "seats": 5}`
		req := httptest.NewRequest(http.MethodPost, "/bookings", strings.NewReader(reqBody))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		c := newAuthedContext(e, req, rec, "user-123", "user")

		err := handler.Create(c)

		require.Error(t, err)
		he, ok := err.(*echo.HTTPError)
		require.True(t, ok)
		assert.Equal(t, http.StatusConflict, he.Code)

		resp, ok := he.Message.(api.ErrorResponse)
		require.True(t, ok)
		assert.Equal(t, "insufficient_capacity", resp.Kind)
		require.NotNil(t, resp.RemainingSeats)
		assert.Equal(t, 2, *resp.RemainingSeats)
	})

	t.Run("重複予約は409", func(t *testing.T) {
		mockService := new(MockBookingService)
		mockService.On("CreateBooking", mock.Anything, mock.AnythingOfType("application.CreateBookingInput")).
			Return(nil, booking.ErrDuplicateBooking)

		handler := NewBookingHandler(mockService)

		req := httptest.NewRequest(http.MethodPost, "/bookings", strings.NewReader(`{"event_id": "event-123", "seats": 1}`))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		c := newAuthedContext(e, req, rec, "user-123", "user")

		err := handler.Create(c)

		require.Error(t, err)
		he := err.(*echo.HTTPError)
		assert.Equal(t, http.StatusConflict, he.Code)
	})

	t.Run("競合は503", func(t *testing.T) {
		mockService := new(MockBookingService)
		mockService.On("CreateBooking", mock.Anything, mock.AnythingOfType("application.CreateBookingInput")).
			Return(nil, transaction.ErrContention)

		handler := NewBookingHandler(mockService)

		req := httptest.NewRequest(http.MethodPost, "/bookings", strings.NewReader(`{"event_id": "event-123", "seats": 1}`))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		c := newAuthedContext(e, req, rec, "user-123", "user")

		err := handler.Create(c)

		require.Error(t, err)
		he := err.(*echo.HTTPError)
		assert.Equal(t, http.StatusServiceUnavailable, he.Code)
	})
}

func TestBookingHandler_GetByID(t *testing.T) {
	e := NewTestEcho()

	t.Run("本人の予約を取得できる", func(t *testing.T) {
		mockService := new(MockBookingService)
		mockService.On("GetBooking", mock.Anything, "booking-123").Return(sampleBooking(), nil)

		handler := NewBookingHandler(mockService)

		req := httptest.NewRequest(http.MethodGet, "/bookings/booking-123", nil)
		rec := httptest.NewRecorder()
		c := newAuthedContext(e, req, rec, "user-123", "user")
		c.SetPath("/bookings/:id")
		c.SetParamNames("id")
		c.SetParamValues("booking-123")

		err := handler.GetByID(c)

		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("他人の予約は404", func(t *testing.T) {
		mockService := new(MockBookingService)
		mockService.On("GetBooking", mock.Anything, "booking-123").Return(sampleBooking(), nil)

		handler := NewBookingHandler(mockService)

		req := httptest.NewRequest(http.MethodGet, "/bookings/booking-123", nil)
		rec := httptest.NewRecorder()
		c := newAuthedContext(e, req, rec, "other-user", "user")
		c.SetPath("/bookings/:id")
		c.SetParamNames("id")
		c.SetParamValues("booking-123")

		err := handler.GetByID(c)

		require.Error(t, err)
		he := err.(*echo.HTTPError)
		assert.Equal(t, http.StatusNotFound, he.Code)
	})

	t.Run("管理者は他人の予約も参照できる", func(t *testing.T) {
		mockService := new(MockBookingService)
		mockService.On("GetBooking", mock.Anything, "booking-123").Return(sampleBooking(), nil)

		handler := NewBookingHandler(mockService)

		req := httptest.NewRequest(http.MethodGet, "/bookings/booking-123", nil)
		rec := httptest.NewRecorder()
		c := newAuthedContext(e, req, rec, "admin-user", "admin")
		c.SetPath("/bookings/:id")
		c.SetParamNames("id")
		c.SetParamValues("booking-123")

		err := handler.GetByID(c)

		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestBookingHandler_ListMine(t *testing.T) {
	e := NewTestEcho()

	mockService := new(MockBookingService)
	mockService.On("ListBookings", mock.Anything, booking.ListFilter{
		UserID: "user-123",
		Limit:  20,
	}).Return([]*booking.Booking{sampleBooking()}, 1, nil)

	handler := NewBookingHandler(mockService)

	req := httptest.NewRequest(http.MethodGet, "/bookings?limit=20", nil)
	rec := httptest.NewRecorder()
	c := newAuthedContext(e, req, rec, "user-123", "user")

	err := handler.ListMine(c)

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp BookingListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Bookings, 1)
	assert.Equal(t, 1, resp.Total)
	assert.Equal(t, 1, resp.Page)
	assert.Equal(t, 20, resp.Limit)
	assert.Equal(t, 1, resp.Pages)
}

func TestBookingHandler_ListMine_Paging(t *testing.T) {
	e := NewTestEcho()

	mockService := new(MockBookingService)
	mockService.On("ListBookings", mock.Anything, booking.ListFilter{
		UserID: "user-123",
		Limit:  10,
		Offset: 20,
	}).Return([]*booking.Booking{}, 42, nil)

	handler := NewBookingHandler(mockService)

	req := httptest.NewRequest(http.MethodGet, "/bookings?page=3&limit=10", nil)
	rec := httptest.NewRecorder()
	c := newAuthedContext(e, req, rec, "user-123", "user")

	err := handler.ListMine(c)

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp BookingListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 3, resp.Page)
	assert.Equal(t, 42, resp.Total)
	assert.Equal(t, 5, resp.Pages)
}

func TestBookingHandler_Cancel(t *testing.T) {
	e := NewTestEcho()

	t.Run("正常にキャンセルできる", func(t *testing.T) {
		cancelled := sampleBooking()
		cancelled.Status = booking.StatusCancelled
		now := time.Now()
		cancelled.CancelledAt = &now

		mockService := new(MockBookingService)
		mockService.On("CancelBooking", mock.Anything, "user-123", "booking-123").Return(cancelled, nil)

		handler := NewBookingHandler(mockService)

		req := httptest.NewRequest(http.MethodPost, "/bookings/booking-123/cancel", nil)
		rec := httptest.NewRecorder()
		c := newAuthedContext(e, req, rec, "user-123", "user")
		c.SetPath("/bookings/:id/cancel")
		c.SetParamNames("id")
		c.SetParamValues("booking-123")

		err := handler.Cancel(c)

		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, rec.Code)

		var resp BookingResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "cancelled", resp.Status)
		assert.NotNil(t, resp.CancelledAt)
	})

	t.Run("キャンセル期限切れは422", func(t *testing.T) {
		mockService := new(MockBookingService)
		mockService.On("CancelBooking", mock.Anything, "user-123", "booking-123").
			Return(nil, booking.ErrCancelCutoff)

		handler := NewBookingHandler(mockService)

		req := httptest.NewRequest(http.MethodPost, "/bookings/booking-123/cancel", nil)
		rec := httptest.NewRecorder()
		c := newAuthedContext(e, req, rec, "user-123", "user")
		c.SetPath("/bookings/:id/cancel")
		c.SetParamNames("id")
		c.SetParamValues("booking-123")

		err := handler.Cancel(c)

		require.Error(t, err)
		he := err.(*echo.HTTPError)
		assert.Equal(t, http.StatusUnprocessableEntity, he.Code)
	})

	t.Run("キャンセル済みは422", func(t *testing.T) {
		mockService := new(MockBookingService)
		mockService.On("CancelBooking", mock.Anything, "user-123", "booking-123").
			Return(nil, booking.ErrAlreadyCancelled)

		handler := NewBookingHandler(mockService)

		req := httptest.NewRequest(http.MethodPost, "/bookings/booking-123/cancel", nil)
		rec := httptest.NewRecorder()
		c := newAuthedContext(e, req, rec, "user-123", "user")
		c.SetPath("/bookings/:id/cancel")
		c.SetParamNames("id")
		c.SetParamValues("booking-123")

		err := handler.Cancel(c)

		require.Error(t, err)
		he := err.(*echo.HTTPError)
		assert.Equal(t, http.StatusUnprocessableEntity, he.Code)
	})
}

func TestBookingHandler_Stats(t *testing.T) {
	e := NewTestEcho()

	mockService := new(MockBookingService)
	mockService.On("BookingStats", mock.Anything, "event-123").Return([]booking.StatusStat{
		{Status: booking.StatusConfirmed, Count: 10, TotalSeats: 25, TotalRevenue: 250000},
	}, nil)

	handler := NewBookingHandler(mockService)

	req := httptest.NewRequest(http.MethodGet, "/admin/bookings/stats?event_id=event-123", nil)
	rec := httptest.NewRecorder()
	c := newAuthedContext(e, req, rec, "admin-user", "admin")

	err := handler.Stats(c)

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp []BookingStatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp, 1)
	assert.Equal(t, "confirmed", resp[0].Status)
	assert.Equal(t, 250000, resp[0].TotalRevenue)
}

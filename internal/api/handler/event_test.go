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

	"github.com/sanosuguru/go-event-booking/internal/application"
	"github.com/sanosuguru/go-event-booking/internal/domain/event"
)

// MockEventService はEventServiceInterfaceのモック
type MockEventService struct {
	mock.Mock
}

func (m *MockEventService) CreateEvent(ctx context.Context, input application.CreateEventInput) (*event.Event, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*event.Event), args.Error(1)
}

func (m *MockEventService) GetEvent(ctx context.Context, id string) (*event.Event, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*event.Event), args.Error(1)
}

func (m *MockEventService) ListEvents(ctx context.Context, filter event.ListFilter) ([]*event.Event, int, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]*event.Event), args.Int(1), args.Error(2)
}

func (m *MockEventService) UpdateEvent(ctx context.Context, input application.UpdateEventInput) (*event.Event, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*event.Event), args.Error(1)
}

func (m *MockEventService) DeleteEvent(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockEventService) CountAvailableSeats(ctx context.Context, eventID string) (int, error) {
	args := m.Called(ctx, eventID)
	return args.Int(0), args.Error(1)
}

func sampleEvent() *event.Event {
	now := time.Now()
	return &event.Event{
		ID:             "event-123",
		Title:          "東京ドームコンサート2026",
		Category:       "音楽",
		Location:       "東京",
		Venue:          "東京ドーム",
		StartAt:        now.Add(30 * 24 * time.Hour),
		Price:          12000,
		TotalSeats:     50000,
		AvailableSeats: 48213,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func TestEventHandler_Create(t *testing.T) {
	e := NewTestEcho()

	t.Run("正常にイベントを作成できる", func(t *testing.T) {
		mockService := new(MockEventService)
		mockService.On("CreateEvent", mock.Anything, mock.AnythingOfType("application.CreateEventInput")).
			Return(sampleEvent(), nil)

		handler := NewEventHandler(mockService)

		reqBody := `{
			"title": "東京ドームコンサート2026",
			"category": "音楽",
			"location": "東京",
			"venue": "東京ドーム",
			"start_at": "2026-12-31T18:00:00+09:00",
			"price": 12000,
			"total_seats": 50000
		}`
		req := httptest.NewRequest(http.MethodPost, "/admin/events", strings.NewReader(reqBody))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		err := handler.Create(c)

		require.NoError(t, err)
		assert.Equal(t, http.StatusCreated, rec.Code)

		var resp EventResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "event-123", resp.ID)
		assert.Equal(t, 48213, resp.AvailableSeats)
		mockService.AssertExpectations(t)
	})

	t.Run("タイトルなしはバリデーションエラー", func(t *testing.T) {
		handler := NewEventHandler(new(MockEventService))

		reqBody := `{"start_at": "2026-12-31T18:00:00+09:00", "total_seats": 100}`
		req := httptest.NewRequest(http.MethodPost, "/admin/events", strings.NewReader(reqBody))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		err := handler.Create(c)

		require.Error(t, err)
		he := err.(*echo.HTTPError)
		assert.Equal(t, http.StatusBadRequest, he.Code)
	})

	t.Run("開始時刻の形式が不正", func(t *testing.T) {
		handler := NewEventHandler(new(MockEventService))

		reqBody := `{"title": "t", "start_at": "2026/12/31 18:00", "total_seats": 100}`
		req := httptest.NewRequest(http.MethodPost, "/admin/events", strings.NewReader(reqBody))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		err := handler.Create(c)

		require.Error(t, err)
		he := err.(*echo.HTTPError)
		assert.Equal(t, http.StatusBadRequest, he.Code)
	})
}

func TestEventHandler_GetByID(t *testing.T) {
	e := NewTestEcho()

	t.Run("イベントを取得できる", func(t *testing.T) {
		mockService := new(MockEventService)
		mockService.On("GetEvent", mock.Anything, "event-123").Return(sampleEvent(), nil)

		handler := NewEventHandler(mockService)

		req := httptest.NewRequest(http.MethodGet, "/events/event-123", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetPath("/events/:id")
		c.SetParamNames("id")
		c.SetParamValues("event-123")

		err := handler.GetByID(c)

		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("存在しないIDは404", func(t *testing.T) {
		mockService := new(MockEventService)
		mockService.On("GetEvent", mock.Anything, "nonexistent").Return(nil, event.ErrEventNotFound)

		handler := NewEventHandler(mockService)

		req := httptest.NewRequest(http.MethodGet, "/events/nonexistent", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetPath("/events/:id")
		c.SetParamNames("id")
		c.SetParamValues("nonexistent")

		err := handler.GetByID(c)

		require.Error(t, err)
		he := err.(*echo.HTTPError)
		assert.Equal(t, http.StatusNotFound, he.Code)
	})
}

func TestEventHandler_List(t *testing.T) {
	e := NewTestEcho()

	mockService := new(MockEventService)
	mockService.On("ListEvents", mock.Anything, event.ListFilter{
		Category:     "音楽",
		UpcomingOnly: true,
		Limit:        10,
	}).Return([]*event.Event{sampleEvent()}, 1, nil)

	handler := NewEventHandler(mockService)

	req := httptest.NewRequest(http.MethodGet, "/events?category=音楽&upcoming=true&limit=10", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := handler.List(c)

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp EventListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Events, 1)
	assert.Equal(t, 1, resp.Total)
	mockService.AssertExpectations(t)
}

func TestEventHandler_Delete(t *testing.T) {
	e := NewTestEcho()

	t.Run("予約が残っているイベントは409", func(t *testing.T) {
		mockService := new(MockEventService)
		mockService.On("DeleteEvent", mock.Anything, "event-123").Return(event.ErrEventHasBookings)

		handler := NewEventHandler(mockService)

		req := httptest.NewRequest(http.MethodDelete, "/admin/events/event-123", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetPath("/admin/events/:id")
		c.SetParamNames("id")
		c.SetParamValues("event-123")

		err := handler.Delete(c)

		require.Error(t, err)
		he := err.(*echo.HTTPError)
		assert.Equal(t, http.StatusConflict, he.Code)
	})

	t.Run("正常に削除できる", func(t *testing.T) {
		mockService := new(MockEventService)
		mockService.On("DeleteEvent", mock.Anything, "event-123").Return(nil)

		handler := NewEventHandler(mockService)

		req := httptest.NewRequest(http.MethodDelete, "/admin/events/event-123", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetPath("/admin/events/:id")
		c.SetParamNames("id")
		c.SetParamValues("event-123")

		err := handler.Delete(c)

		require.NoError(t, err)
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})
}

func TestEventHandler_Availability(t *testing.T) {
	e := NewTestEcho()

	mockService := new(MockEventService)
	mockService.On("CountAvailableSeats", mock.Anything, "event-123").Return(42, nil)

	handler := NewEventHandler(mockService)

	req := httptest.NewRequest(http.MethodGet, "/events/event-123/availability", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/events/:id/availability")
	c.SetParamNames("id")
	c.SetParamValues("event-123")

	err := handler.Availability(c)

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp AvailabilityResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 42, resp.AvailableSeats)
}

package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-event-booking/internal/application"
	"github.com/sanosuguru/go-event-booking/internal/domain/event"
)

type EventHandler struct {
	eventService EventServiceInterface
}

func NewEventHandler(eventService EventServiceInterface) *EventHandler {
	return &EventHandler{eventService: eventService}
}

type CreateEventRequest struct {
	Title       string `json:"title" validate:"required" example:"東京ドームコンサート2026"`
	Description string `json:"description" example:"年末スペシャルコンサート"`
	Category    string `json:"category" example:"音楽"`
	Location    string `json:"location" example:"東京"`
	Venue       string `json:"venue" example:"東京ドーム"`
	StartAt     string `json:"start_at" validate:"required" example:"2026-12-31T18:00:00+09:00"`
	Price       int    `json:"price" validate:"gte=0" example:"12000"`
	TotalSeats  int    `json:"total_seats" validate:"required,gt=0" example:"50000"`
}

type EventResponse struct {
	ID             string `json:"id" example:"550e8400-e29b-41d4-a716-446655440000"`
	Title          string `json:"title" example:"東京ドームコンサート2026"`
	Description    string `json:"description,omitempty"`
	Category       string `json:"category,omitempty" example:"音楽"`
	Location       string `json:"location,omitempty" example:"東京"`
	Venue          string `json:"venue,omitempty" example:"東京ドーム"`
	StartAt        string `json:"start_at" example:"2026-12-31T18:00:00+09:00"`
	Price          int    `json:"price" example:"12000"`
	TotalSeats     int    `json:"total_seats" example:"50000"`
	AvailableSeats int    `json:"available_seats" example:"48213"`
	CreatedAt      string `json:"created_at"`
	UpdatedAt      string `json:"updated_at"`
}

type EventListResponse struct {
	Events []*EventResponse `json:"events"`
	Total  int              `json:"total"`
}

func toEventResponse(e *event.Event) *EventResponse {
	return &EventResponse{
		ID:             e.ID,
		Title:          e.Title,
		Description:    e.Description,
		Category:       e.Category,
		Location:       e.Location,
		Venue:          e.Venue,
		StartAt:        e.StartAt.Format(time.RFC3339),
		Price:          e.Price,
		TotalSeats:     e.TotalSeats,
		AvailableSeats: e.AvailableSeats,
		CreatedAt:      e.CreatedAt.Format(time.RFC3339),
		UpdatedAt:      e.UpdatedAt.Format(time.RFC3339),
	}
}

// Create は新しいイベントを作成する（管理者のみ）
func (h *EventHandler) Create(c echo.Context) error {
	var req CreateEventRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "リクエストの形式が不正です")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	startAt, err := time.Parse(time.RFC3339, req.StartAt)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "開始時刻の形式が不正です")
	}

	e, err := h.eventService.CreateEvent(c.Request().Context(), application.CreateEventInput{
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		Location:    req.Location,
		Venue:       req.Venue,
		StartAt:     startAt,
		Price:       req.Price,
		TotalSeats:  req.TotalSeats,
	})
	if err != nil {
		return toHTTPError(err)
	}

	return c.JSON(http.StatusCreated, toEventResponse(e))
}

// GetByID は指定IDのイベントを取得する
func (h *EventHandler) GetByID(c echo.Context) error {
	e, err := h.eventService.GetEvent(c.Request().Context(), c.Param("id"))
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, toEventResponse(e))
}

// List はイベント一覧を取得する
// category, location, upcoming, limit, offset で絞り込める
func (h *EventHandler) List(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	upcoming, _ := strconv.ParseBool(c.QueryParam("upcoming"))

	events, total, err := h.eventService.ListEvents(c.Request().Context(), event.ListFilter{
		Category:     c.QueryParam("category"),
		Location:     c.QueryParam("location"),
		UpcomingOnly: upcoming,
		Limit:        limit,
		Offset:       offset,
	})
	if err != nil {
		return toHTTPError(err)
	}

	resp := EventListResponse{
		Events: make([]*EventResponse, len(events)),
		Total:  total,
	}
	for i, e := range events {
		resp.Events[i] = toEventResponse(e)
	}
	return c.JSON(http.StatusOK, resp)
}

// Update はイベントのメタデータを更新する（管理者のみ）
func (h *EventHandler) Update(c echo.Context) error {
	var req CreateEventRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "リクエストの形式が不正です")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	startAt, err := time.Parse(time.RFC3339, req.StartAt)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "開始時刻の形式が不正です")
	}

	e, err := h.eventService.UpdateEvent(c.Request().Context(), application.UpdateEventInput{
		ID:          c.Param("id"),
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		Location:    req.Location,
		Venue:       req.Venue,
		StartAt:     startAt,
		Price:       req.Price,
	})
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, toEventResponse(e))
}

// Delete はイベントを削除する（管理者のみ）
// 確定済み予約が残っている間は削除できない
func (h *EventHandler) Delete(c echo.Context) error {
	if err := h.eventService.DeleteEvent(c.Request().Context(), c.Param("id")); err != nil {
		return toHTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

type AvailabilityResponse struct {
	EventID        string `json:"event_id"`
	AvailableSeats int    `json:"available_seats"`
}

// Availability は現在の空席数を取得する
func (h *EventHandler) Availability(c echo.Context) error {
	id := c.Param("id")
	count, err := h.eventService.CountAvailableSeats(c.Request().Context(), id)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, AvailabilityResponse{EventID: id, AvailableSeats: count})
}

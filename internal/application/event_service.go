package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-event-booking/internal/domain/event"
	redisinfra "github.com/sanosuguru/go-event-booking/internal/infrastructure/redis"
	"github.com/sanosuguru/go-event-booking/internal/pkg/logger"
)

const availabilityCacheTTL = 30 * time.Second

type EventService struct {
	eventRepo event.Repository
	cache     *redisinfra.AvailabilityCache
}

func NewEventService(eventRepo event.Repository, cache *redisinfra.AvailabilityCache) *EventService {
	return &EventService{eventRepo: eventRepo, cache: cache}
}

type CreateEventInput struct {
	Title       string
	Description string
	Category    string
	Location    string
	Venue       string
	StartAt     time.Time
	Price       int
	TotalSeats  int
}

func (s *EventService) CreateEvent(ctx context.Context, input CreateEventInput) (*event.Event, error) {
	e := event.NewEvent(input.Title, input.Description, input.Category, input.Location, input.Venue, input.StartAt, input.Price, input.TotalSeats)
	if err := e.Validate(); err != nil {
		return nil, fmt.Errorf("バリデーションエラー: %w", err)
	}
	if err := s.eventRepo.Create(ctx, e); err != nil {
		return nil, fmt.Errorf("イベント作成に失敗しました: %w", err)
	}
	return e, nil
}

func (s *EventService) GetEvent(ctx context.Context, id string) (*event.Event, error) {
	return s.eventRepo.GetByID(ctx, id)
}

func (s *EventService) ListEvents(ctx context.Context, filter event.ListFilter) ([]*event.Event, int, error) {
	if filter.Limit <= 0 {
		filter.Limit = 20
	}
	if filter.Limit > 100 {
		filter.Limit = 100
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return s.eventRepo.List(ctx, filter)
}

type UpdateEventInput struct {
	ID          string
	Title       string
	Description string
	Category    string
	Location    string
	Venue       string
	StartAt     time.Time
	Price       int
}

// UpdateEvent はイベントのメタデータを更新する
// 総座席数は作成後に変更できず、空席数は予約フローだけが変更する
func (s *EventService) UpdateEvent(ctx context.Context, input UpdateEventInput) (*event.Event, error) {
	e, err := s.eventRepo.GetByID(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	e.Title = input.Title
	e.Description = input.Description
	e.Category = input.Category
	e.Location = input.Location
	e.Venue = input.Venue
	e.StartAt = input.StartAt
	e.Price = input.Price
	if err := e.Validate(); err != nil {
		return nil, fmt.Errorf("バリデーションエラー: %w", err)
	}
	if err := s.eventRepo.Update(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

func (s *EventService) DeleteEvent(ctx context.Context, id string) error {
	return s.eventRepo.Delete(ctx, id)
}

// CountAvailableSeats はイベントの空席数を返す
// キャッシュヒット時はDBに問い合わせない
func (s *EventService) CountAvailableSeats(ctx context.Context, eventID string) (int, error) {
	if s.cache != nil {
		count, err := s.cache.GetAvailableSeats(ctx, eventID)
		if err == nil {
			logger.Debug("キャッシュヒット", zap.String("event_id", eventID), zap.Int("count", count))
			return count, nil
		}
		if !errors.Is(err, redisinfra.ErrCacheMiss) {
			logger.Warn("キャッシュ取得エラー", zap.Error(err))
		}
	}

	count, err := s.eventRepo.CountAvailableSeats(ctx, eventID)
	if err != nil {
		return 0, err
	}

	if s.cache != nil {
		if cacheErr := s.cache.SetAvailableSeats(ctx, eventID, count, availabilityCacheTTL); cacheErr != nil {
			logger.Warn("キャッシュ保存エラー", zap.Error(cacheErr))
		}
	}

	return count, nil
}

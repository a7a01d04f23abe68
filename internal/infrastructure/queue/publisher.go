// Package queue は予約ライフサイクルのメッセージをブローカーへ発行する
// 発行の失敗はログに記録するだけで、予約処理自体は成功として扱う
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-event-booking/internal/domain/booking"
	"github.com/sanosuguru/go-event-booking/internal/pkg/logger"
)

const (
	QueueBookingConfirmed = "booking.confirmed"
	QueueBookingCancelled = "booking.cancelled"
)

// BookingMessage はブローカーに発行される予約メッセージ
type BookingMessage struct {
	BookingID   string `json:"booking_id"`
	UserID      string `json:"user_id"`
	EventID     string `json:"event_id"`
	Seats       int    `json:"seats"`
	TotalAmount int    `json:"total_amount"`
	Status      string `json:"status"`
	OccurredAt  string `json:"occurred_at"`
}

// Publisher はRabbitMQへのパブリッシャー
type Publisher struct {
	conn    *amqp.Connection
	channel *amqp.Channel
}

// NewPublisher はブローカーに接続しキューを宣言する
func NewPublisher(url string) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("ブローカー接続に失敗しました: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("チャネル作成に失敗しました: %w", err)
	}

	// durable なキューを宣言（冪等）
	for _, name := range []string{QueueBookingConfirmed, QueueBookingCancelled} {
		if _, err := ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
			ch.Close()
			conn.Close()
			return nil, fmt.Errorf("キュー宣言に失敗しました: %w", err)
		}
	}

	return &Publisher{conn: conn, channel: ch}, nil
}

// Close は接続を閉じる
func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	if p.channel != nil {
		_ = p.channel.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

// PublishBookingConfirmed は予約確定メッセージを発行する
// レシーバーが nil の場合は何もしない（ブローカー未設定の構成用）
func (p *Publisher) PublishBookingConfirmed(ctx context.Context, b *booking.Booking) {
	p.publish(ctx, QueueBookingConfirmed, b)
}

// PublishBookingCancelled はキャンセルメッセージを発行する
func (p *Publisher) PublishBookingCancelled(ctx context.Context, b *booking.Booking) {
	p.publish(ctx, QueueBookingCancelled, b)
}

func (p *Publisher) publish(ctx context.Context, queueName string, b *booking.Booking) {
	if p == nil {
		return
	}

	msg := BookingMessage{
		BookingID:   b.ID,
		UserID:      b.UserID,
		EventID:     b.EventID,
		Seats:       b.SeatsBooked,
		TotalAmount: b.TotalAmount,
		Status:      string(b.Status),
		OccurredAt:  time.Now().UTC().Format(time.RFC3339),
	}

	body, err := json.Marshal(msg)
	if err != nil {
		logger.Error("メッセージのシリアライズに失敗", zap.Error(err))
		return
	}

	err = p.channel.PublishWithContext(ctx, "", queueName, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Body:         body,
	})
	if err != nil {
		logger.Error("メッセージ発行に失敗",
			zap.String("queue", queueName),
			zap.String("booking_id", b.ID),
			zap.Error(err),
		)
	}
}

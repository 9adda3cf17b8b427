package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"campus/profile"
)

const (
	DefaultSubjectPrefix  = "campus"
	EventTypeSynchronized = "profile.synchronized"
)

// IConn 是 EventPublisher 需要的 NATS 連線操作
type IConn interface {
	Publish(subject string, data []byte) error
}

// EventPublisher 將同步事件以 JSON envelope 發布到 NATS，實作 profile.IEventPublisher
//
// subject 格式為 <prefix>.profile.<kind>.synchronized，訂閱者可以用萬用字元只接收特定角色
type EventPublisher struct {
	conn          IConn
	subjectPrefix string
}

func NewEventPublisher(conn IConn, subjectPrefix string) (*EventPublisher, error) {
	if conn == nil {
		return nil, errors.New("nats connection cannot be nil")
	}
	if subjectPrefix == "" {
		subjectPrefix = DefaultSubjectPrefix
	}
	return &EventPublisher{conn: conn, subjectPrefix: subjectPrefix}, nil
}

func (p *EventPublisher) Publish(ctx context.Context, event profile.Synchronized) error {
	const op = "nats.EventPublisher.Publish"
	if err := ctx.Err(); err != nil {
		return err
	}

	eventID, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("%s: failed to generate event id: %w", op, err)
	}
	data, err := json.Marshal(eventEnvelope{
		EventID:     eventID.String(),
		EventType:   EventTypeSynchronized,
		AggregateID: event.IdentityID.String(),
		OccurredAt:  event.OccurredAt.Unix(),
		Payload: synchronizedPayload{
			IdentityID:   event.IdentityID.String(),
			Kind:         string(event.Kind),
			ProfileID:    event.ProfileID,
			DepartmentID: event.DepartmentID,
			Created:      event.Created,
		},
	})
	if err != nil {
		return fmt.Errorf("%s: failed to marshal event: %w", op, err)
	}

	if err := p.conn.Publish(p.Subject(event.Kind), data); err != nil {
		return fmt.Errorf("%s: failed to publish event: %w", op, err)
	}
	return nil
}

// Subject 回傳指定角色的事件 subject
func (p *EventPublisher) Subject(kind profile.Kind) string {
	return fmt.Sprintf("%s.profile.%s.synchronized", p.subjectPrefix, kind)
}

type eventEnvelope struct {
	EventID     string              `json:"event_id"`
	EventType   string              `json:"event_type"`
	AggregateID string              `json:"aggregate_id"`
	OccurredAt  int64               `json:"occurred_at"`
	Payload     synchronizedPayload `json:"payload"`
}

type synchronizedPayload struct {
	IdentityID   string `json:"identity_id"`
	Kind         string `json:"kind"`
	ProfileID    uint   `json:"profile_id"`
	DepartmentID uint   `json:"department_id"`
	Created      bool   `json:"created"`
}

// Connect 建立會自動重連的 NATS 連線，斷線與重連只會被記錄
func Connect(url string, maxReconnects int, reconnectWait time.Duration, logger *slog.Logger) (*nats.Conn, error) {
	const op = "nats.Connect"
	logger = logger.With(slog.String("caller", "nats"))
	conn, err := nats.Connect(url,
		nats.Name("campus"),
		nats.MaxReconnects(maxReconnects),
		nats.ReconnectWait(reconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("NATS disconnected", slog.Any("error", err))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected", slog.String("url", nc.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to connect: %w", op, err)
	}
	return conn, nil
}

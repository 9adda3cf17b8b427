package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"campus/profile"
)

// SynchronizedMessage 是角色資料同步事件在 stream 上的格式
type SynchronizedMessage struct {
	IdentityID   string    `msgpack:"identity_id"`
	Kind         string    `msgpack:"kind"`
	ProfileID    uint      `msgpack:"profile_id"`
	DepartmentID uint      `msgpack:"department_id"`
	Created      bool      `msgpack:"created"`
	OccurredAt   time.Time `msgpack:"occurred_at"`
}

func newSynchronizedMessage(event profile.Synchronized) SynchronizedMessage {
	return SynchronizedMessage{
		IdentityID:   event.IdentityID.String(),
		Kind:         string(event.Kind),
		ProfileID:    event.ProfileID,
		DepartmentID: event.DepartmentID,
		Created:      event.Created,
		OccurredAt:   event.OccurredAt.UTC(),
	}
}

// StreamPublisher 將同步事件寫入 redis stream，實作 profile.IEventPublisher
type StreamPublisher struct {
	producer IProducer[SynchronizedMessage]
}

func NewStreamPublisher(client *redis.Client, stream string, opts ...ProducerOption[SynchronizedMessage]) (*StreamPublisher, error) {
	const op = "NewStreamPublisher"
	producer, err := NewProducer(client, stream, opts...)
	if err != nil {
		return nil, fmt.Errorf("[%s] Fail to create producer, err=%w", op, err)
	}
	return &StreamPublisher{producer: producer}, nil
}

func (p *StreamPublisher) Start() {
	p.producer.Start()
}

func (p *StreamPublisher) Close() {
	p.producer.Close()
}

func (p *StreamPublisher) Publish(ctx context.Context, event profile.Synchronized) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.producer.Publish(newSynchronizedMessage(event))
}

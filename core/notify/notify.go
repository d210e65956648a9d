// Package notify publishes change notifications for documents created, updated
// or removed through the REST interface.
package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/segmentio/kafka-go"

	"github.com/relabs-tech/docrest/core"
	"github.com/relabs-tech/docrest/core/logger"
	"github.com/relabs-tech/docrest/core/store"
)

// Notification describes a change of a single document
type Notification struct {
	// Resource is the resource key, e.g. "houses/rooms"
	Resource  string         `json:"resource"`
	Operation core.Operation `json:"operation"`
	ID        string         `json:"id"`
	// Params are the path identifiers of the request in route order
	Params    []string       `json:"params,omitempty"`
	Document  store.Document `json:"document,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}

// Notifier receives notifications after a change has been stored
type Notifier interface {
	Notify(ctx context.Context, notification Notification) error
}

// Nop is a notifier which drops all notifications
type Nop struct{}

// Notify implements Notifier
func (Nop) Notify(ctx context.Context, notification Notification) error {
	return nil
}

// Recorder is a notifier which keeps all notifications in memory
type Recorder struct {
	mutex         sync.Mutex
	notifications []Notification
}

// Notify implements Notifier
func (r *Recorder) Notify(ctx context.Context, notification Notification) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.notifications = append(r.notifications, notification)
	return nil
}

// Notifications returns a copy of all recorded notifications
func (r *Recorder) Notifications() []Notification {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return append([]Notification{}, r.notifications...)
}

// Kafka writes notifications as JSON messages to a kafka topic. The message key is
// the resource key, so all changes of one resource land on the same partition.
type Kafka struct {
	writer *kafka.Writer
}

// NewKafka returns a notifier writing to topic on brokers
func NewKafka(brokers []string, topic string) *Kafka {
	logger.Default().Infoln("kafka notifications to topic", topic, "on", brokers)
	return &Kafka{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireOne,
			AllowAutoTopicCreation: true,
		},
	}
}

// Notify implements Notifier
func (k *Kafka) Notify(ctx context.Context, notification Notification) error {
	if notification.CreatedAt.IsZero() {
		notification.CreatedAt = time.Now().UTC()
	}
	payload, err := json.Marshal(notification)
	if err != nil {
		return fmt.Errorf("cannot marshal notification: %w", err)
	}
	err = k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(notification.Resource),
		Value: payload,
	})
	if err != nil {
		return fmt.Errorf("cannot write notification for %s %s: %w", notification.Resource, notification.ID, err)
	}
	return nil
}

// Close flushes pending messages and closes the writer
func (k *Kafka) Close() error {
	return k.writer.Close()
}

// Send delivers notification with n and logs a failure. A nil notifier is ignored.
func Send(ctx context.Context, n Notifier, notification Notification) {
	if n == nil {
		return
	}
	if notification.CreatedAt.IsZero() {
		notification.CreatedAt = time.Now().UTC()
	}
	if err := n.Notify(ctx, notification); err != nil {
		logger.FromContext(ctx).WithError(err).Errorln("notification failed for", notification.Resource, notification.ID)
	}
}

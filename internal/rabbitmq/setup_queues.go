package rabbitmq

import (
	"time"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/subscription-lifecycle/internal/models"
)

// QueueConfig очередь, ключ маршрутизации, которым она привязана к обменнику,
// и аргументы объявления (x-max-length, x-message-ttl и т.п.).
type QueueConfig struct {
	QueueName  string
	RoutingKey string
	Args       amqp.Table
}

const (
	// QueueSent успешные отправки. Постоянного потребителя нет, очередь ограничена.
	QueueSent = "reminders.sent"
	// QueueFailed неудачные отправки, читаются оповещателем администраторов.
	QueueFailed = "reminders.failed"

	// SentQueueMaxLength после превышения брокер отбрасывает самые старые события.
	SentQueueMaxLength = 10000
	// SentQueueTTL срок жизни события об успешной отправке.
	SentQueueTTL = 7 * 24 * time.Hour
)

// ReminderQueues очереди событий рассылки. Ключ маршрутизации совпадает со статусом отправки.
func ReminderQueues() []QueueConfig {
	return []QueueConfig{
		{
			QueueName:  QueueSent,
			RoutingKey: string(models.DispatchSent),
			Args: amqp.Table{
				"x-max-length":  int32(SentQueueMaxLength),
				"x-message-ttl": int32(SentQueueTTL / time.Millisecond),
				"x-overflow":    "drop-head",
			},
		},
		{QueueName: QueueFailed, RoutingKey: string(models.DispatchFailed)},
	}
}

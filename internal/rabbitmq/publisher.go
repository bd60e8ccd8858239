package rabbitmq

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/streadway/amqp"
)

// AuditEvent описывает переход состояния даты выписки: какой путь сработал,
// для какого пользователя и с каким значением. События носят справочный
// характер и никогда не влияют на поток управления.
type AuditEvent struct {
	Path    string    `json:"path"`    // checkout, account, admin, backstop
	UserUID string    `json:"user_uid"`
	Value   string    `json:"value,omitempty"`
	At      time.Time `json:"at"`
}

// Publisher публикует аудиторские события в exchange "events".
type Publisher struct {
	ch *amqp.Channel
}

// NewPublisher создает Publisher поверх открытого канала.
func NewPublisher(ch *amqp.Channel) *Publisher {
	return &Publisher{ch: ch}
}

// Publish сериализует сообщение в JSON и публикует его с ключом маршрутизации.
func (p *Publisher) Publish(routingKey string, message any) error {
	const op = "rabbitmq.Publish"
	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	err = p.ch.Publish(
		"events",
		routingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
		},
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

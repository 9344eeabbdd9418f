package app

import (
	"context"
	"log/slog"

	"dispatch/internal/broker"
	"dispatch/internal/config"
)

// NewPublisher connects the notification broker when enabled. A nil
// publisher means notifications are only logged.
func NewPublisher(cfg config.RabbitMQConfig, logger *slog.Logger) (*broker.Publisher, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	return broker.NewPublisher(cfg.URL, cfg.Exchange, logger)
}

// Liveness is satisfied by broker.Publisher.
type Liveness interface {
	IsAlive() bool
}

// BrokerHealthCheck reports the broker connection. It is optional: while the
// broker reconnects, notifications are only logged.
func BrokerHealthCheck(p Liveness) HealthCheck {
	return HealthCheck{
		Name: "rabbitmq",
		Check: func(context.Context) error {
			if !p.IsAlive() {
				return broker.ErrConnectionClosed
			}
			return nil
		},
	}
}

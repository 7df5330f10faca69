package queue

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/seu-repo/voz-visible/internal/ports"
)

// Driver names accepted by New.
const (
	DriverNone     = ""
	DriverNATS     = "nats"
	DriverRabbitMQ = "rabbitmq"
)

// New connects the configured broker. DriverNone returns a nil queue, which
// callers treat as "events disabled".
func New(driver, url string, log *zap.Logger) (ports.MessageQueue, error) {
	switch driver {
	case DriverNone:
		return nil, nil
	case DriverNATS:
		return NewNATSQueue(url, log)
	case DriverRabbitMQ:
		return NewRabbitMQQueue(url, log)
	default:
		return nil, fmt.Errorf("unknown queue driver %q", driver)
	}
}

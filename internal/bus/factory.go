package bus

import (
	"fmt"
	"strings"

	"github.com/clindocs/cdi-eval/internal/config"
	"github.com/clindocs/cdi-eval/internal/pkg/errors"
)

// NewBus creates a Bus instance based on the configuration.
func NewBus(cfg config.BusConfig) (Bus, error) {
	switch strings.ToLower(cfg.Type) {
	case "memory", "":
		return NewMemoryBus(), nil

	case "kafka":
		brokers := ParseKafkaBrokers(cfg.KafkaBrokers)
		if len(brokers) == 0 {
			return nil, errors.New(errors.CodeValidation, "kafka brokers not configured")
		}

		consumerGroup := cfg.KafkaGroup
		if consumerGroup == "" {
			consumerGroup = "cdi-eval"
		}

		return NewKafkaBus(KafkaConfig{
			Brokers:       brokers,
			ConsumerGroup: consumerGroup,
			ClientID:      "cdi-eval-bus",
		})

	default:
		return nil, errors.New(errors.CodeValidation, fmt.Sprintf("unknown bus type: %s", cfg.Type))
	}
}

package bootstrap

import (
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	appconfig "github.com/wolfman30/sitelead-ai/internal/config"
	"github.com/wolfman30/sitelead-ai/internal/dispatch"
	"github.com/wolfman30/sitelead-ai/internal/events"
	"github.com/wolfman30/sitelead-ai/pkg/logging"
)

// BuildDispatchQueue returns the SQS queue when DISPATCH_QUEUE=sqs, otherwise
// an in-process buffer.
func BuildDispatchQueue(cfg *appconfig.Config, awsCfg aws.Config, logger *logging.Logger) (dispatch.Queue, error) {
	if logger == nil {
		logger = logging.Default()
	}
	switch cfg.DispatchQueue {
	case "sqs":
		if strings.TrimSpace(cfg.DispatchQueueURL) == "" {
			return nil, fmt.Errorf("bootstrap: DISPATCH_QUEUE_URL is required for the sqs queue")
		}
		logger.Info("using sqs dispatch queue", "url", cfg.DispatchQueueURL)
		return dispatch.NewSQSQueue(sqs.NewFromConfig(awsCfg), cfg.DispatchQueueURL), nil
	case "", "memory":
		logger.Info("using in-memory dispatch queue")
		return dispatch.NewMemoryQueue(0), nil
	default:
		return nil, fmt.Errorf("bootstrap: unknown dispatch queue %q", cfg.DispatchQueue)
	}
}

// BuildPublisher connects to NATS when configured. The returned close func is
// always safe to call.
func BuildPublisher(cfg *appconfig.Config, logger *logging.Logger) (events.Publisher, func(), error) {
	if logger == nil {
		logger = logging.Default()
	}
	if strings.TrimSpace(cfg.NATSURL) == "" {
		logger.Info("nats not configured; domain events are logged only")
		return events.LogPublisher{Logger: logger}, func() {}, nil
	}
	pub, err := events.NewNATSPublisher(cfg.NATSURL, cfg.NATSToken, logger)
	if err != nil {
		return nil, func() {}, fmt.Errorf("bootstrap: %w", err)
	}
	return pub, func() { _ = pub.Close() }, nil
}

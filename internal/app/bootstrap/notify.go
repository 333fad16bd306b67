package bootstrap

import (
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"

	appconfig "github.com/wolfman30/sitelead-ai/internal/config"
	"github.com/wolfman30/sitelead-ai/internal/notify"
	"github.com/wolfman30/sitelead-ai/internal/observability/metrics"
	"github.com/wolfman30/sitelead-ai/pkg/logging"
)

// BuildNotifier wires the email, SMS and Slack senders that have credentials.
// A channel without credentials stays nil so notify.Service skips it.
func BuildNotifier(cfg *appconfig.Config, awsCfg aws.Config, m *metrics.ChatMetrics, logger *logging.Logger) *notify.Service {
	if logger == nil {
		logger = logging.Default()
	}

	var ses *sesv2.Client
	if cfg.EmailProvider == "ses" {
		ses = sesv2.NewFromConfig(awsCfg)
	}
	var email notify.EmailSender
	if cfg.EmailProvider != "" {
		email = notify.NewEmailSender(notify.EmailConfig{
			Provider:         cfg.EmailProvider,
			SendGridAPIKey:   cfg.SendGridAPIKey,
			FromEmail:        cfg.EmailFromAddress,
			FromName:         cfg.EmailFromName,
			ConfigurationSet: cfg.SESConfigurationSet,
		}, ses, logger)
	}

	// The constructors return typed nil pointers when unconfigured; only
	// assign real senders to the interfaces.
	var sms notify.SMSSender
	if sender := notify.NewTwilioSender(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFromNumber, logger); sender != nil {
		sms = sender
	}
	var chat notify.ChatPoster
	if poster := notify.NewSlackPoster(cfg.SlackBotToken, cfg.SlackChannel, logger); poster != nil {
		chat = poster
	}

	logger.Info("notification channels",
		"email", email != nil,
		"sms", sms != nil,
		"slack", chat != nil,
	)
	return notify.NewService(email, sms, chat, notify.WithMetrics(m), notify.WithLogger(logger))
}

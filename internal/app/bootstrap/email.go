package bootstrap

import (
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"

	appconfig "github.com/wolfman30/realty-ai-platform/internal/config"
	"github.com/wolfman30/realty-ai-platform/internal/notify"
	"github.com/wolfman30/realty-ai-platform/pkg/logging"
)

// BuildEmailSender picks the digest email provider. Misconfigured providers
// fall back to the logging stub so the worker still runs.
func BuildEmailSender(cfg *appconfig.Config, awsCfg aws.Config, logger *logging.Logger) notify.EmailSender {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg == nil {
		return notify.NewStubEmailSender(logger)
	}

	switch cfg.EmailProvider {
	case "sendgrid":
		sender := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.EmailFromAddress,
			FromName:  cfg.EmailFromName,
		}, logger)
		if sender != nil {
			logger.Info("digest email provider configured", "provider", "sendgrid")
			return sender
		}
		logger.Warn("sendgrid selected but SENDGRID_API_KEY is empty; using stub sender")
	case "ses":
		sender := notify.NewSESSender(sesv2.NewFromConfig(awsCfg), notify.SESConfig{
			FromEmail: cfg.EmailFromAddress,
			FromName:  cfg.EmailFromName,
		}, logger)
		if sender != nil {
			logger.Info("digest email provider configured", "provider", "ses")
			return sender
		}
	case "", "stub":
	default:
		logger.Warn("unknown email provider; using stub sender", "provider", cfg.EmailProvider)
	}
	return notify.NewStubEmailSender(logger)
}

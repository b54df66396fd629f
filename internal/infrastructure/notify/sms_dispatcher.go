package notify

import (
	"context"
	"strings"

	openapi "github.com/alibabacloud-go/darabonba-openapi/v2/client"
	dysmsapi20170525 "github.com/alibabacloud-go/dysmsapi-20170525/v4/client"
	"github.com/alibabacloud-go/tea/tea"
	"go.uber.org/zap"

	"barmeet_server/internal/config"
)

// UserDirectory resolves an opaque user id to a reachable phone number.
// It is an external collaborator; this service only reads.
type UserDirectory interface {
	LookupPhone(ctx context.Context, userUuid string) (string, error)
}

// smsDispatcher sends notifications through Aliyun SMS.
type smsDispatcher struct {
	client    *dysmsapi20170525.Client
	directory UserDirectory
	signName  string
	template  string
}

// logDispatcher writes notifications to the log only. Used when SMS is
// disabled and as the universal dev-mode fallback.
type logDispatcher struct{}

func (d *logDispatcher) Send(_ context.Context, userUuids []string, message string, kind Kind) error {
	zap.L().Info("notification (log only)",
		zap.Strings("users", userUuids),
		zap.String("kind", string(kind)),
		zap.String("message", message))
	return nil
}

// Init builds the dispatcher from config. Missing or placeholder credentials
// fall back to log-only delivery so local runs never call out.
func Init(directory UserDirectory) (Dispatcher, error) {
	cfg := config.GetConfig().SmsConfig
	if !cfg.Enabled || directory == nil || shouldUseLogOnly(cfg) {
		zap.L().Warn("notification dispatcher running in log-only mode")
		return &logDispatcher{}, nil
	}

	conf := &openapi.Config{
		AccessKeyId:     tea.String(cfg.AccessKeyID),
		AccessKeySecret: tea.String(cfg.AccessKeySecret),
	}
	conf.Endpoint = tea.String("dysmsapi.aliyuncs.com")
	client, err := dysmsapi20170525.NewClient(conf)
	if err != nil {
		zap.L().Error("aliyun sms client init failed", zap.Error(err))
		return nil, err
	}

	return &smsDispatcher{
		client:    client,
		directory: directory,
		signName:  cfg.SignName,
		template:  cfg.TemplateCode,
	}, nil
}

func shouldUseLogOnly(cfg config.SmsConfig) bool {
	ak := strings.ToLower(strings.TrimSpace(cfg.AccessKeyID))
	ask := strings.ToLower(strings.TrimSpace(cfg.AccessKeySecret))
	if ak == "" || ask == "" {
		return true
	}
	return strings.Contains(ak, "your accesskey") || strings.Contains(ask, "your accesskey")
}

// Send delivers the message to each resolvable user. Per-user failures are
// logged and skipped; one unreachable user must not mute the rest of the
// group.
func (d *smsDispatcher) Send(ctx context.Context, userUuids []string, message string, kind Kind) error {
	for _, userUuid := range userUuids {
		phone, err := d.directory.LookupPhone(ctx, userUuid)
		if err != nil {
			zap.L().Warn("user unreachable, skipping notification",
				zap.String("user", userUuid), zap.Error(err))
			continue
		}

		req := &dysmsapi20170525.SendSmsRequest{
			PhoneNumbers:  tea.String(phone),
			SignName:      tea.String(d.signName),
			TemplateCode:  tea.String(d.template),
			TemplateParam: tea.String(`{"content":"` + message + `"}`),
		}
		if _, err := d.client.SendSms(req); err != nil {
			zap.L().Error("sms send failed",
				zap.String("user", userUuid),
				zap.String("kind", string(kind)),
				zap.Error(err))
		}
	}
	return nil
}

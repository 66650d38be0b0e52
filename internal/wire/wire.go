//go:build wireinject
// +build wireinject

package wire

import (
	"context"

	"github.com/google/wire"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"ripple/internal/cache"
	"ripple/internal/chat"
	"ripple/internal/config"
	"ripple/internal/dbmysql"
	"ripple/internal/notif"
	"ripple/internal/presence"
	"ripple/internal/social"
	"ripple/internal/transport"
)

type Application struct {
	Config       *config.Config
	DB           *gorm.DB
	Logger       *zap.Logger
	Registry     *presence.Registry
	Transport    *transport.Transport
	NotifHandler *notif.Handler
	NotifService *notif.Service
	Messages     chat.MessageService
}

func InitializeApplication() (*Application, error) {
	wire.Build(
		config.Load,
		ProvideLogger,
		dbmysql.NewMySQL,
		ProvideMessageCache,
		dbmysql.NewConversationRepository,
		dbmysql.NewMessageRepository,
		dbmysql.NewNotificationRepository,
		dbmysql.NewSettingsRepository,
		dbmysql.NewSocialRepository,
		social.NewService,
		presence.NewRegistry,
		chat.NewConversationService,
		chat.NewMessageService,
		notif.NewService,
		notif.NewHandler,
		transport.New,
		wire.Struct(new(Application), "*"),
	)
	return &Application{}, nil
}

func ProvideLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.Logging.Level == "debug" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// ProvideMessageCache returns nil when Redis is disabled; every cache method
// is nil-safe.
func ProvideMessageCache(cfg *config.Config) (*cache.MessageCache, error) {
	return cache.Connect(context.Background(), cfg)
}

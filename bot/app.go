package bot

import (
	"context"
	"fmt"

	tele "gopkg.in/telebot.v4"

	"github.com/erbtraffic/licensebot/core/bootstrap"
	coretelegram "github.com/erbtraffic/licensebot/core/telegram"
	"github.com/erbtraffic/licensebot/core/telegram/commands"
	"github.com/erbtraffic/licensebot/core/telegram/middleware"
	"github.com/erbtraffic/licensebot/core/telegram/router"
	"github.com/erbtraffic/licensebot/keepalive"
	"github.com/erbtraffic/licensebot/licensing"
	"github.com/erbtraffic/licensebot/storage/postgres"
)

// App ties the licensing service to the Telegram surface and the keep-alive
// listener.
type App struct {
	cfg     *AppConfig
	svc     *licensing.Service
	adminID int64
	keep    *keepalive.Server

	// notifier overrides outbound delivery; nil means send through the live
	// bot handling the current update.
	notifier Notifier
}

// NewApp assembles an App from pre-built dependencies.
func NewApp(cfg *AppConfig, svc *licensing.Service, notifier Notifier) *App {
	app := &App{
		cfg:      cfg,
		svc:      svc,
		notifier: notifier,
	}
	if cfg != nil {
		app.adminID = cfg.Core.Telegram.AdminID
		app.keep = keepalive.New(cfg.Core.KeepAlive.Port)
	}
	return app
}

// Bootstrap initializes logging, the database, and migrations, then builds
// the application on Postgres-backed stores.
func Bootstrap(cfg *AppConfig) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bot: nil config provided")
	}
	res, err := bootstrap.Run(bootstrap.Options{
		Config:   &cfg.Core,
		Database: cfg.Database,
	})
	if err != nil {
		return nil, err
	}

	svc := licensing.NewService(
		postgres.NewUserStore(res.DB),
		postgres.NewLicenseStore(res.DB),
	)
	return NewApp(cfg, svc, nil), nil
}

func (a *App) notifierFor(c tele.Context) Notifier {
	if a.notifier != nil {
		return a.notifier
	}
	return newTelegramNotifier(c.Bot())
}

// ackCallback answers the callback query before running the handler, so the
// client spinner clears even when the handler only sends a message.
func ackCallback(h tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		if c.Callback() != nil {
			_ = c.Respond()
		}
		return h(c)
	}
}

// buildRegistry wires commands and callbacks. Admin actions are guarded, so
// a forged approve button in another chat is ignored.
func (a *App) buildRegistry() *coretelegram.Registry {
	reg := coretelegram.NewRegistry()

	reg.RegisterCommand("/start", commands.Command{
		Handler:     a.handleStart,
		Description: "Open the main menu",
	})

	adminOnly := middleware.AdminOnlyMiddleware(middleware.AdminOptions{
		AdminID: a.adminID,
		OnReject: func(c tele.Context) error {
			return c.Respond(&tele.CallbackResponse{Text: "Not allowed"})
		},
	})

	_ = reg.RegisterCallback(cbGetTrial, ackCallback(a.handleGetTrial))
	_ = reg.RegisterCallback(cbBuyPremium, ackCallback(a.handleShowPlans))
	_ = reg.RegisterCallback(cbMyLicense, ackCallback(a.handleMyLicense))
	_ = reg.RegisterCallback(cbSupport, ackCallback(a.handleSupport))
	_ = reg.RegisterCallback(cbStartOver, ackCallback(a.handleStartOver))
	_ = reg.RegisterCallback(cbPay, a.handlePay)
	_ = reg.RegisterCallback(cbAdminApprove, adminOnly(a.handleAdminApprove))
	_ = reg.RegisterCallback(cbAdminReject, adminOnly(a.handleAdminReject))

	reg.SetTextFallback(a.handleUnknownText)
	return reg
}

// TelegramRunOptions builds the full bot runtime wiring for cmd.Run.
func (a *App) TelegramRunOptions() (coretelegram.RunOptions, error) {
	if a.cfg == nil {
		return coretelegram.RunOptions{}, fmt.Errorf("bot: app is not configured")
	}

	reg := a.buildRegistry()

	routes := router.CommandRoutes(reg, router.CommandRouteOptions{
		AdminID: a.adminID,
	})
	routes = append(routes, router.CallbackRoute(reg, router.CallbackOptions{}))
	routes = append(routes, router.MessageRoutes(reg, router.MessageOptions{
		Photo:       a.handlePhoto,
		UnknownText: a.handleUnknownText,
	})...)

	middlewares := coretelegram.DefaultMiddlewares(&a.cfg.Core, nil)
	middlewares = append(middlewares, registerUserMiddleware(a.svc))

	return coretelegram.RunOptions{
		Config:      &a.cfg.Core,
		Registry:    reg,
		Middlewares: middlewares,
		Routes:      routes,
		OnStart: func(ctx context.Context, _ coretelegram.Runtime) error {
			if a.keep != nil {
				a.keep.Start(ctx)
			}
			return nil
		},
		OnStop: func(ctx context.Context, _ coretelegram.Runtime) error {
			if a.keep != nil {
				return a.keep.Stop(ctx)
			}
			return nil
		},
	}, nil
}

package bot

import (
	"log/slog"
	"strconv"

	tele "gopkg.in/telebot.v4"

	"github.com/erbtraffic/licensebot/core/logger"
	coretelegram "github.com/erbtraffic/licensebot/core/telegram"
	tghelpers "github.com/erbtraffic/licensebot/core/telegram/helpers"
	"github.com/erbtraffic/licensebot/licensing"
)

// registerUserMiddleware upserts the sender on every update, so handlers can
// assume the user row exists. Registration failures never block handling.
func registerUserMiddleware(svc *licensing.Service) coretelegram.Middleware {
	return coretelegram.Middleware{
		Name: "register_user",
		Use: func(next tele.HandlerFunc) tele.HandlerFunc {
			return func(c tele.Context) error {
				sender := c.Sender()
				if sender == nil {
					return next(c)
				}
				ctx := tghelpers.BuildContext(c)
				user := licensing.User{
					ID:          strconv.FormatInt(sender.ID, 10),
					DisplayName: sender.FirstName,
					Handle:      optional(sender.Username),
				}
				if err := svc.RegisterUser(ctx, user); err != nil {
					logger.Warn(ctx, "tg", "register.fail",
						slog.String("err", err.Error()),
						slog.String("target_user_id", user.ID),
					)
				}
				return next(c)
			}
		},
	}
}

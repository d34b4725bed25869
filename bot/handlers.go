package bot

import (
	"errors"
	"log/slog"
	"strconv"

	tele "gopkg.in/telebot.v4"

	"github.com/erbtraffic/licensebot/core/logger"
	"github.com/erbtraffic/licensebot/core/telegram/callbacks"
	tghelpers "github.com/erbtraffic/licensebot/core/telegram/helpers"
	"github.com/erbtraffic/licensebot/core/telegram/keyboard"
	"github.com/erbtraffic/licensebot/licensing"
)

func senderID(c tele.Context) string {
	return strconv.FormatInt(c.Sender().ID, 10)
}

// handleStart renders the welcome menu. Deep-link payloads "trial" and
// "premium" jump straight to the matching action.
func (a *App) handleStart(c tele.Context) error {
	if msg := c.Message(); msg != nil {
		switch msg.Payload {
		case "trial":
			return a.handleGetTrial(c)
		case "premium":
			return a.handleShowPlans(c)
		}
	}
	return a.sendWelcome(c)
}

func (a *App) sendWelcome(c tele.Context) error {
	markup := keyboard.InlineButtonsRows(
		[]keyboard.InlineBtn{{Text: "⚡ Get Free Trial (3 Days)", Unique: cbGetTrial}},
		[]keyboard.InlineBtn{
			{Text: "💎 Premium Plans", Unique: cbBuyPremium},
			{Text: "👤 My License", Unique: cbMyLicense},
		},
		[]keyboard.InlineBtn{{Text: "🆘 Support", Unique: cbSupport}},
	)

	photo := &tele.Photo{
		File:    tele.FromURL(welcomePhotoURL),
		Caption: welcomeCaption(senderID(c)),
	}
	return c.Send(photo, markup, tele.ModeHTML)
}

func (a *App) handleGetTrial(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	userID := senderID(c)

	lic, err := a.svc.IssueTrial(ctx, userID)
	switch {
	case errors.Is(err, licensing.ErrAlreadyLicensed):
		return tghelpers.SendText(c, alreadyLicensedText)
	case err != nil:
		logger.Error(ctx, "tg", "trial.fail",
			slog.String("err", err.Error()),
			slog.String("target_user_id", userID),
		)
		return tghelpers.SendText(c, genericErrorText)
	}
	return tghelpers.SendHTML(c, trialActivatedText(lic.Key))
}

func (a *App) handleShowPlans(c tele.Context) error {
	buttons := make([]keyboard.InlineBtn, 0, len(licensing.Plans()))
	for _, p := range licensing.Plans() {
		buttons = append(buttons, keyboard.InlineBtn{Text: planButtonLabel(p), Unique: cbPay, Data: p.Code})
	}
	markup := keyboard.InlineButtonsNPerRow(buttons, 2)
	markup.InlineKeyboard = append(markup.InlineKeyboard, keyboard.InlineButtonsRows(
		[]keyboard.InlineBtn{{Text: "⬅️ Back", Unique: cbStartOver}},
	).InlineKeyboard...)
	return tghelpers.SendHTML(c, plansText(), markup)
}

func (a *App) handlePay(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	code := callbacks.CallbackPayload(c)

	plan, err := a.svc.SelectPlan(ctx, senderID(c), code)
	switch {
	case errors.Is(err, licensing.ErrUnknownPlan):
		return c.Respond(&tele.CallbackResponse{Text: "Unknown plan"})
	case err != nil:
		logger.Error(ctx, "tg", "plan.select.fail",
			slog.String("err", err.Error()),
			slog.String("plan", code),
		)
		return tghelpers.SendText(c, genericErrorText)
	}
	_ = c.Respond()
	return tghelpers.SendHTML(c, paymentForPlanText(plan))
}

// handlePhoto relays a payment screenshot to the admin. Without a pending
// plan the user gets guidance and nothing reaches the admin.
func (a *App) handlePhoto(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	userID := senderID(c)
	msg := c.Message()
	if msg == nil || msg.Photo == nil {
		return nil
	}

	plan, ok, err := a.svc.PendingPlan(ctx, userID)
	if err != nil {
		logger.Error(ctx, "tg", "screenshot.lookup.fail",
			slog.String("err", err.Error()),
			slog.String("target_user_id", userID),
		)
		return tghelpers.SendText(c, genericErrorText)
	}
	if !ok {
		return tghelpers.SendText(c, selectPlanFirstText)
	}

	caption := msg.Caption
	if caption == "" {
		caption = "No caption provided"
	}

	uid, days := approvePayload(userID, plan.Days)
	markup := keyboard.InlineButtonsRows(
		[]keyboard.InlineBtn{{Text: "✅ " + plan.ApproveLabel, Unique: cbAdminApprove, Data: uid + payloadSep + days}},
		[]keyboard.InlineBtn{{Text: "❌ Reject", Unique: cbAdminReject, Data: userID}},
	)

	// The transport already delivers the highest-resolution variant.
	forward := &tele.Photo{
		File:    msg.Photo.File,
		Caption: adminScreenshotCaption(c.Sender().FirstName, optional(c.Sender().Username), userID, plan.Code, caption),
	}

	if err := a.notifierFor(c).SendPhoto(ctx, a.adminID, forward, markup); err != nil {
		logger.Error(ctx, "tg", "screenshot.forward.fail",
			slog.String("err", err.Error()),
			slog.String("target_user_id", userID),
			slog.String("plan", plan.Code),
		)
		return tghelpers.SendHTML(c, screenshotFailedText)
	}
	return tghelpers.SendHTML(c, screenshotSentText)
}

// handleAdminApprove mints the paid license, then notifies the buyer. The
// license is committed before any notification goes out, so a blocked buyer
// only degrades the acknowledgment.
func (a *App) handleAdminApprove(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)

	target, err := parseApprovePayload(callbacks.CallbackPayload(c))
	if err != nil {
		return c.Respond(&tele.CallbackResponse{Text: "Malformed approval action"})
	}

	lic, err := a.svc.IssuePaid(ctx, target.UserID, target.Days)
	if err != nil {
		logger.Error(ctx, "tg", "approve.fail",
			slog.String("err", err.Error()),
			slog.String("target_user_id", target.UserID),
			slog.Int("days", target.Days),
		)
		return c.Respond(&tele.CallbackResponse{Text: "Approval failed, license not issued"})
	}

	chatID, convErr := strconv.ParseInt(target.UserID, 10, 64)
	notifyErr := convErr
	if notifyErr == nil {
		notifyErr = a.notifierFor(c).SendText(ctx, chatID, approvedUserText(lic.Key, target.Days, lic.ExpiresAt))
	}
	if notifyErr != nil {
		logger.Warn(ctx, "tg", "approve.notify.fail",
			slog.String("err", notifyErr.Error()),
			slog.String("target_user_id", target.UserID),
		)
		_ = c.Respond(&tele.CallbackResponse{Text: "Approved, but failed to notify user."})
	} else {
		_ = c.Respond(&tele.CallbackResponse{Text: "User Notified!"})
	}
	return tghelpers.EditCaptionHTML(c, approvedCaption(target.UserID, target.Days))
}

func (a *App) handleAdminReject(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)

	userID, err := parseRejectPayload(callbacks.CallbackPayload(c))
	if err != nil {
		return c.Respond(&tele.CallbackResponse{Text: "Malformed rejection action"})
	}

	chatID, convErr := strconv.ParseInt(userID, 10, 64)
	notifyErr := convErr
	if notifyErr == nil {
		notifyErr = a.notifierFor(c).SendText(ctx, chatID, rejectedUserText)
	}
	if notifyErr != nil {
		logger.Warn(ctx, "tg", "reject.notify.fail",
			slog.String("err", notifyErr.Error()),
			slog.String("target_user_id", userID),
		)
		_ = c.Respond(&tele.CallbackResponse{Text: "Rejected, but failed to notify user."})
	} else {
		_ = c.Respond(&tele.CallbackResponse{Text: "User Notified of Rejection"})
	}
	return tghelpers.EditCaptionHTML(c, rejectedCaption(userID))
}

func (a *App) handleMyLicense(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	userID := senderID(c)

	lic, err := a.svc.ActiveLicense(ctx, userID)
	if err != nil {
		logger.Error(ctx, "tg", "license.lookup.fail",
			slog.String("err", err.Error()),
			slog.String("target_user_id", userID),
		)
		return tghelpers.SendText(c, genericErrorText)
	}
	if lic == nil {
		return tghelpers.SendHTML(c, noLicenseText)
	}
	return tghelpers.SendHTML(c, licenseDetailsText(*lic))
}

func (a *App) handleSupport(c tele.Context) error {
	return tghelpers.SendHTML(c, supportText)
}

// handleStartOver removes the current message and re-renders the welcome
// menu, as if a fresh /start arrived.
func (a *App) handleStartOver(c tele.Context) error {
	_ = c.Delete()
	return a.sendWelcome(c)
}

func (a *App) handleUnknownText(c tele.Context) error {
	return tghelpers.SendText(c, unknownTextHint)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

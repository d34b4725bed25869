package bot

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	"github.com/erbtraffic/licensebot/licensing"
	"github.com/erbtraffic/licensebot/storage/memory"
)

const testAdminID int64 = 999

// stubContext implements the handful of tele.Context methods handlers touch.
// Anything else panics via the nil embedded interface, which is what we want
// from a test double.
type stubContext struct {
	tele.Context

	sender   *tele.User
	message  *tele.Message
	callback *tele.Callback

	store map[string]interface{}

	sent      []interface{}
	sentOpts  [][]interface{}
	responses []*tele.CallbackResponse
	captions  []string
	deleted   bool
}

func (s *stubContext) Sender() *tele.User       { return s.sender }
func (s *stubContext) Message() *tele.Message   { return s.message }
func (s *stubContext) Callback() *tele.Callback { return s.callback }
func (s *stubContext) Update() tele.Update      { return tele.Update{} }

func (s *stubContext) Chat() *tele.Chat {
	if s.message != nil {
		return s.message.Chat
	}
	return nil
}

func (s *stubContext) Text() string {
	if s.message != nil {
		return s.message.Text
	}
	return ""
}

func (s *stubContext) Get(key string) interface{} { return s.store[key] }

func (s *stubContext) Set(key string, val interface{}) {
	if s.store == nil {
		s.store = make(map[string]interface{})
	}
	s.store[key] = val
}

func (s *stubContext) Send(what interface{}, opts ...interface{}) error {
	s.sent = append(s.sent, what)
	s.sentOpts = append(s.sentOpts, opts)
	return nil
}

func (s *stubContext) Respond(resp ...*tele.CallbackResponse) error {
	if len(resp) == 0 {
		s.responses = append(s.responses, &tele.CallbackResponse{})
		return nil
	}
	s.responses = append(s.responses, resp...)
	return nil
}

func (s *stubContext) EditCaption(caption string, _ ...interface{}) error {
	s.captions = append(s.captions, caption)
	return nil
}

func (s *stubContext) Delete() error {
	s.deleted = true
	return nil
}

func (s *stubContext) sentTexts() []string {
	var out []string
	for _, item := range s.sent {
		if text, ok := item.(string); ok {
			out = append(out, text)
		}
	}
	return out
}

func userContext(id int64) *stubContext {
	return &stubContext{
		sender: &tele.User{ID: id, FirstName: "Sam", Username: "sam99"},
	}
}

func callbackContext(id int64, unique, payload string) *stubContext {
	data := "\f" + unique
	if payload != "" {
		data += "|" + payload
	}
	c := userContext(id)
	c.callback = &tele.Callback{Data: data}
	return c
}

type notifierCall struct {
	chatID int64
	text   string
	photo  *tele.Photo
	markup *tele.ReplyMarkup
}

type recordingNotifier struct {
	texts  []notifierCall
	photos []notifierCall

	failText  error
	failPhoto error
}

func (n *recordingNotifier) SendText(_ context.Context, chatID int64, text string) error {
	if n.failText != nil {
		return n.failText
	}
	n.texts = append(n.texts, notifierCall{chatID: chatID, text: text})
	return nil
}

func (n *recordingNotifier) SendPhoto(_ context.Context, chatID int64, photo *tele.Photo, markup *tele.ReplyMarkup) error {
	if n.failPhoto != nil {
		return n.failPhoto
	}
	n.photos = append(n.photos, notifierCall{chatID: chatID, photo: photo, markup: markup})
	return nil
}

func newTestApp(t *testing.T) (*App, *memory.Store, *recordingNotifier) {
	t.Helper()
	store := memory.New()
	svc := licensing.NewService(store, store)
	notifier := &recordingNotifier{}
	cfg := &AppConfig{}
	cfg.Core.Telegram.AdminID = testAdminID
	return NewApp(cfg, svc, notifier), store, notifier
}

func registerTestUser(t *testing.T, app *App, id int64) {
	t.Helper()
	mw := registerUserMiddleware(app.svc)
	called := false
	next := func(tele.Context) error { called = true; return nil }
	require.NoError(t, mw.Use(next)(userContext(id)))
	require.True(t, called)
}

func TestStartSendsWelcomeMenu(t *testing.T) {
	app, _, _ := newTestApp(t)
	c := userContext(7)
	c.message = &tele.Message{}

	require.NoError(t, app.handleStart(c))

	require.Len(t, c.sent, 1)
	photo, ok := c.sent[0].(*tele.Photo)
	require.True(t, ok)
	assert.Contains(t, photo.Caption, "<code>7</code>")

	require.NotEmpty(t, c.sentOpts[0])
	markup, ok := c.sentOpts[0][0].(*tele.ReplyMarkup)
	require.True(t, ok)
	require.Len(t, markup.InlineKeyboard, 3)
	assert.Equal(t, cbGetTrial, markup.InlineKeyboard[0][0].Unique)
	assert.Len(t, markup.InlineKeyboard[1], 2)
}

func TestStartDeepLinkTrial(t *testing.T) {
	app, store, _ := newTestApp(t)
	registerTestUser(t, app, 7)
	c := userContext(7)
	c.message = &tele.Message{Payload: "trial"}

	require.NoError(t, app.handleStart(c))

	assert.Equal(t, 1, store.LicenseCount("7"))
	texts := c.sentTexts()
	require.Len(t, texts, 1)
	assert.Contains(t, texts[0], "Trial Activated")
}

func TestGetTrial(t *testing.T) {
	app, store, _ := newTestApp(t)
	registerTestUser(t, app, 7)

	c := userContext(7)
	require.NoError(t, app.handleGetTrial(c))

	require.Equal(t, 1, store.LicenseCount("7"))
	lic, err := app.svc.ActiveLicense(context.Background(), "7")
	require.NoError(t, err)
	require.NotNil(t, lic)
	assert.Equal(t, licensing.TierTrial, lic.Tier)

	texts := c.sentTexts()
	require.Len(t, texts, 1)
	assert.Contains(t, texts[0], lic.Key)
}

func TestGetTrialRefusedWhenLicensed(t *testing.T) {
	app, store, _ := newTestApp(t)
	registerTestUser(t, app, 7)

	_, err := app.svc.IssueTrial(context.Background(), "7")
	require.NoError(t, err)

	c := userContext(7)
	require.NoError(t, app.handleGetTrial(c))

	assert.Equal(t, 1, store.LicenseCount("7"))
	texts := c.sentTexts()
	require.Len(t, texts, 1)
	assert.Equal(t, alreadyLicensedText, texts[0])
}

func TestShowPlans(t *testing.T) {
	app, _, _ := newTestApp(t)

	c := userContext(7)
	require.NoError(t, app.handleShowPlans(c))

	texts := c.sentTexts()
	require.Len(t, texts, 1)
	for _, price := range []string{"300 TK", "600 TK", "1500 TK", "3500 TK"} {
		assert.Contains(t, texts[0], price)
	}

	markup, ok := c.sentOpts[0][0].(*tele.SendOptions)
	require.True(t, ok)
	require.NotNil(t, markup.ReplyMarkup)
	// Four plan buttons two per row, plus the back row.
	require.Len(t, markup.ReplyMarkup.InlineKeyboard, 3)
	assert.Equal(t, cbPay, markup.ReplyMarkup.InlineKeyboard[0][0].Unique)
	assert.Equal(t, "starter", markup.ReplyMarkup.InlineKeyboard[0][0].Data)
	assert.Equal(t, cbStartOver, markup.ReplyMarkup.InlineKeyboard[2][0].Unique)
}

func TestPayRecordsPendingPlan(t *testing.T) {
	app, _, _ := newTestApp(t)
	registerTestUser(t, app, 7)

	c := callbackContext(7, cbPay, "30d")
	require.NoError(t, app.handlePay(c))

	plan, ok, err := app.svc.PendingPlan(context.Background(), "7")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "30d", plan.Code)

	texts := c.sentTexts()
	require.Len(t, texts, 1)
	assert.Contains(t, texts[0], "600 TK")
	assert.Contains(t, texts[0], "30 Days")
}

func TestPayUnknownPlan(t *testing.T) {
	app, _, _ := newTestApp(t)
	registerTestUser(t, app, 7)

	c := callbackContext(7, cbPay, "gold")
	require.NoError(t, app.handlePay(c))

	require.Len(t, c.responses, 1)
	assert.Equal(t, "Unknown plan", c.responses[0].Text)
	assert.Empty(t, c.sentTexts())

	_, ok, err := app.svc.PendingPlan(context.Background(), "7")
	require.NoError(t, err)
	assert.False(t, ok)
}

func photoMessage(caption string) *tele.Message {
	return &tele.Message{
		Photo:   &tele.Photo{File: tele.File{FileID: "photo-1"}},
		Caption: caption,
	}
}

func TestPhotoWithoutPlanSelection(t *testing.T) {
	app, _, notifier := newTestApp(t)
	registerTestUser(t, app, 7)

	c := userContext(7)
	c.message = photoMessage("paid!")
	require.NoError(t, app.handlePhoto(c))

	assert.Empty(t, notifier.photos)
	texts := c.sentTexts()
	require.Len(t, texts, 1)
	assert.Equal(t, selectPlanFirstText, texts[0])
}

func TestPhotoForwardsToAdmin(t *testing.T) {
	app, _, notifier := newTestApp(t)
	registerTestUser(t, app, 7)
	_, err := app.svc.SelectPlan(context.Background(), "7", "30d")
	require.NoError(t, err)

	c := userContext(7)
	c.message = photoMessage("sent via bKash")
	require.NoError(t, app.handlePhoto(c))

	require.Len(t, notifier.photos, 1)
	call := notifier.photos[0]
	assert.Equal(t, testAdminID, call.chatID)
	assert.Equal(t, "photo-1", call.photo.FileID)
	for _, want := range []string{"Sam", "@sam99", "<code>7</code>", "30D", "sent via bKash"} {
		assert.Contains(t, call.photo.Caption, want)
	}

	require.NotNil(t, call.markup)
	require.Len(t, call.markup.InlineKeyboard, 2)
	approve := call.markup.InlineKeyboard[0][0]
	assert.Equal(t, cbAdminApprove, approve.Unique)
	assert.Equal(t, "7|30", approve.Data)
	reject := call.markup.InlineKeyboard[1][0]
	assert.Equal(t, cbAdminReject, reject.Unique)
	assert.Equal(t, "7", reject.Data)

	texts := c.sentTexts()
	require.Len(t, texts, 1)
	assert.Equal(t, screenshotSentText, texts[0])
}

func TestPhotoDefaultCaption(t *testing.T) {
	app, _, notifier := newTestApp(t)
	registerTestUser(t, app, 7)
	_, err := app.svc.SelectPlan(context.Background(), "7", "starter")
	require.NoError(t, err)

	c := userContext(7)
	c.message = photoMessage("")
	require.NoError(t, app.handlePhoto(c))

	require.Len(t, notifier.photos, 1)
	assert.Contains(t, notifier.photos[0].photo.Caption, "No caption provided")
}

func TestPhotoEncodesPermanentPlan(t *testing.T) {
	app, _, notifier := newTestApp(t)
	registerTestUser(t, app, 7)
	_, err := app.svc.SelectPlan(context.Background(), "7", "perm")
	require.NoError(t, err)

	c := userContext(7)
	c.message = photoMessage("TXN999")
	require.NoError(t, app.handlePhoto(c))

	require.Len(t, notifier.photos, 1)
	approve := notifier.photos[0].markup.InlineKeyboard[0][0]
	assert.Equal(t, "7|3650", approve.Data)
	assert.Contains(t, approve.Text, "Approve Permanent")
}

func TestPhotoForwardFailure(t *testing.T) {
	app, _, notifier := newTestApp(t)
	registerTestUser(t, app, 7)
	_, err := app.svc.SelectPlan(context.Background(), "7", "30d")
	require.NoError(t, err)
	notifier.failPhoto = errors.New("blocked")

	c := userContext(7)
	c.message = photoMessage("paid")
	require.NoError(t, app.handlePhoto(c))

	texts := c.sentTexts()
	require.Len(t, texts, 1)
	assert.Equal(t, screenshotFailedText, texts[0])
}

func TestPhotoRepeatedScreenshotsRenotify(t *testing.T) {
	app, _, notifier := newTestApp(t)
	registerTestUser(t, app, 7)
	_, err := app.svc.SelectPlan(context.Background(), "7", "6m")
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		c := userContext(7)
		c.message = photoMessage("retry")
		require.NoError(t, app.handlePhoto(c))
	}
	assert.Len(t, notifier.photos, 2)
}

func TestAdminApprove(t *testing.T) {
	app, store, notifier := newTestApp(t)
	registerTestUser(t, app, 7)

	c := callbackContext(testAdminID, cbAdminApprove, "7|30")
	require.NoError(t, app.handleAdminApprove(c))

	require.Equal(t, 1, store.LicenseCount("7"))
	lic, err := app.svc.ActiveLicense(context.Background(), "7")
	require.NoError(t, err)
	require.NotNil(t, lic)
	assert.Equal(t, licensing.TierPremium, lic.Tier)
	assert.True(t, strings.HasPrefix(lic.Key, "ERB-PAID-"))

	require.Len(t, notifier.texts, 1)
	assert.Equal(t, int64(7), notifier.texts[0].chatID)
	assert.Contains(t, notifier.texts[0].text, lic.Key)
	assert.Contains(t, notifier.texts[0].text, lic.ExpiresAt.Format(expiryDateLayout))

	require.Len(t, c.responses, 1)
	assert.Equal(t, "User Notified!", c.responses[0].Text)
	require.Len(t, c.captions, 1)
	assert.Contains(t, c.captions[0], "Approved. User ID: 7 for 30 days.")
}

func TestAdminApprovePermanent(t *testing.T) {
	app, _, notifier := newTestApp(t)
	registerTestUser(t, app, 7)

	c := callbackContext(testAdminID, cbAdminApprove, "7|3650")
	require.NoError(t, app.handleAdminApprove(c))

	lic, err := app.svc.ActiveLicense(context.Background(), "7")
	require.NoError(t, err)
	require.NotNil(t, lic)
	assert.Equal(t, licensing.TierPermanent, lic.Tier)

	require.Len(t, notifier.texts, 1)
	assert.Contains(t, notifier.texts[0].text, "Never")
}

func TestAdminApproveNotifyFailureStillEditsCaption(t *testing.T) {
	app, store, notifier := newTestApp(t)
	registerTestUser(t, app, 7)
	notifier.failText = errors.New("bot was blocked by the user")

	c := callbackContext(testAdminID, cbAdminApprove, "7|30")
	require.NoError(t, app.handleAdminApprove(c))

	// The license exists regardless of the delivery failure.
	assert.Equal(t, 1, store.LicenseCount("7"))
	require.Len(t, c.responses, 1)
	assert.Equal(t, "Approved, but failed to notify user.", c.responses[0].Text)
	require.Len(t, c.captions, 1)
	assert.Contains(t, c.captions[0], "Approved")
}

func TestAdminApproveMalformedPayload(t *testing.T) {
	app, store, _ := newTestApp(t)

	for _, payload := range []string{"", "7", "7|many", "7|0"} {
		c := callbackContext(testAdminID, cbAdminApprove, payload)
		require.NoError(t, app.handleAdminApprove(c))
		require.Len(t, c.responses, 1)
		assert.Equal(t, "Malformed approval action", c.responses[0].Text)
	}
	assert.Equal(t, 0, store.LicenseCount("7"))
}

func TestAdminReject(t *testing.T) {
	app, store, notifier := newTestApp(t)
	registerTestUser(t, app, 7)

	c := callbackContext(testAdminID, cbAdminReject, "7")
	require.NoError(t, app.handleAdminReject(c))

	assert.Equal(t, 0, store.LicenseCount("7"))
	require.Len(t, notifier.texts, 1)
	assert.Equal(t, int64(7), notifier.texts[0].chatID)
	assert.Equal(t, rejectedUserText, notifier.texts[0].text)
	require.Len(t, c.captions, 1)
	assert.Contains(t, c.captions[0], "Rejected User ID: 7")
}

func TestAdminCallbacksRejectNonAdmin(t *testing.T) {
	app, store, notifier := newTestApp(t)
	reg := app.buildRegistry()

	for _, key := range []string{cbAdminApprove, cbAdminReject} {
		handler, ok := reg.GetCallback(key)
		require.True(t, ok)

		c := callbackContext(7, key, "7|30")
		require.NoError(t, handler(c))
		require.Len(t, c.responses, 1)
		assert.Equal(t, "Not allowed", c.responses[0].Text)
	}
	assert.Equal(t, 0, store.LicenseCount("7"))
	assert.Empty(t, notifier.texts)
}

func TestMyLicenseNone(t *testing.T) {
	app, _, _ := newTestApp(t)
	registerTestUser(t, app, 7)

	c := userContext(7)
	require.NoError(t, app.handleMyLicense(c))

	texts := c.sentTexts()
	require.Len(t, texts, 1)
	assert.Equal(t, noLicenseText, texts[0])
}

func TestMyLicenseDeterministicUnderMultiple(t *testing.T) {
	app, _, _ := newTestApp(t)
	registerTestUser(t, app, 7)

	first, err := app.svc.IssueTrial(context.Background(), "7")
	require.NoError(t, err)
	_, err = app.svc.IssuePaid(context.Background(), "7", 30)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		c := userContext(7)
		require.NoError(t, app.handleMyLicense(c))
		texts := c.sentTexts()
		require.Len(t, texts, 1)
		assert.Contains(t, texts[0], first.Key)
	}
}

func TestStartOver(t *testing.T) {
	app, _, _ := newTestApp(t)

	c := callbackContext(7, cbStartOver, "")
	require.NoError(t, app.handleStartOver(c))

	assert.True(t, c.deleted)
	require.Len(t, c.sent, 1)
	_, ok := c.sent[0].(*tele.Photo)
	assert.True(t, ok)
}

func TestUnknownText(t *testing.T) {
	app, _, _ := newTestApp(t)

	c := userContext(7)
	c.message = &tele.Message{Text: "hello?"}
	require.NoError(t, app.handleUnknownText(c))

	texts := c.sentTexts()
	require.Len(t, texts, 1)
	assert.Equal(t, unknownTextHint, texts[0])
}

func TestRegisterUserMiddleware(t *testing.T) {
	app, _, _ := newTestApp(t)
	registerTestUser(t, app, 7)

	u, err := app.svc.GetUser(context.Background(), "7")
	require.NoError(t, err)
	assert.Equal(t, "Sam", u.DisplayName)
	require.NotNil(t, u.Handle)
	assert.Equal(t, "sam99", *u.Handle)
	assert.Equal(t, licensing.StatusActive, u.Status)
}

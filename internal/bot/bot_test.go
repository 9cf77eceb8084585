package bot

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tg "github.com/bekksaar/intakebot/core/telegram"
	"github.com/bekksaar/intakebot/core/telegram/state"
	"github.com/bekksaar/intakebot/internal/i18n"
	"github.com/bekksaar/intakebot/internal/intake"

	tele "gopkg.in/telebot.v4"
)

type sentMessage struct {
	text string
	opts *tele.SendOptions
}

// fakeContext records outbound calls. Methods it does not override panic.
type fakeContext struct {
	tele.Context
	user  *tele.User
	msg   *tele.Message
	cb    *tele.Callback
	store map[string]interface{}
	sent  []sentMessage
	edits []*tele.ReplyMarkup
}

func newFakeContext(userID int64) *fakeContext {
	return &fakeContext{user: &tele.User{ID: userID}, store: map[string]interface{}{}}
}

func (f *fakeContext) Sender() *tele.User            { return f.user }
func (f *fakeContext) Chat() *tele.Chat              { return &tele.Chat{ID: f.user.ID} }
func (f *fakeContext) Message() *tele.Message        { return f.msg }
func (f *fakeContext) Callback() *tele.Callback      { return f.cb }
func (f *fakeContext) Get(key string) interface{}    { return f.store[key] }
func (f *fakeContext) Set(key string, v interface{}) { f.store[key] = v }

func (f *fakeContext) Update() tele.Update {
	return tele.Update{ID: 1, Message: f.msg, Callback: f.cb}
}

func (f *fakeContext) Text() string {
	if f.msg == nil {
		return ""
	}
	return f.msg.Text
}

func (f *fakeContext) Send(what interface{}, opts ...interface{}) error {
	m := sentMessage{text: what.(string)}
	for _, o := range opts {
		if so, ok := o.(*tele.SendOptions); ok {
			m.opts = so
		}
	}
	f.sent = append(f.sent, m)
	return nil
}

func (f *fakeContext) Edit(what interface{}, _ ...interface{}) error {
	f.edits = append(f.edits, what.(*tele.ReplyMarkup))
	return nil
}

func (f *fakeContext) text(s string) *fakeContext {
	f.msg = &tele.Message{Text: s, Sender: f.user}
	f.cb = nil
	return f
}

func (f *fakeContext) contact(phone string) *fakeContext {
	f.msg = &tele.Message{Sender: f.user, Contact: &tele.Contact{PhoneNumber: phone}}
	f.cb = nil
	return f
}

func (f *fakeContext) tap(unique, data string) *fakeContext {
	f.msg = nil
	f.cb = &tele.Callback{Unique: unique, Data: data, Sender: f.user, Message: &tele.Message{ID: 10}}
	return f
}

func (f *fakeContext) reset() {
	f.sent = nil
	f.edits = nil
	f.store = map[string]interface{}{}
}

type captureSubmitter struct {
	mu      sync.Mutex
	records []intake.Record
}

func (s *captureSubmitter) Submit(_ context.Context, rec intake.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return nil
}

func newShell(t *testing.T) (*Shell, *captureSubmitter, *tg.Registry) {
	t.Helper()
	catalog, err := i18n.Load()
	require.NoError(t, err)
	sub := &captureSubmitter{}
	eng, err := intake.NewEngine(state.NewMemoryStore[intake.Record](), catalog, sub)
	require.NoError(t, err)
	shell := New(eng, func(context.Context) (string, error) { return "report", nil })
	reg := tg.NewRegistry()
	require.NoError(t, shell.Register(reg))
	return shell, sub, reg
}

func callback(t *testing.T, reg *tg.Registry, c *fakeContext) {
	t.Helper()
	h, ok := reg.GetCallback(c.cb.Unique)
	require.True(t, ok, "callback %s", c.cb.Unique)
	require.NoError(t, h(c))
}

func command(t *testing.T, reg *tg.Registry, name string, c *fakeContext) {
	t.Helper()
	_, cmd, ok := reg.LookupCommand(name)
	require.True(t, ok)
	require.NoError(t, cmd.Handler(c))
}

func TestRegister(t *testing.T) {
	_, _, reg := newShell(t)

	visible := reg.ListCommands(true)
	require.Len(t, visible, 2)
	assert.Equal(t, "/cancel", visible[0].Text)
	assert.Equal(t, "/start", visible[1].Text)

	_, stats, ok := reg.LookupCommand("/stats")
	require.True(t, ok)
	assert.True(t, stats.AdminOnly)
	assert.True(t, stats.Hidden)

	assert.Equal(t, []string{"lang", "project", "review", "svc", "svc_done"}, reg.ListCallbacks())
}

func TestRegisterWithoutStats(t *testing.T) {
	catalog, err := i18n.Load()
	require.NoError(t, err)
	eng, err := intake.NewEngine(state.NewMemoryStore[intake.Record](), catalog, &captureSubmitter{})
	require.NoError(t, err)
	reg := tg.NewRegistry()
	require.NoError(t, New(eng, nil).Register(reg))
	_, _, ok := reg.LookupCommand("/stats")
	assert.False(t, ok)
}

func TestConversationThroughShell(t *testing.T) {
	shell, sub, reg := newShell(t)
	c := newFakeContext(7)

	command(t, reg, "/start", c.text("/start"))
	require.Len(t, c.sent, 1)
	assert.True(t, shell.InProgress(7))
	kb := c.sent[0].opts.ReplyMarkup.InlineKeyboard
	require.Len(t, kb, 1)
	require.Len(t, kb[0], 3)
	assert.Equal(t, "lang", kb[0][0].Unique)
	assert.Equal(t, "en", kb[0][0].Data)

	c.reset()
	callback(t, reg, c.tap("lang", "en"))
	require.Len(t, c.sent, 1)
	assert.Equal(t, "Please enter your *First Name*:", c.sent[0].text)
	assert.Equal(t, tele.ModeMarkdown, c.sent[0].opts.ParseMode)

	for _, s := range []string{"Ann", "-"} {
		require.NoError(t, shell.ManagerHandler(c.text(s)))
	}
	c.reset()
	require.NoError(t, shell.ManagerHandler(c.text("ann@example.com")))
	require.Len(t, c.sent, 1)
	markup := c.sent[0].opts.ReplyMarkup
	require.NotNil(t, markup)
	assert.True(t, markup.OneTimeKeyboard)
	assert.True(t, markup.ResizeKeyboard)
	require.Len(t, markup.ReplyKeyboard, 1)
	assert.True(t, markup.ReplyKeyboard[0][0].Contact)
	assert.Equal(t, "Share contact", markup.ReplyKeyboard[0][0].Text)

	c.reset()
	require.NoError(t, shell.ManagerHandler(c.contact("+15551234567")))
	require.Len(t, c.sent, 1)
	kb = c.sent[0].opts.ReplyMarkup.InlineKeyboard
	require.Len(t, kb, len(intake.ProjectTypes))
	assert.Equal(t, "project", kb[0][0].Unique)

	c.reset()
	callback(t, reg, c.tap("project", "Commercial"))
	require.Len(t, c.sent, 1)

	c.reset()
	callback(t, reg, c.tap("svc", "4"))
	assert.Empty(t, c.sent)
	require.Len(t, c.edits, 1)
	assert.Equal(t, "✅ "+intake.Services[4], c.edits[0].InlineKeyboard[4][0].Text)

	c.reset()
	callback(t, reg, c.tap("svc", "oops"))
	assert.Empty(t, c.sent)
	assert.Empty(t, c.edits)

	callback(t, reg, c.tap("svc_done", ""))
	require.NoError(t, shell.ManagerHandler(c.text("call after 6pm")))

	c.reset()
	callback(t, reg, c.tap("review", "ok"))
	require.Len(t, c.sent, 2)
	assert.Equal(t, "Thank you! We’ll contact you soon.", c.sent[0].text)
	assert.False(t, shell.InProgress(7))

	require.Len(t, sub.records, 1)
	rec := sub.records[0]
	assert.Equal(t, "+15551234567", rec.Phone)
	assert.Equal(t, "🏭 Commercial", rec.ProjectType)
	assert.Equal(t, []string{intake.Services[4]}, rec.Services)
}

func TestCancelCommand(t *testing.T) {
	shell, _, reg := newShell(t)
	c := newFakeContext(8)

	command(t, reg, "/cancel", c.text("/cancel"))
	assert.Empty(t, c.sent, "no flow, nothing to cancel")

	command(t, reg, "/start", c.text("/start"))
	c.reset()
	command(t, reg, "/cancel", c.text("/cancel"))
	require.Len(t, c.sent, 1)
	assert.Equal(t, "Cancelled.", c.sent[0].text)
	assert.False(t, shell.InProgress(8))
}

func TestReviewUnknownPayloadIgnored(t *testing.T) {
	_, _, reg := newShell(t)
	c := newFakeContext(9)
	command(t, reg, "/start", c.text("/start"))
	c.reset()
	callback(t, reg, c.tap("review", "maybe"))
	assert.Empty(t, c.sent)
}

func TestStatsCommand(t *testing.T) {
	_, _, reg := newShell(t)
	c := newFakeContext(1)
	command(t, reg, "/stats", c.text("/stats"))
	require.Len(t, c.sent, 1)
	assert.True(t, strings.HasPrefix(c.sent[0].text, "```\nreport"))
}

func TestBuildMarkupEmpty(t *testing.T) {
	assert.Nil(t, buildMarkup(nil))
	assert.Nil(t, buildMarkup(&intake.Layout{}))
}

func TestUnregisteredCommandIsNotAnAnswer(t *testing.T) {
	shell, _, reg := newShell(t)
	c := newFakeContext(11)
	command(t, reg, "/start", c.text("/start"))
	callback(t, reg, c.tap("lang", "en"))

	c.reset()
	for _, s := range []string{"/help", " /settings"} {
		require.NoError(t, shell.ManagerHandler(c.text(s)))
	}
	assert.Empty(t, c.sent)

	sess := mustCurrent(t, shell, 11)
	assert.Equal(t, intake.StateAwaitingFirstName, sess.State)
	assert.Empty(t, sess.Data.FirstName)

	require.NoError(t, shell.ManagerHandler(c.text("Ann")))
	require.Len(t, c.sent, 1)
	assert.Equal(t, "Ann", mustCurrent(t, shell, 11).Data.FirstName)
}

func TestTypedPhoneRemovesContactKeyboard(t *testing.T) {
	shell, _, reg := newShell(t)
	c := newFakeContext(12)
	command(t, reg, "/start", c.text("/start"))
	callback(t, reg, c.tap("lang", "en"))
	for _, s := range []string{"Ann", "-", "ann@example.com"} {
		require.NoError(t, shell.ManagerHandler(c.text(s)))
	}

	c.reset()
	require.NoError(t, shell.ManagerHandler(c.text("+1 555 123 4567")))
	require.Len(t, c.sent, 2)
	assert.Equal(t, "📱 Phone saved.", c.sent[0].text)
	require.NotNil(t, c.sent[0].opts.ReplyMarkup)
	assert.True(t, c.sent[0].opts.ReplyMarkup.RemoveKeyboard)
	assert.Len(t, c.sent[1].opts.ReplyMarkup.InlineKeyboard, len(intake.ProjectTypes))
}

func mustCurrent(t *testing.T, shell *Shell, userID int64) intake.Session {
	t.Helper()
	eng, ok := shell.engine.(*intake.Engine)
	require.True(t, ok)
	sess, err := eng.Current(context.Background(), userID)
	require.NoError(t, err)
	return sess
}

package intake

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bekksaar/intakebot/core/telegram/state"
	"github.com/bekksaar/intakebot/internal/i18n"
)

const user int64 = 42

type recordingSubmitter struct {
	mu      sync.Mutex
	records []Record
	err     error
}

func (s *recordingSubmitter) Submit(_ context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return s.err
}

type countingObserver struct {
	started, completed, cancelled int
	entered                       []State
}

func (o *countingObserver) FlowStarted()          { o.started++ }
func (o *countingObserver) StateEntered(st State) { o.entered = append(o.entered, st) }
func (o *countingObserver) FlowCompleted()        { o.completed++ }
func (o *countingObserver) FlowCancelled()        { o.cancelled++ }

func newTestEngine(t *testing.T, sub Submitter, opts ...EngineOption) (*Engine, Store) {
	t.Helper()
	catalog, err := i18n.Load()
	require.NoError(t, err)
	store := state.NewMemoryStore[Record]()
	eng, err := NewEngine(store, catalog, sub, opts...)
	require.NoError(t, err)
	return eng, store
}

func handle(t *testing.T, eng *Engine, ev Event) (State, Reply) {
	t.Helper()
	st, r, err := eng.Handle(context.Background(), user, ev)
	require.NoError(t, err)
	return st, r
}

func current(t *testing.T, eng *Engine) Session {
	t.Helper()
	sess, err := eng.Current(context.Background(), user)
	require.NoError(t, err)
	return sess
}

// driveToReview walks a flow up to the summary with the given answers.
func driveToReview(t *testing.T, eng *Engine) {
	t.Helper()
	_, err := eng.Start(context.Background(), user)
	require.NoError(t, err)
	steps := []Event{
		LanguageChosen{Locale: i18n.English},
		TextInput{Text: "Ann"},
		TextInput{Text: "Lee"},
		TextInput{Text: "ann@example.com"},
		TextInput{Text: "+1 (555) 123-4567"},
		ProjectChosen{Key: "House"},
		OptionToggled{Index: 1},
		OptionsDone{},
		TextInput{Text: "Big kitchen"},
	}
	for _, ev := range steps {
		handle(t, eng, ev)
	}
	require.Equal(t, StateReviewingSummary, current(t, eng).State)
}

func TestFullFlowRussian(t *testing.T) {
	sub := &recordingSubmitter{}
	obs := &countingObserver{}
	eng, _ := newTestEngine(t, sub, WithObserver(obs))

	r, err := eng.Start(context.Background(), user)
	require.NoError(t, err)
	require.Len(t, r.Messages, 1)
	require.NotNil(t, r.Messages[0].Layout)
	require.Len(t, r.Messages[0].Layout.Rows, 1)
	assert.Len(t, r.Messages[0].Layout.Rows[0], 3)
	assert.Equal(t, StateAwaitingLanguage, current(t, eng).State)
	assert.Equal(t, i18n.English, current(t, eng).Data.Locale)

	st, r := handle(t, eng, LanguageChosen{Locale: i18n.Russian})
	assert.Equal(t, StateAwaitingFirstName, st)
	assert.Equal(t, "Введите *Имя*:", r.Messages[0].Text)

	st, _ = handle(t, eng, TextInput{Text: "  Иван "})
	assert.Equal(t, StateAwaitingLastName, st)

	st, _ = handle(t, eng, TextInput{Text: "-"})
	assert.Equal(t, StateAwaitingEmail, st)

	st, r = handle(t, eng, TextInput{Text: "bad"})
	assert.Equal(t, StateAwaitingEmail, st)
	assert.Contains(t, r.Messages[0].Text, "email")
	assert.Empty(t, current(t, eng).Data.Email)

	st, r = handle(t, eng, TextInput{Text: "ivan@test.ru"})
	assert.Equal(t, StateAwaitingPhone, st)
	require.NotNil(t, r.Messages[0].Layout)
	assert.Equal(t, "Поделиться контактом", r.Messages[0].Layout.ContactButton)

	st, r = handle(t, eng, TextInput{Text: "79990001122"})
	assert.Equal(t, StateAwaitingProjectType, st)
	require.Len(t, r.Messages, 2)
	assert.Equal(t, "📱 Телефон сохранён.", r.Messages[0].Text)
	assert.True(t, r.Messages[0].Layout.RemoveKeyboard)
	assert.Len(t, r.Messages[1].Layout.Rows, len(ProjectTypes))

	st, r = handle(t, eng, ProjectChosen{Key: "Apartment"})
	assert.Equal(t, StateSelectingServices, st)
	assert.Len(t, r.Messages[0].Layout.Rows, len(Services)+1)

	handle(t, eng, OptionToggled{Index: 0})
	st, r = handle(t, eng, OptionToggled{Index: 2})
	assert.Equal(t, StateSelectingServices, st)
	require.True(t, r.Messages[0].EditLayout)
	assert.Equal(t, "✅ "+Services[0], r.Messages[0].Layout.Rows[0][0].Label)
	assert.Equal(t, Services[1], r.Messages[0].Layout.Rows[1][0].Label)
	assert.Equal(t, "✅ "+Services[2], r.Messages[0].Layout.Rows[2][0].Label)

	st, _ = handle(t, eng, OptionsDone{})
	assert.Equal(t, StateAwaitingExtraNotes, st)

	st, r = handle(t, eng, TextInput{Text: "-"})
	assert.Equal(t, StateReviewingSummary, st)
	summary := r.Messages[0].Text
	assert.Contains(t, summary, "Иван")
	assert.Contains(t, summary, Services[0]+", "+Services[2])
	assert.Contains(t, summary, "*Доп:* —")
	assert.Len(t, r.Messages[0].Layout.Rows[0], 2)

	st, r = handle(t, eng, ReviewConfirmed{})
	assert.Equal(t, StateIdle, st)
	require.Len(t, r.Messages, 2)
	assert.Contains(t, r.Messages[0].Text, "Спасибо")

	require.Len(t, sub.records, 1)
	rec := sub.records[0]
	assert.Equal(t, "Иван", rec.FirstName)
	assert.Equal(t, "", rec.LastName)
	assert.Equal(t, "ivan@test.ru", rec.Email)
	assert.Equal(t, "79990001122", rec.Phone)
	assert.Equal(t, "🏢 Apartment", rec.ProjectType)
	assert.ElementsMatch(t, []string{Services[0], Services[2]}, rec.Services)
	assert.Equal(t, "", rec.ExtraNotes)
	assert.Equal(t, i18n.Russian, rec.Locale)

	_, err = eng.Current(context.Background(), user)
	assert.ErrorIs(t, err, state.ErrNoSession)
	assert.False(t, eng.InProgress(context.Background(), user))

	assert.Equal(t, 1, obs.started)
	assert.Equal(t, 1, obs.completed)
	assert.Equal(t, States, obs.entered)
}

func TestDeliveryFailureStillThanksUser(t *testing.T) {
	sub := &recordingSubmitter{err: errors.New("collector down")}
	eng, _ := newTestEngine(t, sub)
	driveToReview(t, eng)

	st, r := handle(t, eng, ReviewConfirmed{})
	assert.Equal(t, StateIdle, st)
	require.Len(t, r.Messages, 2)
	assert.Equal(t, "Thank you! We’ll contact you soon.", r.Messages[0].Text)
	assert.False(t, eng.InProgress(context.Background(), user))
}

func TestToggleTwiceRestoresSelection(t *testing.T) {
	eng, _ := newTestEngine(t, &recordingSubmitter{})
	driveToReview(t, eng)
	handle(t, eng, ReviewEditRequested{})
	for _, ev := range []Event{
		TextInput{Text: "Ann"}, TextInput{Text: "Lee"}, TextInput{Text: "ann@example.com"},
		ContactShared{Phone: "+44 20 7946 0958"}, ProjectChosen{Key: "Other"},
		OptionToggled{Index: 3},
	} {
		handle(t, eng, ev)
	}
	before := append([]string(nil), current(t, eng).Data.Services...)

	handle(t, eng, OptionToggled{Index: 5})
	assert.Contains(t, current(t, eng).Data.Services, Services[5])
	handle(t, eng, OptionToggled{Index: 5})
	assert.Equal(t, before, current(t, eng).Data.Services)
}

func TestEditLoopKeepsRecordUntilOverwritten(t *testing.T) {
	sub := &recordingSubmitter{}
	eng, _ := newTestEngine(t, sub)
	driveToReview(t, eng)
	before := current(t, eng).Data

	st, r := handle(t, eng, ReviewEditRequested{})
	assert.Equal(t, StateAwaitingFirstName, st)
	assert.Equal(t, "Please enter your *First Name*:", r.Messages[0].Text)
	assert.Equal(t, before, current(t, eng).Data)

	handle(t, eng, TextInput{Text: "Bob"})
	rec := current(t, eng).Data
	assert.Equal(t, "Bob", rec.FirstName)
	assert.Equal(t, before.LastName, rec.LastName)
	assert.Equal(t, before.Email, rec.Email)
	assert.Equal(t, before.Services, rec.Services)

	for _, ev := range []Event{
		TextInput{Text: "Stone"}, TextInput{Text: "bob@example.com"}, TextInput{Text: "123456"},
		ProjectChosen{Key: "Commercial"}, OptionsDone{}, TextInput{Text: "none"}, ReviewConfirmed{},
	} {
		handle(t, eng, ev)
	}
	require.Len(t, sub.records, 1)
	assert.Equal(t, "🏭 Commercial", sub.records[0].ProjectType)
	assert.Empty(t, sub.records[0].Services)
	assert.Equal(t, "none", sub.records[0].ExtraNotes)
}

func TestCancelFromAnyState(t *testing.T) {
	prefixes := [][]Event{
		{},
		{LanguageChosen{Locale: i18n.Arabic}},
		{LanguageChosen{Locale: i18n.Arabic}, TextInput{Text: "A"}, TextInput{Text: "B"}},
		{LanguageChosen{Locale: i18n.Arabic}, TextInput{Text: "A"}, TextInput{Text: "B"},
			TextInput{Text: "a@b.co"}, TextInput{Text: "123456"}, ProjectChosen{Key: "House"}},
	}
	for _, prefix := range prefixes {
		obs := &countingObserver{}
		sub := &recordingSubmitter{}
		eng, _ := newTestEngine(t, sub, WithObserver(obs))
		_, err := eng.Start(context.Background(), user)
		require.NoError(t, err)
		for _, ev := range prefix {
			handle(t, eng, ev)
		}

		st, r := handle(t, eng, CancelRequested{})
		assert.Equal(t, StateIdle, st)
		require.Len(t, r.Messages, 1)
		_, err = eng.Current(context.Background(), user)
		assert.ErrorIs(t, err, state.ErrNoSession)
		assert.Equal(t, 1, obs.cancelled)
		assert.Empty(t, sub.records)
	}
}

func TestCancelUsesChosenLanguage(t *testing.T) {
	eng, _ := newTestEngine(t, &recordingSubmitter{})
	_, err := eng.Start(context.Background(), user)
	require.NoError(t, err)
	handle(t, eng, LanguageChosen{Locale: i18n.Russian})

	_, r := handle(t, eng, CancelRequested{})
	assert.Equal(t, "Отменено.", r.Messages[0].Text)
}

func TestUnmatchedEventsAreIgnored(t *testing.T) {
	eng, _ := newTestEngine(t, &recordingSubmitter{})

	// No active flow.
	st, r := handle(t, eng, TextInput{Text: "hello"})
	assert.Equal(t, StateIdle, st)
	assert.True(t, r.Empty())
	st, r = handle(t, eng, CancelRequested{})
	assert.Equal(t, StateIdle, st)
	assert.True(t, r.Empty())

	_, err := eng.Start(context.Background(), user)
	require.NoError(t, err)

	cases := []struct {
		setup []Event
		ev    Event
		want  State
	}{
		{nil, TextInput{Text: "en"}, StateAwaitingLanguage},
		{nil, LanguageChosen{Locale: "de"}, StateAwaitingLanguage},
		{[]Event{LanguageChosen{Locale: i18n.English}}, OptionsDone{}, StateAwaitingFirstName},
		{[]Event{TextInput{Text: "A"}, TextInput{Text: "B"}}, ContactShared{Phone: "123456"}, StateAwaitingEmail},
		{[]Event{TextInput{Text: "a@b.co"}}, ProjectChosen{Key: "House"}, StateAwaitingPhone},
		{[]Event{TextInput{Text: "123456"}}, TextInput{Text: "House"}, StateAwaitingProjectType},
		{nil, ProjectChosen{Key: "Castle"}, StateAwaitingProjectType},
		{[]Event{ProjectChosen{Key: "House"}}, TextInput{Text: "stray"}, StateSelectingServices},
		{nil, OptionToggled{Index: len(Services)}, StateSelectingServices},
		{nil, OptionToggled{Index: -1}, StateSelectingServices},
		{[]Event{OptionsDone{}}, ReviewConfirmed{}, StateAwaitingExtraNotes},
		{[]Event{TextInput{Text: "-"}}, TextInput{Text: "again"}, StateReviewingSummary},
	}
	for _, tc := range cases {
		for _, ev := range tc.setup {
			handle(t, eng, ev)
		}
		before := current(t, eng)
		st, r := handle(t, eng, tc.ev)
		assert.Equalf(t, tc.want, st, "event %s", EventName(tc.ev))
		assert.Truef(t, r.Empty(), "event %s should be ignored", EventName(tc.ev))
		after := current(t, eng)
		assert.Equal(t, before.State, after.State)
		assert.Equal(t, before.Data, after.Data)
	}
}

func TestStartOverwritesExistingFlow(t *testing.T) {
	eng, _ := newTestEngine(t, &recordingSubmitter{})
	driveToReview(t, eng)

	_, err := eng.Start(context.Background(), user)
	require.NoError(t, err)
	sess := current(t, eng)
	assert.Equal(t, StateAwaitingLanguage, sess.State)
	assert.Equal(t, Record{Locale: i18n.English}, sess.Data)
}

func TestPhoneRejectedThenContactAccepted(t *testing.T) {
	eng, _ := newTestEngine(t, &recordingSubmitter{})
	_, err := eng.Start(context.Background(), user)
	require.NoError(t, err)
	for _, ev := range []Event{
		LanguageChosen{Locale: i18n.English}, TextInput{Text: "A"}, TextInput{Text: "B"}, TextInput{Text: "a@b.co"},
	} {
		handle(t, eng, ev)
	}

	st, r := handle(t, eng, TextInput{Text: "12345"})
	assert.Equal(t, StateAwaitingPhone, st)
	assert.Equal(t, "❌ Looks wrong, try again:", r.Messages[0].Text)

	st, r = handle(t, eng, ContactShared{Phone: "+79990001122"})
	assert.Equal(t, StateAwaitingProjectType, st)
	assert.Equal(t, "+79990001122", current(t, eng).Data.Phone)
	require.Len(t, r.Messages, 1)
	assert.Len(t, r.Messages[0].Layout.Rows, len(ProjectTypes))
}

func TestLanguagePayloadIsNormalized(t *testing.T) {
	for _, raw := range []string{"EN", " en ", "En"} {
		t.Run(raw, func(t *testing.T) {
			eng, _ := newTestEngine(t, &recordingSubmitter{})
			_, err := eng.Start(context.Background(), user)
			require.NoError(t, err)

			var st State
			var r Reply
			require.NotPanics(t, func() {
				st, r = handle(t, eng, LanguageChosen{Locale: i18n.Locale(raw)})
			})
			assert.Equal(t, StateAwaitingFirstName, st)
			assert.Equal(t, i18n.English, current(t, eng).Data.Locale)
			require.Len(t, r.Messages, 1)
			assert.Equal(t, "Please enter your *First Name*:", r.Messages[0].Text)
		})
	}
}

func TestSummaryEscapesUserInput(t *testing.T) {
	eng, _ := newTestEngine(t, &recordingSubmitter{})
	_, err := eng.Start(context.Background(), user)
	require.NoError(t, err)
	for _, ev := range []Event{
		LanguageChosen{Locale: i18n.English}, TextInput{Text: "john_doe"}, TextInput{Text: "-"},
		TextInput{Text: "john_doe@mail.com"}, TextInput{Text: "123456"}, ProjectChosen{Key: "House"},
		OptionsDone{},
	} {
		handle(t, eng, ev)
	}
	_, r := handle(t, eng, TextInput{Text: "*bold*"})
	text := r.Messages[0].Text
	assert.Contains(t, text, `john\_doe`)
	assert.Contains(t, text, `john\_doe@mail.com`)
	assert.Contains(t, text, `\*bold\*`)
	assert.Contains(t, text, "*Services:* —")

	// Stored values stay unescaped.
	assert.Equal(t, "john_doe", current(t, eng).Data.FirstName)
}

func TestNewEngineRejectsIncompleteCatalog(t *testing.T) {
	catalog := i18n.New(map[i18n.Locale]map[string]string{i18n.English: {"welcome": "hi"}})
	_, err := NewEngine(state.NewMemoryStore[Record](), catalog, &recordingSubmitter{})
	require.Error(t, err)
	assert.ErrorIs(t, err, i18n.ErrMissingTranslation)
}

func TestConcurrentUsersAreIndependent(t *testing.T) {
	eng, _ := newTestEngine(t, &recordingSubmitter{})
	ctx := context.Background()
	var wg sync.WaitGroup
	for i := int64(1); i <= 20; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			_, err := eng.Start(ctx, id)
			assert.NoError(t, err)
			_, _, err = eng.Handle(ctx, id, LanguageChosen{Locale: i18n.Locales[id%3]})
			assert.NoError(t, err)
			_, _, err = eng.Handle(ctx, id, TextInput{Text: "name"})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()
	for i := int64(1); i <= 20; i++ {
		sess, err := eng.Current(ctx, i)
		require.NoError(t, err)
		assert.Equal(t, StateAwaitingLastName, sess.State)
		assert.Equal(t, i18n.Locales[i%3], sess.Data.Locale)
	}
}

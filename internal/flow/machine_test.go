package flow

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"participants-bot/internal/apperr"
	"participants-bot/internal/models"
	"participants-bot/internal/parser"
	"participants-bot/internal/participants"
	"participants-bot/internal/refdata"
	"participants-bot/internal/session"
)

const (
	user = int64(1)
	chat = int64(100)
)

type harness struct {
	t     *testing.T
	m     *Machine
	repo  participants.Repository
	store *session.MemoryStore
}

func newHarness(t *testing.T, repo participants.Repository, opts ...Option) *harness {
	t.Helper()
	if repo == nil {
		repo = participants.NewMemoryRepository()
	}
	ref := refdata.Default()
	store := session.NewMemoryStore()
	svc := participants.NewService(repo, zerolog.Nop())
	m := New(parser.NewExtractor(ref), svc, ref, store, zerolog.Nop(), opts...)
	t.Cleanup(m.Stop)
	return &harness{t: t, m: m, repo: repo, store: store}
}

func (h *harness) send(ev Event) Reply {
	h.t.Helper()
	r, err := h.m.Handle(context.Background(), ev)
	require.NoError(h.t, err)
	return r
}

func (h *harness) text(s string) Reply     { return h.send(Text(user, chat, s, 0)) }
func (h *harness) command(s string) Reply  { return h.send(Command(user, chat, s, 0)) }
func (h *harness) callback(s string) Reply { return h.send(Callback(user, chat, s)) }

func (h *harness) session() session.Session {
	h.t.Helper()
	s, err := h.store.Load(context.Background(), user, chat)
	require.NoError(h.t, err)
	return s
}

func (h *harness) add(p models.Participant) string {
	h.t.Helper()
	id, err := h.repo.Add(context.Background(), p)
	require.NoError(h.t, err)
	return id
}

func anna() models.Participant {
	return models.Participant{
		FullNameRU: "Анна Иванова",
		Gender:     models.GenderFemale,
		Size:       "S",
		Church:     "Благодать",
		Role:       models.RoleTeam,
		Department: "Worship",
	}
}

func TestRegistrationFreeText(t *testing.T) {
	h := newHarness(t, nil)

	h.command("/add")
	assert.Equal(t, session.StateCollecting, h.session().State)

	r := h.text("Анна Иванова F S церковь Благодать команда worship")
	s := h.session()
	require.Equal(t, session.StateConfirmingData, s.State)
	assert.Equal(t, anna(), s.Data)
	assert.Contains(t, r.Text, "Проверьте данные")
	assert.True(t, r.Track)

	r = h.callback(cbConfirmSave)
	assert.Contains(t, r.Text, "Участник добавлен, ID 1")
	assert.Equal(t, session.StateIdle, h.session().State)

	stored, err := h.repo.GetByID(context.Background(), "1")
	require.NoError(t, err)
	want := anna()
	want.ID = "1"
	assert.Equal(t, want, *stored)
}

func TestRegistrationFillsMissingFields(t *testing.T) {
	h := newHarness(t, nil)
	h.command("add")

	r := h.text("Иван Петров")
	s := h.session()
	require.Equal(t, session.StateFillingMissingFields, s.State)
	assert.Equal(t, models.FieldGender, s.MissingField)
	assert.Contains(t, r.Text, "«Пол»")
	require.NotEmpty(t, r.Buttons)
	assert.Equal(t, "set:Gender:M", r.Buttons[0][0].Data)

	h.callback("set:Gender:M")
	assert.Equal(t, models.FieldSize, h.session().MissingField)

	h.text("L")
	assert.Equal(t, models.FieldChurch, h.session().MissingField)

	h.text("Грейс")
	assert.Equal(t, models.FieldRole, h.session().MissingField)

	h.callback("set:Role:TEAM")
	assert.Equal(t, models.FieldDepartment, h.session().MissingField)

	h.text("кухня")
	s = h.session()
	require.Equal(t, session.StateConfirmingData, s.State)
	assert.Equal(t, models.Participant{
		FullNameRU: "Иван Петров",
		Gender:     models.GenderMale,
		Size:       "L",
		Church:     "Грейс",
		Role:       models.RoleTeam,
		Department: "Kitchen",
	}, s.Data)
}

func TestValidationKeepsState(t *testing.T) {
	h := newHarness(t, nil)
	h.command("add")
	h.text("Иван Петров")

	r := h.text("???")
	s := h.session()
	assert.Equal(t, session.StateFillingMissingFields, s.State)
	assert.Equal(t, models.FieldGender, s.MissingField)
	assert.Equal(t, "Иван Петров", s.Data.FullNameRU)
	assert.Contains(t, r.Text, "Не удалось распознать значение поля «Пол»")
	assert.Contains(t, r.Text, "Укажите поле «Пол»")
}

func TestMissingFieldAnswerKeepsEnteredName(t *testing.T) {
	h := newHarness(t, nil)
	h.command("add")
	h.text("Иван Петров")

	r := h.text("не знаю")
	s := h.session()
	assert.Equal(t, session.StateFillingMissingFields, s.State)
	assert.Equal(t, models.FieldGender, s.MissingField)
	assert.Equal(t, "Иван Петров", s.Data.FullNameRU)
	assert.Contains(t, r.Text, "Не удалось распознать значение поля «Пол»")
}

func TestMissingFieldAnswerWithSeveralFields(t *testing.T) {
	h := newHarness(t, nil)
	h.command("add")
	h.text("Иван Петров")

	h.text("Ж размер S")
	s := h.session()
	assert.Equal(t, "Иван Петров", s.Data.FullNameRU)
	assert.Equal(t, models.GenderFemale, s.Data.Gender)
	assert.Equal(t, "S", s.Data.Size)
	assert.Equal(t, models.FieldChurch, s.MissingField)
}

func TestDuplicateReplace(t *testing.T) {
	h := newHarness(t, nil)
	id := h.add(anna())

	h.command("add")
	r := h.text("Анна Иванова F L церковь Благодать кандидат")
	s := h.session()
	require.Equal(t, session.StateConfirmingDuplicate, s.State)
	require.NotNil(t, s.Duplicate)
	assert.Equal(t, id, s.Duplicate.ID)
	assert.Contains(t, r.Text, "уже есть")

	h.callback(cbDupReplace)
	s = h.session()
	require.Equal(t, session.StateConfirmingData, s.State)
	assert.Equal(t, id, s.RecordID)
	assert.Equal(t, models.RoleCandidate, s.Data.Role)
	assert.Empty(t, s.Data.Department)

	r = h.callback(cbConfirmSave)
	assert.Contains(t, r.Text, "обновлена")
	assert.Contains(t, r.Text, "Департамент: Worship → —")

	all, err := h.repo.GetAll(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "L", all[0].Size)
	assert.Equal(t, models.RoleCandidate, all[0].Role)
	assert.Empty(t, all[0].Department)
}

func TestDuplicateAddAsNew(t *testing.T) {
	h := newHarness(t, nil)
	h.add(anna())

	h.command("add")
	h.text("Анна Иванова F S церковь Благодать команда worship")
	require.Equal(t, session.StateConfirmingDuplicate, h.session().State)

	h.callback(cbDupNew)
	s := h.session()
	require.Equal(t, session.StateConfirmingData, s.State)
	assert.True(t, s.AllowDuplicate)

	h.callback(cbConfirmSave)
	all, err := h.repo.GetAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestDuplicateFoundOnSave(t *testing.T) {
	h := newHarness(t, nil)

	h.command("add")
	h.text("Анна Иванова F S церковь Благодать команда worship")
	require.Equal(t, session.StateConfirmingData, h.session().State)

	// another coordinator stores the same name meanwhile
	h.add(anna())

	h.callback(cbConfirmSave)
	s := h.session()
	assert.Equal(t, session.StateConfirmingDuplicate, s.State)
	assert.Equal(t, "Анна Иванова", s.Data.FullNameRU)

	h.callback(cbDupCancel)
	assert.Equal(t, session.StateIdle, h.session().State)
}

func TestStaleButton(t *testing.T) {
	h := newHarness(t, nil)

	r := h.callback(cbConfirmSave)
	assert.Equal(t, msgStale, r.Notice)
	assert.Empty(t, r.Text)
	assert.Equal(t, session.StateIdle, h.session().State)

	h.command("add")
	r = h.callback(cbDupNew)
	assert.Equal(t, msgStale, r.Notice)
	assert.Equal(t, session.StateCollecting, h.session().State)
}

func TestCorrectionOnConfirmation(t *testing.T) {
	h := newHarness(t, nil)
	h.command("add")
	h.text("Анна Иванова F S церковь Благодать команда worship")

	h.text("поменяй размер на XL")
	s := h.session()
	assert.Equal(t, session.StateConfirmingData, s.State)
	assert.Equal(t, "XL", s.Data.Size)
	assert.Equal(t, "Worship", s.Data.Department)

	h.text("кандидат")
	s = h.session()
	assert.Equal(t, models.RoleCandidate, s.Data.Role)
	assert.Empty(t, s.Data.Department)
}

func TestPendingEdit(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	h := newHarness(t, nil, WithClock(func() time.Time { return now }))
	h.command("add")
	h.text("Анна Иванова F S церковь Благодать команда worship")

	r := h.callback("field:Size")
	s := h.session()
	require.NotNil(t, s.Pending)
	assert.Equal(t, models.FieldSize, s.Pending.Field)
	assert.Contains(t, r.Text, "Введите новое значение для «Размер»")

	r = h.text("огромный")
	assert.Contains(t, r.Text, "Не удалось распознать")
	require.NotNil(t, h.session().Pending, "marker survives a bad value")

	h.text("XL")
	s = h.session()
	assert.Nil(t, s.Pending)
	assert.Equal(t, "XL", s.Data.Size)
	assert.Equal(t, session.StateConfirmingData, s.State)
}

func TestPendingEditClearsOptionalField(t *testing.T) {
	h := newHarness(t, nil)
	h.command("add")
	h.text("Анна Иванова F S церковь Благодать команда worship Хайфа")
	require.Equal(t, "Хайфа", h.session().Data.CountryAndCity)

	h.callback("field:CountryAndCity")
	h.text("-")
	s := h.session()
	assert.Empty(t, s.Data.CountryAndCity)
	assert.Equal(t, session.StateConfirmingData, s.State)
}

func TestPendingEditAfterDeadline(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	h := newHarness(t, nil, WithClock(func() time.Time { return now }))
	h.command("add")
	h.text("Анна Иванова F S церковь Благодать команда worship")
	h.callback("field:Size")

	now = now.Add(DefaultEditTimeout + time.Second)
	r := h.text("XL")

	s := h.session()
	assert.Nil(t, s.Pending)
	assert.Equal(t, "S", s.Data.Size)
	assert.Contains(t, r.Text, "истекло")
}

type notifier struct {
	mu      sync.Mutex
	replies []Reply
	done    chan struct{}
}

func (n *notifier) Notify(_ context.Context, _, _ int64, r Reply) {
	n.mu.Lock()
	n.replies = append(n.replies, r)
	n.mu.Unlock()
	close(n.done)
}

func TestEditTimerFires(t *testing.T) {
	n := &notifier{done: make(chan struct{})}
	h := newHarness(t, nil, WithEditTimeout(20*time.Millisecond), WithNotifier(n))
	h.command("add")
	h.text("Анна Иванова F S церковь Благодать команда worship")
	h.callback("field:Church")

	select {
	case <-n.done:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout notification not delivered")
	}
	n.mu.Lock()
	require.Len(t, n.replies, 1)
	assert.Contains(t, n.replies[0].Text, "«Церковь» истекло")
	n.mu.Unlock()

	s := h.session()
	assert.Nil(t, s.Pending)
	assert.Equal(t, "Благодать", s.Data.Church)
}

func TestEditTimerRescheduled(t *testing.T) {
	h := newHarness(t, nil)
	h.command("add")
	h.text("Анна Иванова F S церковь Благодать команда worship")

	h.callback("field:Size")
	first := h.session().Pending.Generation
	h.callback("field:Church")
	s := h.session()

	assert.Equal(t, models.FieldChurch, s.Pending.Field)
	assert.NotEqual(t, first, s.Pending.Generation)

	// the replaced timer's event is ignored
	r := h.send(Event{Kind: EventTimeout, UserID: user, ChatID: chat, Generation: first})
	assert.True(t, r.Empty())
	assert.NotNil(t, h.session().Pending)
}

type failingRepo struct {
	*participants.MemoryRepository
	addErr   error
	addPanic bool
}

func (f *failingRepo) Add(ctx context.Context, p models.Participant) (string, error) {
	if f.addPanic {
		panic("driver exploded")
	}
	if f.addErr != nil {
		return "", f.addErr
	}
	return f.MemoryRepository.Add(ctx, p)
}

func TestStorageFailureClearsSession(t *testing.T) {
	repo := &failingRepo{
		MemoryRepository: participants.NewMemoryRepository(),
		addErr:           apperr.Storage("append row", errors.New("quota exceeded")),
	}
	h := newHarness(t, repo)
	h.command("add")
	h.text("Анна Иванова F S церковь Благодать команда worship")

	r := h.callback(cbConfirmSave)
	assert.Equal(t, msgStorageFailure, r.Text)
	s := h.session()
	assert.Equal(t, session.StateIdle, s.State)
	assert.Empty(t, s.Data.FullNameRU)
	assert.Nil(t, s.Snapshot)
}

func TestTechnicalFailureOffersRecovery(t *testing.T) {
	repo := &failingRepo{MemoryRepository: participants.NewMemoryRepository(), addPanic: true}
	h := newHarness(t, repo)
	h.command("add")
	h.text("Анна Иванова F S церковь Благодать команда worship")

	r := h.callback(cbConfirmSave)
	s := h.session()
	require.Equal(t, session.StateRecovering, s.State)
	assert.Empty(t, s.Data.FullNameRU, "partial data cleared")
	assert.Contains(t, r.Text, "техническая ошибка")

	repo.addPanic = false
	h.callback(cbRecResume)
	s = h.session()
	require.Equal(t, session.StateConfirmingData, s.State)
	assert.Equal(t, anna(), s.Data)

	h.callback(cbConfirmSave)
	all, err := repo.GetAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestRecoveryReset(t *testing.T) {
	repo := &failingRepo{MemoryRepository: participants.NewMemoryRepository(), addPanic: true}
	h := newHarness(t, repo)
	h.command("add")
	h.text("Анна Иванова F S церковь Благодать команда worship")
	h.callback(cbConfirmSave)

	h.callback(cbRecReset)
	s := h.session()
	assert.Equal(t, session.StateCollecting, s.State)
	assert.Nil(t, s.Snapshot)
	assert.Empty(t, s.Data.FullNameRU)
}

func TestSearchAndDelete(t *testing.T) {
	h := newHarness(t, nil, WithAccess(Access{Admins: map[int64]bool{user: true}}))
	id := h.add(anna())
	h.add(models.Participant{FullNameRU: "Иван Петров", Gender: models.GenderMale, Size: "L", Church: "Грейс", Role: models.RoleCandidate})

	h.command("search")
	r := h.text("Анна Иванова")
	s := h.session()
	require.Equal(t, session.StateSelectingResult, s.State)
	require.Len(t, s.Results, 1)
	assert.Equal(t, "sel:"+id, r.Buttons[0][0].Data)

	h.callback("sel:" + id)
	s = h.session()
	require.Equal(t, session.StateChoosingAction, s.State)
	assert.Equal(t, "Анна Иванова", s.Data.FullNameRU)

	h.callback(cbActDelete)
	assert.Equal(t, session.StateExecutingAction, h.session().State)

	r = h.callback(cbDelYes)
	assert.Contains(t, r.Text, "удалена")
	assert.Equal(t, session.StateIdle, h.session().State)

	ok, err := h.repo.Exists(context.Background(), id)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSearchNothingFound(t *testing.T) {
	h := newHarness(t, nil)
	h.command("search")

	r := h.text("Зиновий")
	assert.Contains(t, r.Text, "Ничего не найдено")
	assert.Equal(t, session.StateSearching, h.session().State)
}

func TestSelectUnknownResultIsStale(t *testing.T) {
	h := newHarness(t, nil)
	h.add(anna())
	h.command("search")
	h.text("Анна Иванова")

	r := h.callback("sel:999")
	assert.Equal(t, msgStale, r.Notice)
	assert.Equal(t, session.StateSelectingResult, h.session().State)
}

func TestSelectedRecordVanished(t *testing.T) {
	h := newHarness(t, nil)
	id := h.add(anna())
	h.command("search")
	h.text("Анна Иванова")
	require.NoError(t, h.repo.Delete(context.Background(), id))

	r := h.callback("sel:" + id)
	assert.Contains(t, r.Text, "Запись не найдена")
	assert.Equal(t, session.StateSearching, h.session().State)
}

func TestEditExistingRecord(t *testing.T) {
	h := newHarness(t, nil)
	id := h.add(anna())
	h.command("search")
	h.text("Анна Иванова")
	h.callback("sel:" + id)
	h.callback(cbActEdit)

	s := h.session()
	require.Equal(t, session.StateConfirmingData, s.State)
	assert.Equal(t, id, s.RecordID)

	h.text("размер XL")
	r := h.callback(cbConfirmSave)
	assert.Contains(t, r.Text, "Размер: S → XL")

	stored, err := h.repo.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "XL", stored.Size)
}

func TestAuthorization(t *testing.T) {
	access := Access{
		Admins:       map[int64]bool{1: true},
		Coordinators: map[int64]bool{2: true},
	}
	assert.True(t, access.Allows(1, PermDelete))
	assert.True(t, access.Allows(1, PermRegister))
	assert.True(t, access.Allows(2, PermRegister))
	assert.False(t, access.Allows(2, PermDelete))
	assert.False(t, access.Allows(3, PermRegister))
	assert.True(t, access.Allows(3, PermNone))
	assert.True(t, Access{}.Allows(3, PermRegister), "empty coordinator list admits everyone")

	h := newHarness(t, nil, WithAccess(access))
	r, err := h.m.Handle(context.Background(), Command(3, chat, "add", 0))
	require.NoError(t, err)
	assert.Equal(t, msgDenied, r.Text)

	s, err := h.store.Load(context.Background(), 3, chat)
	require.NoError(t, err)
	assert.Equal(t, session.StateIdle, s.State)

	id := h.add(anna())
	for _, ev := range []Event{
		Command(2, chat, "search", 0),
		Text(2, chat, "Анна Иванова", 0),
		Callback(2, chat, "sel:"+id),
	} {
		_, err := h.m.Handle(context.Background(), ev)
		require.NoError(t, err)
	}
	r, err = h.m.Handle(context.Background(), Callback(2, chat, cbActDelete))
	require.NoError(t, err)
	assert.Equal(t, msgDenied, r.Notice)

	s, err = h.store.Load(context.Background(), 2, chat)
	require.NoError(t, err)
	assert.Equal(t, session.StateChoosingAction, s.State)
}

func TestCleanupOnFlowEnd(t *testing.T) {
	h := newHarness(t, nil)

	h.send(Command(user, chat, "add", 10))
	require.NoError(t, h.m.Track(context.Background(), user, chat, 500))
	h.send(Text(user, chat, "Иван Петров", 11))

	r := h.send(Command(user, chat, "cancel", 12))
	assert.Equal(t, msgCancelled, r.Text)
	assert.Equal(t, []int{10, 500, 11, 12}, r.Cleanup)
	assert.False(t, r.Track)
	assert.Empty(t, h.session().Cleanup)
}

func TestHistory(t *testing.T) {
	h := newHarness(t, nil)
	h.command("add")
	h.text("Иван Петров")
	h.callback("set:Gender:M")

	assert.Equal(t, []string{"/add", "text", "set:Gender:M"}, h.session().History)
}

func TestFinishedFlowDropsSession(t *testing.T) {
	h := newHarness(t, nil)

	h.command("help")
	assert.Equal(t, 0, h.store.Len(), "idle turns are not stored")

	h.command("add")
	h.text("Анна Иванова F S церковь Благодать команда worship")
	assert.Equal(t, 1, h.store.Len())

	r := h.callback(cbConfirmSave)
	assert.Contains(t, r.Text, "Участник добавлен")
	assert.Equal(t, 0, h.store.Len())

	h.command("search")
	assert.Equal(t, 1, h.store.Len())
	h.command("cancel")
	assert.Equal(t, 0, h.store.Len())
}

func TestCommands(t *testing.T) {
	h := newHarness(t, nil)

	r := h.command("help")
	assert.Contains(t, r.Text, "/add")

	r = h.command("cancel")
	assert.Equal(t, msgNothingToCancel, r.Text)

	r = h.command("frobnicate")
	assert.Equal(t, msgUnknownCommand, r.Text)

	r = h.text("привет")
	assert.Equal(t, msgIdle, r.Text)
	require.NotEmpty(t, r.Buttons)

	h.command("add")
	r = h.command("start")
	assert.Equal(t, msgWelcome, r.Text)
	assert.Equal(t, session.StateIdle, h.session().State)
}

func TestExportLink(t *testing.T) {
	access := Access{Admins: map[int64]bool{user: true}}

	h := newHarness(t, nil, WithAccess(access), WithExportURL("https://bot.example.org/export/participants.csv?token=abc"))
	r := h.command("export")
	assert.Equal(t, msgExport+"https://bot.example.org/export/participants.csv?token=abc", r.Text)

	r, err := h.m.Handle(context.Background(), Command(2, chat, "export", 0))
	require.NoError(t, err)
	assert.Equal(t, msgDenied, r.Text)

	h = newHarness(t, nil, WithAccess(access))
	assert.Equal(t, msgExportDisabled, h.command("export").Text)
}

func TestTurnsAreSerializedPerUser(t *testing.T) {
	h := newHarness(t, nil)
	h.command("add")

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.m.Handle(context.Background(), Text(user, chat, "размер L", 0))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	s := h.session()
	assert.Equal(t, "L", s.Data.Size)
	assert.Len(t, s.History, session.HistorySize)
}

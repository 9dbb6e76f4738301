package flow

import (
	"context"
	"strings"

	"participants-bot/internal/apperr"
	"participants-bot/internal/models"
	"participants-bot/internal/parser"
	"participants-bot/internal/participants"
	"participants-bot/internal/session"
)

// ---------- Collecting ----------

func (m *Machine) collect(ctx context.Context, s *session.Session, text string) (Reply, error) {
	fs, src := m.extractor.Parse(text, false)
	m.metrics.IncExtraction(string(src))
	if fs.Empty() {
		return Reply{}, apperr.Invalid("", msgNothingRecognized)
	}
	return m.absorb(ctx, s, fs)
}

// absorb applies fs and routes to the duplicate choice when the name now
// matches an existing record.
func (m *Machine) absorb(ctx context.Context, s *session.Session, fs models.FieldSet) (Reply, error) {
	prevName := s.Data.FullNameRU
	*s = session.Absorb(*s, fs)

	if s.RecordID == "" && !s.AllowDuplicate && s.Data.FullNameRU != "" &&
		participants.NameKey(s.Data.FullNameRU) != participants.NameKey(prevName) {
		existing, err := m.service.CheckDuplicate(ctx, s.Data.FullNameRU)
		if err != nil {
			return Reply{}, err
		}
		if existing != nil {
			*s = session.AwaitDuplicate(*s, *existing)
		}
	}
	return m.prompt(*s), nil
}

// ---------- FillingMissingFields ----------

func (m *Machine) fillMissing(ctx context.Context, s *session.Session, text string) (Reply, error) {
	field := s.MissingField
	if v, ok := m.extractor.ParseField(field, text); ok && v != "" {
		fs := models.FieldSet{}
		fs.Set(field, v)
		return m.absorb(ctx, s, fs)
	}

	// the answer may carry several fields at once; only still-empty fields
	// are taken and the asked one must be among them
	fs, src := m.extractor.Parse(text, true)
	m.metrics.IncExtraction(string(src))
	fill := models.FieldSet{}
	for _, f := range fs.Fields() {
		if v := fs.Value(f); v != "" && s.Data.Get(f) == "" {
			fill.Set(f, v)
		}
	}
	if !fill.Has(field) {
		return Reply{}, apperr.Invalid(string(field), invalidValueText(field))
	}
	return m.absorb(ctx, s, fill)
}

// setFromButton handles set:<field>:<value>.
func (m *Machine) setFromButton(ctx context.Context, s *session.Session, data string) (Reply, error) {
	name, raw, ok := strings.Cut(data, ":")
	field := models.Field(name)
	if !ok || !field.Valid() {
		return Reply{Notice: msgStale}, nil
	}
	switch {
	case s.State == session.StateFillingMissingFields && field == s.MissingField:
	case s.Pending != nil && field == s.Pending.Field:
		return m.applyEdit(ctx, s, raw)
	default:
		return Reply{Notice: msgStale}, nil
	}

	v, ok := m.extractor.ParseField(field, raw)
	if !ok || v == "" {
		return Reply{}, apperr.Invalid(string(field), invalidValueText(field))
	}
	fs := models.FieldSet{}
	fs.Set(field, v)
	return m.absorb(ctx, s, fs)
}

// ---------- ConfirmingData ----------

func (m *Machine) correct(ctx context.Context, s *session.Session, text string) (Reply, error) {
	if s.Pending != nil {
		return m.applyEdit(ctx, s, text)
	}
	fs, src := m.extractor.Parse(text, true)
	m.metrics.IncExtraction(string(src))
	if fs.Empty() {
		return Reply{}, apperr.Invalid("", msgNothingRecognized)
	}
	return m.absorb(ctx, s, fs)
}

func (m *Machine) beginEdit(s *session.Session, name string) (Reply, error) {
	field := models.Field(name)
	if !field.Valid() {
		return Reply{Notice: msgStale}, nil
	}
	gen := m.scheduleEdit(s)
	*s = session.BeginEdit(*s, field, m.now(), m.editTimeout, gen)
	return m.prompt(*s), nil
}

// applyEdit stores the value typed for the pending field. Input after the
// deadline is rejected and the marker cleared.
func (m *Machine) applyEdit(ctx context.Context, s *session.Session, raw string) (Reply, error) {
	field := s.Pending.Field
	if s.Pending.Expired(m.now()) {
		m.timers.Cancel(s.UserID)
		m.metrics.IncEditTimeout()
		*s = session.ClearEdit(*s)
		return m.withNotice(m.prompt(*s), editExpiredText(field)), nil
	}

	v, ok := m.extractor.ParseField(field, raw)
	if !ok {
		return Reply{}, apperr.Invalid(string(field), invalidValueText(field))
	}
	m.timers.Cancel(s.UserID)
	fs := models.FieldSet{}
	if v == "" {
		fs.Clear(field)
	} else {
		fs.Set(field, v)
	}
	if field == models.FieldDepartment && v != "" && s.Data.Role != models.RoleTeam {
		fs.Set(models.FieldRole, models.RoleTeam)
	}
	return m.absorb(ctx, s, fs)
}

// timeout clears the pending edit when gen is still the live one.
func (m *Machine) timeout(s *session.Session, ev Event) Reply {
	if s.Pending == nil || s.Pending.Generation != ev.Generation {
		return Reply{}
	}
	field := s.Pending.Field
	m.metrics.IncEditTimeout()
	*s = session.ClearEdit(*s)
	return m.withNotice(m.prompt(*s), editExpiredText(field))
}

// save commits the confirmed data. A known RecordID updates that record;
// otherwise a new one is created.
func (m *Machine) save(ctx context.Context, s *session.Session) (Reply, error) {
	m.timers.Cancel(s.UserID)
	*s = session.ClearEdit(*s)
	if len(s.Data.MissingFields()) > 0 {
		*s = session.Advance(*s)
		return m.prompt(*s), nil
	}

	if s.RecordID != "" {
		fs := models.FieldSet{}
		for _, f := range models.AllFields {
			fs.Set(f, s.Data.Get(f))
		}
		// the user pressed Save on the summary
		fs.Confirm()
		updated, changes, err := m.service.Update(ctx, s.RecordID, fs)
		if err != nil {
			return Reply{}, err
		}
		*s = session.Reset(*s)
		return Reply{Text: updatedText(updated, changes), Buttons: menuButtons()}, nil
	}

	created, err := m.service.Create(ctx, s.Data, s.AllowDuplicate)
	if err != nil {
		return Reply{}, err
	}
	*s = session.Reset(*s)
	return Reply{Text: createdText(created), Buttons: menuButtons()}, nil
}

// ---------- ConfirmingDuplicate ----------

func (m *Machine) routeDuplicate(s *session.Session, err error) (Reply, error) {
	existing, ok := participants.AsDuplicate(err)
	if !ok {
		*s = session.Fail(*s, true)
		return m.prompt(*s), nil
	}
	*s = session.AwaitDuplicate(*s, existing)
	return m.prompt(*s), nil
}

func (m *Machine) addAsNew(s *session.Session) Reply {
	next := s.Clone()
	next.Duplicate = nil
	next.AllowDuplicate = true
	*s = session.Advance(next)
	return m.prompt(*s)
}

// replaceExisting merges the collected values into the existing record and
// continues with it on the confirmation screen.
func (m *Machine) replaceExisting(s *session.Session) Reply {
	if s.Duplicate == nil {
		return Reply{Notice: msgStale}
	}
	existing := *s.Duplicate
	next := s.Clone()
	next.Data = participants.Merge(existing, models.FromParticipant(s.Data))
	next.Data.ID = existing.ID
	next.RecordID = existing.ID
	next.AllowDuplicate = true
	next.Duplicate = nil
	*s = session.Advance(next)
	return m.prompt(*s)
}

func (m *Machine) withNotice(r Reply, notice string) Reply {
	if r.Text == "" {
		r.Text = notice
	} else {
		r.Text = notice + "\n\n" + r.Text
	}
	return r
}

func invalidValueText(f models.Field) string {
	return "Не удалось распознать значение поля «" + f.Label() + "». Попробуйте ещё раз."
}

func editExpiredText(f models.Field) string {
	return "⏰ Время на изменение поля «" + f.Label() + "» истекло."
}

func createdText(p models.Participant) string {
	return "✅ Участник добавлен, ID " + p.ID + "\n\n" + parser.FormatTemplate(p)
}

func updatedText(p models.Participant, changes []participants.Change) string {
	if len(changes) == 0 {
		return "Запись ID " + p.ID + " не изменилась."
	}
	var b strings.Builder
	b.WriteString("✅ Запись ID " + p.ID + " обновлена:")
	for _, c := range changes {
		b.WriteString("\n• ")
		b.WriteString(changeText(c))
	}
	return b.String()
}

// changeText renders a change with field labels.
func changeText(c participants.Change) string {
	return c.Field.Label() + ": " + dashed(c.Old) + " → " + dashed(c.New)
}

func dashed(v string) string {
	if v == "" {
		return "—"
	}
	return v
}

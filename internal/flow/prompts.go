package flow

import (
	"fmt"
	"strings"

	"participants-bot/internal/models"
	"participants-bot/internal/parser"
	"participants-bot/internal/refdata"
	"participants-bot/internal/session"
)

const (
	msgWelcome = "Привет! Я помогаю регистрировать участников.\n" +
		"Добавьте участника или найдите существующую запись."
	msgHelp = "Команды:\n" +
		"/add — добавить участника\n" +
		"/search — найти участника по имени или ID\n" +
		"/cancel — отменить текущее действие\n" +
		"/start — главное меню\n\n" +
		"Данные можно прислать одним сообщением в свободной форме, например:\n" +
		"«Анна Иванова F S церковь Благодать команда worship»,\n" +
		"или по шаблону «Имя (рус): …» построчно."
	msgIdle              = "Выберите действие в меню или отправьте /help."
	msgUnknownCommand    = "Неизвестная команда. Отправьте /help."
	msgCollect           = "Отправьте данные участника одним сообщением: в свободной форме или по шаблону."
	msgNothingRecognized = "Не удалось распознать данные. Проверьте сообщение и попробуйте ещё раз."
	msgSearch            = "Введите имя или ID участника."
	msgCancelled         = "Действие отменено."
	msgNothingToCancel   = "Нечего отменять."
	msgStale             = "Эта кнопка больше не активна."
	msgDenied            = "Доступ запрещён."
	msgExport            = "📄 Выгрузка участников в CSV:\n"
	msgExportDisabled    = "Выгрузка не настроена: не задан BASE_PUBLIC_URL."
	msgNotFound          = "❗ Запись не найдена, возможно, её уже удалили."
	msgStorageFailure    = "❌ Не удалось сохранить данные: ошибка хранилища. Введённые данные сброшены, начните заново."
	msgTechnicalFailure  = "❌ Произошла техническая ошибка. Начните заново."
	msgRecover           = "❌ Произошла техническая ошибка, текущие данные сброшены.\n" +
		"Можно восстановить последнюю сохранённую в памяти версию и продолжить."
)

func menuButtons() [][]Button {
	return [][]Button{
		row(Button{"➕ Добавить участника", cbMenuAdd}, Button{"🔍 Найти", cbMenuSearch}),
	}
}

func cancelRow() []Button {
	return row(Button{"✖️ Отмена", cbMenuCancel})
}

// prompt renders the message for the current state of s.
func (m *Machine) prompt(s session.Session) Reply {
	switch s.State {
	case session.StateCollecting:
		return Reply{
			Text:    msgCollect + "\n\n" + parser.FormatTemplate(models.Participant{}),
			Buttons: [][]Button{cancelRow()},
		}

	case session.StateFillingMissingFields:
		text := summary(s.Data) + "\n\n" + "Укажите поле «" + s.MissingField.Label() + "»:"
		return Reply{Text: text, Buttons: append(m.choices(s.MissingField), cancelRow())}

	case session.StateConfirmingData:
		if s.Pending != nil {
			f := s.Pending.Field
			text := fmt.Sprintf("Введите новое значение для «%s» (сейчас: %s).\nОтправьте «-», чтобы очистить поле.",
				f.Label(), parser.DisplayValue(f, s.Data.Get(f)))
			return Reply{Text: text, Buttons: append(m.choices(f), cancelRow())}
		}
		title := "Проверьте данные участника:"
		if s.RecordID != "" {
			title = "Редактирование записи ID " + s.RecordID + ":"
		}
		return Reply{
			Text:    title + "\n\n" + parser.FormatTemplate(s.Data) + "\n\nОтправьте исправления текстом или выберите поле.",
			Buttons: confirmButtons(),
		}

	case session.StateConfirmingDuplicate:
		var b strings.Builder
		b.WriteString("⚠️ Участник с таким именем уже есть")
		if s.Duplicate != nil {
			b.WriteString(" (ID " + s.Duplicate.ID + "):\n\n")
			b.WriteString(parser.FormatTemplate(*s.Duplicate))
		}
		b.WriteString("\n\nЧто сделать?")
		return Reply{Text: b.String(), Buttons: [][]Button{
			row(Button{"➕ Добавить как нового", cbDupNew}),
			row(Button{"♻️ Обновить существующего", cbDupReplace}),
			row(Button{"✖️ Отмена", cbDupCancel}),
		}}

	case session.StateRecovering:
		return Reply{Text: msgRecover, Buttons: [][]Button{
			row(Button{"↩️ Восстановить", cbRecResume}, Button{"🆕 Начать заново", cbRecReset}),
			cancelRow(),
		}}

	case session.StateSearching:
		return Reply{Text: msgSearch, Buttons: [][]Button{cancelRow()}}

	case session.StateSelectingResult:
		rows := make([][]Button, 0, len(s.Results)+1)
		for _, h := range s.Results {
			label := fmt.Sprintf("%s (ID %s)", h.Name, h.ID)
			if h.Confidence < 1 {
				label += fmt.Sprintf(" · %d%%", int(h.Confidence*100+0.5))
			}
			rows = append(rows, row(Button{label, nsSelect + ":" + h.ID}))
		}
		rows = append(rows, cancelRow())
		return Reply{Text: "Результаты поиска «" + s.Query + "». Выберите запись или введите новый запрос.", Buttons: rows}

	case session.StateChoosingAction:
		return Reply{
			Text: "Запись ID " + s.Selected + ":\n\n" + parser.FormatTemplate(s.Data),
			Buttons: [][]Button{
				row(Button{"✏️ Редактировать", cbActEdit}, Button{"🗑 Удалить", cbActDelete}),
				row(Button{"⬅️ Назад", cbActBack}),
			},
		}

	case session.StateExecutingAction:
		return Reply{
			Text: "Удалить запись ID " + s.Selected + " (" + s.Data.FullNameRU + ")? Это действие необратимо.",
			Buttons: [][]Button{
				row(Button{"🗑 Да, удалить", cbDelYes}, Button{"Нет", cbDelNo}),
			},
		}
	}
	return Reply{Text: msgIdle, Buttons: menuButtons()}
}

// summary lists the non-empty fields collected so far.
func summary(p models.Participant) string {
	var lines []string
	for _, f := range models.AllFields {
		if v := p.Get(f); v != "" {
			lines = append(lines, f.Label()+": "+parser.DisplayValue(f, v))
		}
	}
	if len(lines) == 0 {
		return "Пока ничего не заполнено."
	}
	return "Уже заполнено:\n" + strings.Join(lines, "\n")
}

func confirmButtons() [][]Button {
	rows := [][]Button{
		row(Button{"✅ Сохранить", cbConfirmSave}, Button{"✖️ Отмена", cbConfirmCancel}),
	}
	for i := 0; i < len(models.AllFields); i += 2 {
		r := []Button{}
		for _, f := range models.AllFields[i:min(i+2, len(models.AllFields))] {
			r = append(r, Button{"✏️ " + f.Label(), nsField + ":" + string(f)})
		}
		rows = append(rows, r)
	}
	return rows
}

// choices offers buttons for fields with a closed value set.
func (m *Machine) choices(f models.Field) [][]Button {
	set := func(v, label string) Button {
		return Button{label, nsSet + ":" + string(f) + ":" + v}
	}
	switch f {
	case models.FieldGender:
		return [][]Button{row(
			set(models.GenderMale, parser.DisplayValue(f, models.GenderMale)),
			set(models.GenderFemale, parser.DisplayValue(f, models.GenderFemale)),
		)}
	case models.FieldRole:
		return [][]Button{row(
			set(models.RoleCandidate, parser.DisplayValue(f, models.RoleCandidate)),
			set(models.RoleTeam, parser.DisplayValue(f, models.RoleTeam)),
		)}
	case models.FieldSize:
		var r []Button
		for _, size := range models.Sizes {
			r = append(r, set(size, size))
		}
		return [][]Button{r}
	case models.FieldDepartment:
		var rows [][]Button
		depts := m.ref.Canonicals(refdata.KindDepartment)
		for i := 0; i < len(depts); i += 3 {
			var r []Button
			for _, d := range depts[i:min(i+3, len(depts))] {
				r = append(r, set(d, d))
			}
			rows = append(rows, r)
		}
		return rows
	}
	return nil
}

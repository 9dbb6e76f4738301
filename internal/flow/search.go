package flow

import (
	"context"
	"strings"

	"participants-bot/internal/apperr"
	"participants-bot/internal/participants"
	"participants-bot/internal/session"
)

func (m *Machine) search(ctx context.Context, s *session.Session, text string) (Reply, error) {
	query := strings.TrimSpace(text)
	if query == "" {
		return Reply{}, apperr.Invalid("query", "Введите имя или ID участника.")
	}
	results, err := m.service.Search(ctx, query, participants.DefaultMaxResults, participants.DefaultMinConfidence)
	if err != nil {
		return Reply{}, err
	}
	if len(results) == 0 {
		*s = session.StartSearch(*s)
		return m.withNotice(m.prompt(*s), "Ничего не найдено по запросу «"+query+"»."), nil
	}

	hits := make([]session.Hit, 0, len(results))
	for _, r := range results {
		hits = append(hits, session.Hit{
			ID:         r.Participant.ID,
			Name:       r.Participant.FullNameRU,
			Confidence: r.Confidence,
		})
	}
	*s = session.ShowResults(*s, query, hits)
	return m.prompt(*s), nil
}

func (m *Machine) selectResult(ctx context.Context, s *session.Session, id string) (Reply, error) {
	known := false
	for _, h := range s.Results {
		if h.ID == id {
			known = true
			break
		}
	}
	if !known {
		return Reply{Notice: msgStale}, nil
	}
	p, err := m.service.Get(ctx, id)
	if err != nil {
		return Reply{}, err
	}
	*s = session.Select(*s, *p)
	return m.prompt(*s), nil
}

func (m *Machine) deleteSelected(ctx context.Context, s *session.Session) (Reply, error) {
	id, name := s.Selected, s.Data.FullNameRU
	if err := m.service.Delete(ctx, id); err != nil {
		return Reply{}, err
	}
	*s = session.Reset(*s)
	return Reply{Text: "🗑 Запись ID " + id + " (" + name + ") удалена.", Buttons: menuButtons()}, nil
}

package tgbot

import (
	"context"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"participants-bot/internal/flow"
)

// sender is the part of the Bot API the app writes through.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// App connects Telegram updates to the conversation machine.
type App struct {
	bot     *tgbotapi.BotAPI
	api     sender
	machine *flow.Machine
	limiter *rate.Limiter
	log     zerolog.Logger

	// process handles one update; replaced in tests
	process func(ctx context.Context, upd tgbotapi.Update)

	mu     sync.Mutex
	queues map[int64][]tgbotapi.Update
	wg     sync.WaitGroup
}

// New logs in with token. Outbound calls are limited to perSecond.
func New(token string, machine *flow.Machine, perSecond float64, log zerolog.Logger) (*App, error) {
	b, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	b.Debug = false
	a := newApp(b, machine, perSecond, log)
	a.bot = b
	log.Info().Str("bot", b.Self.UserName).Msg("telegram authorized")
	return a, nil
}

func newApp(api sender, machine *flow.Machine, perSecond float64, log zerolog.Logger) *App {
	burst := int(perSecond)
	if burst < 1 {
		burst = 1
	}
	a := &App{
		api:     api,
		machine: machine,
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
		log:     log.With().Str("component", "tgbot").Logger(),
		queues:  make(map[int64][]tgbotapi.Update),
	}
	a.process = a.handleUpdate
	return a
}

// Run polls updates until ctx is done. Updates of different users are
// handled concurrently, those of one user strictly in arrival order.
func (a *App) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := a.bot.GetUpdatesChan(u)
	defer a.wg.Wait()

	for {
		select {
		case <-ctx.Done():
			a.bot.StopReceivingUpdates()
			return nil
		case upd, ok := <-updates:
			if !ok {
				return nil
			}
			a.dispatch(ctx, upd)
		}
	}
}

// dispatch appends upd to the queue of its user and starts a worker for
// that user unless one is already draining the queue.
func (a *App) dispatch(ctx context.Context, upd tgbotapi.Update) {
	userID := updateUser(upd)

	a.mu.Lock()
	q, running := a.queues[userID]
	a.queues[userID] = append(q, upd)
	a.mu.Unlock()
	if running {
		return
	}

	a.wg.Add(1)
	go a.drain(ctx, userID)
}

func (a *App) drain(ctx context.Context, userID int64) {
	defer a.wg.Done()
	for {
		a.mu.Lock()
		q := a.queues[userID]
		if len(q) == 0 {
			delete(a.queues, userID)
			a.mu.Unlock()
			return
		}
		upd := q[0]
		a.queues[userID] = q[1:]
		a.mu.Unlock()

		a.process(ctx, upd)
	}
}

func updateUser(upd tgbotapi.Update) int64 {
	switch {
	case upd.Message != nil && upd.Message.From != nil:
		return upd.Message.From.ID
	case upd.CallbackQuery != nil && upd.CallbackQuery.From != nil:
		return upd.CallbackQuery.From.ID
	case upd.Message != nil && upd.Message.Chat != nil:
		return upd.Message.Chat.ID
	}
	return 0
}

func (a *App) handleUpdate(ctx context.Context, upd tgbotapi.Update) {
	switch {
	case upd.Message != nil:
		a.handleMessage(ctx, upd.Message)
	case upd.CallbackQuery != nil:
		a.handleCallback(ctx, upd.CallbackQuery)
	}
}

// ---------- Message handling ----------

func (a *App) handleMessage(ctx context.Context, m *tgbotapi.Message) {
	if m.From == nil || m.Chat == nil {
		return
	}
	userID, chatID := m.From.ID, m.Chat.ID

	var ev flow.Event
	switch {
	case m.IsCommand():
		ev = flow.Command(userID, chatID, m.Command(), m.MessageID)
	case strings.TrimSpace(m.Text) != "":
		ev = flow.Text(userID, chatID, m.Text, m.MessageID)
	case strings.TrimSpace(m.Caption) != "":
		ev = flow.Text(userID, chatID, m.Caption, m.MessageID)
	default:
		return
	}

	r, err := a.machine.Handle(ctx, ev)
	if err != nil {
		a.log.Error().Err(err).Int64("user_id", userID).Msg("handle message")
	}
	a.deliver(ctx, userID, chatID, r)
}

// ---------- Callback handling ----------

func (a *App) handleCallback(ctx context.Context, q *tgbotapi.CallbackQuery) {
	if q.From == nil || q.Message == nil || q.Message.Chat == nil {
		a.answer(ctx, q.ID, "")
		return
	}
	userID, chatID := q.From.ID, q.Message.Chat.ID

	r, err := a.machine.Handle(ctx, flow.Callback(userID, chatID, q.Data))
	if err != nil {
		a.log.Error().Err(err).Int64("user_id", userID).Msg("handle callback")
	}
	a.answer(ctx, q.ID, r.Notice)

	if r.Text != "" {
		// the pressed keyboard is answered; drop it so it cannot be pressed again
		edit := tgbotapi.NewEditMessageReplyMarkup(chatID, q.Message.MessageID,
			tgbotapi.InlineKeyboardMarkup{InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{}})
		a.request(ctx, edit)
	}
	a.deliver(ctx, userID, chatID, r)
}

func (a *App) answer(ctx context.Context, id, text string) {
	a.request(ctx, tgbotapi.NewCallback(id, text))
}

// ---------- Output ----------

// Notify implements flow.Notifier.
func (a *App) Notify(ctx context.Context, userID, chatID int64, r flow.Reply) {
	a.deliver(ctx, userID, chatID, r)
}

// deliver sends r.Text with its keyboard, records the sent message for
// cleanup when asked to and deletes the messages listed in r.Cleanup.
func (a *App) deliver(ctx context.Context, userID, chatID int64, r flow.Reply) {
	if r.Text != "" {
		msg := tgbotapi.NewMessage(chatID, r.Text)
		if len(r.Buttons) > 0 {
			msg.ReplyMarkup = keyboard(r.Buttons)
		}
		sent, err := a.send(ctx, msg)
		if err != nil {
			a.log.Error().Err(err).Int64("chat_id", chatID).Msg("send message")
		} else if r.Track {
			if err := a.machine.Track(ctx, userID, chatID, sent.MessageID); err != nil {
				a.log.Warn().Err(err).Msg("track message")
			}
		}
	}
	for _, id := range r.Cleanup {
		a.request(ctx, tgbotapi.NewDeleteMessage(chatID, id))
	}
}

func (a *App) send(ctx context.Context, c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return tgbotapi.Message{}, err
	}
	return a.api.Send(c)
}

func (a *App) request(ctx context.Context, c tgbotapi.Chattable) {
	if err := a.limiter.Wait(ctx); err != nil {
		return
	}
	if _, err := a.api.Request(c); err != nil {
		a.log.Debug().Err(err).Msg("telegram request")
	}
}

func keyboard(rows [][]flow.Button) tgbotapi.InlineKeyboardMarkup {
	out := make([][]tgbotapi.InlineKeyboardButton, 0, len(rows))
	for _, r := range rows {
		var buttons []tgbotapi.InlineKeyboardButton
		for _, b := range r {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(b.Text, b.Data))
		}
		out = append(out, tgbotapi.NewInlineKeyboardRow(buttons...))
	}
	return tgbotapi.NewInlineKeyboardMarkup(out...)
}

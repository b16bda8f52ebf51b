package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"

	"keeper-bot/internal/domain"
	"keeper-bot/internal/integrations/telegram"
	"keeper-bot/internal/repository"
)

const (
	defaultHistoryLimit = 10
	defaultSearchLimit  = 10
	pollTimeoutSec      = 5
)

// Store is the storage surface the bot consumes.
type Store interface {
	PutUserValue(ctx context.Context, userID, key, value string) error
	GetUserValue(ctx context.Context, userID, key string) (string, bool, error)
	ListUserKeys(ctx context.Context, userID string) ([]string, error)
	PutMessage(ctx context.Context, msg domain.MessageRecord) error
	PutKeywordEntries(ctx context.Context, entries []domain.KeywordEntry) error
	RecentMessages(ctx context.Context, userID string, limit int) ([]domain.MessageRecord, error)
	AllMessages(ctx context.Context, userID string) ([]domain.MessageRecord, error)
	MessageByID(ctx context.Context, userID, messageID string) (domain.MessageRecord, bool, error)
	SearchKeyword(ctx context.Context, keyword, userID string, limit int) ([]domain.KeywordEntry, error)
	GetUpdateOffset(ctx context.Context) (int64, error)
	SetUpdateOffset(ctx context.Context, offset int64) error
}

// Messenger is the outbound Telegram surface.
type Messenger interface {
	Ready(ctx context.Context) error
	SendMessage(ctx context.Context, chatID int64, text string) error
	AnswerCallbackQuery(ctx context.Context, callbackQueryID string) error
	GetUpdates(ctx context.Context, offset int64, timeoutSec int) ([]domain.Update, error)
}

// LLMClient produces one completion per prompt.
type LLMClient interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

type httpStatusCoder interface {
	HTTPStatusCode() int
}

// BotService routes inbound updates: persist, dispatch, reply. One update at
// a time, run to completion.
type BotService struct {
	store        Store
	msgr         Messenger
	llm          LLMClient
	historyLimit int
	searchLimit  int
}

func NewBotService(store Store, msgr Messenger, llm LLMClient, historyLimit, searchLimit int) (*BotService, error) {
	if store == nil {
		return nil, errors.New("usecase: store must not be nil")
	}
	if msgr == nil {
		return nil, errors.New("usecase: messenger must not be nil")
	}
	if llm == nil {
		return nil, errors.New("usecase: llm client must not be nil")
	}
	if historyLimit <= 0 {
		historyLimit = defaultHistoryLimit
	}
	if searchLimit <= 0 {
		searchLimit = defaultSearchLimit
	}
	return &BotService{
		store:        store,
		msgr:         msgr,
		llm:          llm,
		historyLimit: historyLimit,
		searchLimit:  searchLimit,
	}, nil
}

// ProcessUpdate handles one inbound update end to end. Storage and send
// failures inside handlers are logged and surfaced to the user as short
// failure strings; only a missing bot credential fails the invocation.
func (s *BotService) ProcessUpdate(ctx context.Context, upd domain.Update) error {
	if err := s.msgr.Ready(ctx); err != nil {
		if errors.Is(err, telegram.ErrNotConfigured) {
			return newError(ErrorNotConfigured, "bot_token_missing", err)
		}
		return newError(ErrorInternal, "bot_token_error", err)
	}

	if upd.CallbackQuery != nil {
		if err := s.msgr.AnswerCallbackQuery(ctx, upd.CallbackQuery.ID); err != nil {
			slog.Error("failed to answer callback query", "err", err)
		}
		return nil
	}

	chat := upd.ChatPayload()
	if chat == nil {
		return nil
	}
	userID := strconv.FormatInt(chat.Chat.ID, 10)

	s.persistMessage(ctx, userID, upd.UpdateID, chat)

	if chat.Text == "" {
		return nil
	}

	firstName := ""
	if chat.From != nil {
		firstName = chat.From.FirstName
	}
	reply := s.dispatch(ctx, userID, firstName, chat.Text)
	if reply == "" {
		return nil
	}
	if err := s.msgr.SendMessage(ctx, chat.Chat.ID, reply); err != nil {
		// Reply is lost, not retried.
		slog.Error("failed to send reply", "chat_id", chat.Chat.ID, "err", err)
	}
	return nil
}

// persistMessage archives the inbound message and populates the keyword
// index. Neither write may block dispatching; failures are logged. A crash
// between the two writes leaves the message unsearchable by the missed
// keywords, which is accepted.
func (s *BotService) persistMessage(ctx context.Context, userID string, updateID int64, chat *domain.ChatUpdate) {
	raw, err := json.Marshal(chat)
	if err != nil {
		slog.Error("failed to marshal raw message", "err", err)
		raw = nil
	}
	msg := repository.NewMessageRecord(userID, updateID, chat.MessageID, chat.Text, string(raw))
	if err := s.store.PutMessage(ctx, msg); err != nil {
		slog.Error("failed to persist message", "message_id", msg.MessageID, "err", err)
		return
	}

	if chat.Text == "" {
		return
	}
	snippet := Snippet(chat.Text)
	var entries []domain.KeywordEntry
	for _, kw := range Keywords(chat.Text) {
		entries = append(entries, repository.NewKeywordEntry(kw, msg, snippet))
	}
	if err := s.store.PutKeywordEntries(ctx, entries); err != nil {
		slog.Error("failed to index message keywords", "message_id", msg.MessageID, "err", err)
	}
}

// Poll fetches a batch of queued updates and processes them sequentially in
// arrival order. The cursor advances to the highest update id seen, persisted
// only after the whole batch, so an interrupted batch is redelivered.
func (s *BotService) Poll(ctx context.Context) (int, error) {
	if err := s.msgr.Ready(ctx); err != nil {
		if errors.Is(err, telegram.ErrNotConfigured) {
			return 0, newError(ErrorNotConfigured, "bot_token_missing", err)
		}
		return 0, newError(ErrorInternal, "bot_token_error", err)
	}

	lastOffset, err := s.store.GetUpdateOffset(ctx)
	if err != nil {
		return 0, newError(ErrorInternal, "cursor_read_error", err)
	}

	var offset int64
	if lastOffset > 0 {
		offset = lastOffset + 1
	}
	updates, err := s.msgr.GetUpdates(ctx, offset, pollTimeoutSec)
	if err != nil {
		return 0, newError(ErrorUpstream, "get_updates_error", err)
	}

	maxUpdateID := lastOffset
	for _, upd := range updates {
		if err := s.ProcessUpdate(ctx, upd); err != nil {
			slog.Error("failed to process update", "update_id", upd.UpdateID, "err", err)
		}
		if upd.UpdateID > maxUpdateID {
			maxUpdateID = upd.UpdateID
		}
	}

	if maxUpdateID > lastOffset {
		if err := s.store.SetUpdateOffset(ctx, maxUpdateID); err != nil {
			return len(updates), newError(ErrorInternal, "cursor_write_error", err)
		}
	}
	return len(updates), nil
}

func upstreamStatusCode(err error) (int, bool) {
	var statusErr httpStatusCoder
	if !errors.As(err, &statusErr) {
		return 0, false
	}
	return statusErr.HTTPStatusCode(), true
}

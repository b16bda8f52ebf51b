package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"unicode"

	"keeper-bot/internal/domain"
	"keeper-bot/internal/integrations/openai"
)

const (
	commandPrefix = "/"
	summarizeMax  = 10
	// summarize scans this many recent messages to find enough notes.
	summarizeScanLimit = 50
)

const helpText = "/hello - greet\n" +
	"/help - this message\n" +
	"/echo <text> - echo back\n" +
	"/save <key> <value> - save your data\n" +
	"/get <key> - retrieve your value\n" +
	"/list - list saved keys\n" +
	"/latest - your most recent message\n" +
	"/history [n] - last n messages\n" +
	"/getid <message_id> - fetch specific message\n" +
	"/search <keyword> - search your messages\n" +
	"/ask <question> - ask the assistant\n" +
	"/summarize - summarize your recent notes\n" +
	"/stats - your message stats"

// dispatch parses the leading token of text as a command and produces the
// reply. Handler failures never propagate; they come back as short
// user-facing strings.
func (s *BotService) dispatch(ctx context.Context, userID, firstName, text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, commandPrefix) {
		return "I only respond to commands. Send /help to see commands."
	}

	fields := strings.Fields(trimmed)
	cmd := strings.ToLower(fields[0])

	switch cmd {
	case "/start":
		return fmt.Sprintf("Welcome, %s!\nUse /help to see what I can do.", firstName)
	case "/hello":
		return fmt.Sprintf("Hello, %s!", firstName)
	case "/help", "/menu":
		return helpText
	case "/echo":
		args := splitArgs(trimmed, 2)
		if len(args) < 2 {
			return "Usage: /echo <text>"
		}
		return args[1]
	case "/save":
		return s.handleSave(ctx, userID, trimmed)
	case "/get":
		return s.handleGet(ctx, userID, fields)
	case "/list":
		return s.handleList(ctx, userID)
	case "/getid":
		return s.handleGetID(ctx, userID, fields)
	case "/search":
		return s.handleSearch(ctx, userID, fields)
	case "/latest":
		return s.handleHistory(ctx, userID, 1)
	case "/history":
		n := s.historyLimit
		if len(fields) > 1 {
			if parsed, err := strconv.Atoi(fields[1]); err == nil && parsed > 0 {
				n = parsed
			}
		}
		return s.handleHistory(ctx, userID, n)
	case "/ask":
		return s.handleAsk(ctx, trimmed)
	case "/summarize":
		return s.handleSummarize(ctx, userID)
	case "/stats":
		return s.handleStats(ctx, userID)
	default:
		return fmt.Sprintf("Unknown command %s. Use /help", cmd)
	}
}

func (s *BotService) handleSave(ctx context.Context, userID, text string) string {
	args := splitArgs(text, 3)
	if len(args) < 3 {
		return "Usage: /save <key> <value>"
	}
	key, value := args[1], args[2]
	if err := s.store.PutUserValue(ctx, userID, key, value); err != nil {
		slog.Error("save failed", "user_id", userID, "key", key, "err", err)
		return "Failed to save."
	}
	return fmt.Sprintf("Saved key '%s'.", key)
}

func (s *BotService) handleGet(ctx context.Context, userID string, fields []string) string {
	if len(fields) < 2 {
		return "Usage: /get <key>"
	}
	key := fields[1]
	value, found, err := s.store.GetUserValue(ctx, userID, key)
	if err != nil {
		slog.Error("get failed", "user_id", userID, "key", key, "err", err)
		return "Failed to fetch value."
	}
	if !found {
		return fmt.Sprintf("No value found for key '%s'.", key)
	}
	return fmt.Sprintf("%s = %s", key, value)
}

func (s *BotService) handleList(ctx context.Context, userID string) string {
	keys, err := s.store.ListUserKeys(ctx, userID)
	if err != nil {
		slog.Error("list failed", "user_id", userID, "err", err)
		return "Failed to list keys."
	}
	if len(keys) == 0 {
		return "You have no saved keys."
	}
	return "Your keys:\n" + strings.Join(keys, "\n")
}

func (s *BotService) handleGetID(ctx context.Context, userID string, fields []string) string {
	if len(fields) < 2 {
		return "Usage: /getid <message_id>"
	}
	n, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return "Message id must be a number."
	}
	messageID := fmt.Sprintf("%s:%d", userID, n)
	msg, found, err := s.store.MessageByID(ctx, userID, messageID)
	if err != nil {
		slog.Error("getid failed", "user_id", userID, "message_id", messageID, "err", err)
		return "Failed to fetch message by id."
	}
	if !found {
		return fmt.Sprintf("No message found with id %d", n)
	}
	return fmt.Sprintf("[%s] %s\n%s", msg.MessageID, displayTime(msg.CreatedAt), msg.Text)
}

func (s *BotService) handleSearch(ctx context.Context, userID string, fields []string) string {
	if len(fields) < 2 {
		return "Usage: /search <keyword>"
	}
	keyword := strings.ToLower(fields[1])
	entries, err := s.store.SearchKeyword(ctx, keyword, userID, s.searchLimit)
	if err != nil {
		slog.Error("search failed", "user_id", userID, "keyword", keyword, "err", err)
		return "Search failed."
	}
	if len(entries) == 0 {
		return fmt.Sprintf("No results for '%s'", keyword)
	}
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, fmt.Sprintf("[%s] %s - %s", e.MessageID, displayTime(e.CreatedAt), e.Snippet))
	}
	return strings.Join(lines, "\n")
}

func (s *BotService) handleHistory(ctx context.Context, userID string, n int) string {
	msgs, err := s.store.RecentMessages(ctx, userID, n)
	if err != nil {
		slog.Error("history failed", "user_id", userID, "err", err)
		return "Failed to fetch history."
	}
	if len(msgs) == 0 {
		return "No history found."
	}
	lines := make([]string, 0, len(msgs))
	for _, m := range msgs {
		lines = append(lines, fmt.Sprintf("[%s] %s - %s", m.MessageID, displayTime(m.CreatedAt), Snippet(m.Text)))
	}
	return strings.Join(lines, "\n")
}

func (s *BotService) handleAsk(ctx context.Context, text string) string {
	args := splitArgs(text, 2)
	if len(args) < 2 {
		return "Usage: /ask <question>"
	}
	return s.complete(ctx, args[1])
}

func (s *BotService) handleSummarize(ctx context.Context, userID string) string {
	msgs, err := s.store.RecentMessages(ctx, userID, summarizeScanLimit)
	if err != nil {
		slog.Error("summarize failed", "user_id", userID, "err", err)
		return "Failed to fetch your notes."
	}

	// msgs arrive newest first; keep the latest notes, then restore
	// chronological order for the prompt.
	var notes []domain.MessageRecord
	for _, m := range msgs {
		t := strings.TrimSpace(m.Text)
		if t == "" || strings.HasPrefix(t, commandPrefix) {
			continue
		}
		notes = append(notes, m)
		if len(notes) == summarizeMax {
			break
		}
	}
	if len(notes) == 0 {
		return "You have no notes to summarize."
	}
	for i, j := 0, len(notes)-1; i < j; i, j = i+1, j-1 {
		notes[i], notes[j] = notes[j], notes[i]
	}

	var b strings.Builder
	b.WriteString("Summarize the following notes as a short bulleted list:\n")
	for i, m := range notes {
		fmt.Fprintf(&b, "%d. %s\n", i+1, strings.TrimSpace(m.Text))
	}
	return s.complete(ctx, b.String())
}

func (s *BotService) handleStats(ctx context.Context, userID string) string {
	msgs, err := s.store.AllMessages(ctx, userID)
	if err != nil {
		slog.Error("stats failed", "user_id", userID, "err", err)
		return "Failed to compute stats."
	}
	return BuildStatsReport(msgs, timeNow())
}

// complete forwards a prompt to the language model and translates failures
// into short user-facing strings.
func (s *BotService) complete(ctx context.Context, prompt string) string {
	answer, err := s.llm.Complete(ctx, prompt)
	if err != nil {
		if errors.Is(err, openai.ErrNotConfigured) {
			return "The assistant is not configured."
		}
		if status, ok := upstreamStatusCode(err); ok && status == http.StatusTooManyRequests {
			return "The assistant is rate limited. Please try again later."
		}
		slog.Error("completion failed", "err", err)
		return "Could not get a reply from the assistant."
	}
	return strings.TrimSpace(answer)
}

// splitArgs splits text into at most n whitespace-delimited parts; the final
// part keeps its internal whitespace.
func splitArgs(text string, n int) []string {
	parts := make([]string, 0, n)
	rest := strings.TrimSpace(text)
	for len(parts) < n-1 && rest != "" {
		idx := strings.IndexFunc(rest, unicode.IsSpace)
		if idx < 0 {
			break
		}
		parts = append(parts, rest[:idx])
		rest = strings.TrimLeftFunc(rest[idx:], unicode.IsSpace)
	}
	if rest != "" {
		parts = append(parts, rest)
	}
	return parts
}

package usecase

import (
	"fmt"
	"strings"
	"time"

	"keeper-bot/internal/domain"
)

const noMessagesReport = "You have no messages yet."

// BuildStatsReport aggregates a user's full message history into a formatted
// report. Lines whose preconditions fail (no notes, no commands, no usable
// timestamps) are omitted rather than zero-filled.
func BuildStatsReport(msgs []domain.MessageRecord, now time.Time) string {
	if len(msgs) == 0 {
		return noMessagesReport
	}

	weekAgo := now.Add(-7 * 24 * time.Hour).Unix()
	var (
		recentCount int
		notesCount  int
		notesChars  int
		cmdCount    int
		firstTS     int64
		lastTS      int64
	)
	// tally keyed by command token; cmdOrder keeps first-encounter order so
	// the most-used tie-break is stable.
	tally := make(map[string]int)
	var cmdOrder []string

	for _, m := range msgs {
		if m.CreatedAt > 0 {
			if m.CreatedAt >= weekAgo {
				recentCount++
			}
			if firstTS == 0 || m.CreatedAt < firstTS {
				firstTS = m.CreatedAt
			}
			if m.CreatedAt > lastTS {
				lastTS = m.CreatedAt
			}
		}

		text := strings.TrimSpace(m.Text)
		if strings.HasPrefix(text, "/") {
			cmdCount++
			cmd := strings.ToLower(strings.Fields(text)[0])
			if _, ok := tally[cmd]; !ok {
				cmdOrder = append(cmdOrder, cmd)
			}
			tally[cmd]++
		} else {
			notesCount++
			notesChars += len([]rune(text))
		}
	}

	lines := []string{
		"Your stats:",
		fmt.Sprintf("Total messages: %d", len(msgs)),
		fmt.Sprintf("Messages in the last 7 days: %d", recentCount),
	}
	if notesCount > 0 {
		lines = append(lines,
			fmt.Sprintf("Notes: %d", notesCount),
			fmt.Sprintf("Average note length: %.1f chars", float64(notesChars)/float64(notesCount)),
		)
	}
	if cmdCount > 0 {
		top := cmdOrder[0]
		for _, cmd := range cmdOrder {
			if tally[cmd] > tally[top] {
				top = cmd
			}
		}
		lines = append(lines,
			fmt.Sprintf("Commands: %d", cmdCount),
			fmt.Sprintf("Most used command: %s (%d)", top, tally[top]),
		)
	}
	if firstTS > 0 {
		lines = append(lines,
			fmt.Sprintf("First message: %s", displayTime(firstTS)),
			fmt.Sprintf("Last message: %s", displayTime(lastTS)),
		)
	}
	return strings.Join(lines, "\n")
}

func displayTime(ts int64) string {
	return time.Unix(ts, 0).UTC().Format("2006-01-02 15:04:05")
}

var timeNow = time.Now


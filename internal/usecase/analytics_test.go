package usecase

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"keeper-bot/internal/domain"
)

var statsNow = time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)

func msgAt(ts time.Time, text string) domain.MessageRecord {
	return domain.MessageRecord{UserID: "42", CreatedAt: ts.Unix(), Text: text}
}

func TestBuildStatsReport_NoMessages(t *testing.T) {
	require.Equal(t, "You have no messages yet.", BuildStatsReport(nil, statsNow))
}

func TestBuildStatsReport_CommandsAndNotes(t *testing.T) {
	msgs := []domain.MessageRecord{
		msgAt(statsNow.Add(-1*time.Hour), "/save color blue"),
		msgAt(statsNow.Add(-2*time.Hour), "/save town oslo"),
		msgAt(statsNow.Add(-3*time.Hour), "/list"),
		msgAt(statsNow.Add(-4*time.Hour), "buy milk"),
		msgAt(statsNow.Add(-5*time.Hour), "call the bank"),
	}
	report := BuildStatsReport(msgs, statsNow)
	require.Contains(t, report, "Total messages: 5")
	require.Contains(t, report, "Notes: 2")
	require.Contains(t, report, "Average note length: 10.5 chars")
	require.Contains(t, report, "Commands: 3")
	require.Contains(t, report, "Most used command: /save (2)")
}

func TestBuildStatsReport_MostUsedTieBreaksOnFirstEncounter(t *testing.T) {
	msgs := []domain.MessageRecord{
		msgAt(statsNow.Add(-1*time.Hour), "/get color"),
		msgAt(statsNow.Add(-2*time.Hour), "/save color blue"),
	}
	report := BuildStatsReport(msgs, statsNow)
	require.Contains(t, report, "Most used command: /get (1)")
}

func TestBuildStatsReport_SevenDayWindow(t *testing.T) {
	msgs := []domain.MessageRecord{
		msgAt(statsNow.Add(-24*time.Hour), "recent note"),
		msgAt(statsNow.Add(-30*24*time.Hour), "old note"),
	}
	report := BuildStatsReport(msgs, statsNow)
	require.Contains(t, report, "Messages in the last 7 days: 1")
}

func TestBuildStatsReport_OmitsNotesWhenNone(t *testing.T) {
	msgs := []domain.MessageRecord{
		msgAt(statsNow.Add(-1*time.Hour), "/list"),
	}
	report := BuildStatsReport(msgs, statsNow)
	require.NotContains(t, report, "Notes:")
	require.NotContains(t, report, "Average note length")
	require.Contains(t, report, "Commands: 1")
}

func TestBuildStatsReport_OmitsCommandsWhenNone(t *testing.T) {
	msgs := []domain.MessageRecord{
		msgAt(statsNow.Add(-1*time.Hour), "just a note"),
	}
	report := BuildStatsReport(msgs, statsNow)
	require.NotContains(t, report, "Commands:")
	require.NotContains(t, report, "Most used command")
}

func TestBuildStatsReport_OmitsTimestampsWhenNoneParse(t *testing.T) {
	msgs := []domain.MessageRecord{
		{UserID: "42", CreatedAt: 0, Text: "note without timestamp"},
	}
	report := BuildStatsReport(msgs, statsNow)
	require.NotContains(t, report, "First message")
	require.NotContains(t, report, "Last message")
	require.Contains(t, report, "Total messages: 1")
}

func TestBuildStatsReport_FirstAndLastTimestamps(t *testing.T) {
	first := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	last := time.Date(2026, 8, 20, 9, 30, 0, 0, time.UTC)
	msgs := []domain.MessageRecord{
		msgAt(last, "newer"),
		msgAt(first, "older"),
	}
	report := BuildStatsReport(msgs, statsNow)
	require.Contains(t, report, "First message: 2026-08-01 10:00:00")
	require.Contains(t, report, "Last message: 2026-08-20 09:30:00")
}

func TestBuildStatsReport_LineOrder(t *testing.T) {
	msgs := []domain.MessageRecord{
		msgAt(statsNow.Add(-1*time.Hour), "/list"),
		msgAt(statsNow.Add(-2*time.Hour), "a note"),
	}
	report := BuildStatsReport(msgs, statsNow)
	lines := strings.Split(report, "\n")
	require.Equal(t, "Your stats:", lines[0])
	require.True(t, strings.HasPrefix(lines[1], "Total messages:"))
}

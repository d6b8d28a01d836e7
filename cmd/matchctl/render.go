package main

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"github.com/alem-hub/mentorship-engine/internal/application/command"
	"github.com/alem-hub/mentorship-engine/internal/application/query"
	"github.com/alem-hub/mentorship-engine/internal/domain/mentorship"
	"github.com/alem-hub/mentorship-engine/pkg/timeutil"
)

var (
	heading = color.New(color.FgCyan, color.Bold)
	success = color.New(color.FgGreen)
	warning = color.New(color.FgYellow)
	failure = color.New(color.FgRed)
)

func setColor(disabled bool) {
	if disabled {
		color.NoColor = true
	}
}

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAutoFormatHeaders(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	return table
}

// statusColor подсвечивает статус пары.
func statusColor(status string) string {
	switch status {
	case mentorship.StatusAccepted.String():
		return success.Sprint(status)
	case mentorship.StatusPending.String():
		return warning.Sprint(status)
	case mentorship.StatusRejected.String(), mentorship.StatusAutoRejected.String():
		return failure.Sprint(status)
	default:
		return status
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(timeutil.FormatDateTime)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// ══════════════════════════════════════════════════════════════════════════════
// PROGRAMS
// ══════════════════════════════════════════════════════════════════════════════

func renderPrograms(w io.Writer, programs []mentorship.Program, fallbackCapacity int) {
	heading.Fprintf(w, "\nOpen programs (%d)\n", len(programs))
	table := newTable(w, "ID", "Name", "Capacity", "Matching deadline", "Coordinators")
	for _, p := range programs {
		table.Append([]string{
			p.ID,
			orDash(p.Name),
			strconv.Itoa(p.Capacity(fallbackCapacity)),
			formatTime(p.MatchingDeadline),
			orDash(strings.Join(p.Coordinators, ", ")),
		})
	}
	table.Render()
}

// ══════════════════════════════════════════════════════════════════════════════
// COMMAND RESULTS
// ══════════════════════════════════════════════════════════════════════════════

func renderInitiate(w io.Writer, r *command.InitiateMatchingResult) {
	heading.Fprintf(w, "\nBatch matching for %s\n", r.ProgramID)
	table := newTable(w, "Considered", "Pending", "Needing manual", "Skipped", "Errors", "Duration")
	table.Append([]string{
		strconv.Itoa(r.Considered),
		strconv.Itoa(r.Pending),
		strconv.Itoa(r.NeedingManual),
		strconv.Itoa(r.Skipped),
		strconv.Itoa(r.Errors),
		r.Duration.Round(time.Millisecond).String(),
	})
	table.Render()

	if len(r.NeedingManualMentees) > 0 {
		warning.Fprintf(w, "Mentees needing manual matching: %s\n", strings.Join(r.NeedingManualMentees, ", "))
	}
	if r.Errors > 0 {
		failure.Fprintf(w, "%d mentee(s) failed, see logs\n", r.Errors)
	}
}

func renderSweep(w io.Writer, r *command.ExpireMatchesResult) {
	heading.Fprintln(w, "\nExpiry sweep")
	table := newTable(w, "Scanned", "Expired", "Already processed", "Cascaded", "Errors")
	table.Append([]string{
		strconv.Itoa(r.Scanned),
		strconv.Itoa(r.Expired),
		strconv.Itoa(r.AlreadyProcessed),
		strconv.Itoa(r.Cascaded),
		strconv.Itoa(r.Errors),
	})
	table.Render()
}

// ══════════════════════════════════════════════════════════════════════════════
// MATCHES
// ══════════════════════════════════════════════════════════════════════════════

func renderMatches(w io.Writer, matches []query.MatchDTO) {
	heading.Fprintf(w, "\nMatches (%d)\n", len(matches))
	table := newTable(w, "ID", "Mentee", "Mentor", "Type", "Choice", "Score", "Status", "Matched at")
	for _, m := range matches {
		choice := "-"
		if m.PreferredChoiceOrder != nil {
			choice = "#" + strconv.Itoa(*m.PreferredChoiceOrder)
		}
		table.Append([]string{
			m.ID,
			m.MenteeID,
			m.MentorID,
			m.Type,
			choice,
			fmt.Sprintf("%.2f", m.Score),
			statusColor(m.Status),
			formatTime(m.MatchedAt),
		})
	}
	table.Render()
}

func renderMatchDetail(w io.Writer, m query.MatchDTO, now time.Time) {
	table := newTable(w, "Field", "Value")
	rows := [][]string{
		{"ID", m.ID},
		{"Program", m.ProgramID},
		{"Mentee", m.MenteeID},
		{"Mentor", m.MentorID},
		{"Type", m.Type},
		{"Status", statusColor(m.Status)},
		{"Score", fmt.Sprintf("%.2f (industry %s, programme %s, skills %s, preference %s)",
			m.Score, m.Breakdown.Industry, m.Breakdown.Programme, m.Breakdown.Skills, m.Breakdown.Preference)},
		{"Selected mentors", orDash(strings.Join(m.MenteeSelectedMentors, ", "))},
		{"Matched at", formatTime(m.MatchedAt)},
	}
	if m.Status == mentorship.StatusPending.String() {
		rows = append(rows, []string{"Auto-reject at",
			formatTime(m.AutoRejectAt) + " (" + timeutil.FormatRelative(m.AutoRejectAt, now) + ")"})
	} else {
		rows = append(rows, []string{"Auto-reject at", formatTime(m.AutoRejectAt)})
	}
	if m.PreferredChoiceOrder != nil {
		rows = append(rows, []string{"Choice", "#" + strconv.Itoa(*m.PreferredChoiceOrder)})
	}
	if m.MentorResponseAt != nil {
		rows = append(rows, []string{"Responded at", formatTime(*m.MentorResponseAt)})
	}
	if m.RejectionReason != "" {
		rows = append(rows, []string{"Rejection reason", m.RejectionReason})
	}
	if m.CollaborationSpaceID != "" {
		rows = append(rows, []string{"Collaboration space", m.CollaborationSpaceID})
	}
	if m.CreatedBy != "" {
		rows = append(rows, []string{"Created by", m.CreatedBy})
	}
	table.AppendBulk(rows)
	table.Render()
}

// ══════════════════════════════════════════════════════════════════════════════
// STATS / PREVIEW
// ══════════════════════════════════════════════════════════════════════════════

func renderStats(w io.Writer, s *query.ProgramStatsDTO) {
	heading.Fprintf(w, "\nProgram %s: %d matches, average score %.2f\n", s.ProgramID, s.Total, s.AverageScore)

	table := newTable(w, "Status", "Count")
	for _, status := range sortedKeys(s.ByStatus) {
		table.Append([]string{statusColor(status), strconv.Itoa(s.ByStatus[status])})
	}
	table.Render()

	table = newTable(w, "Type", "Count")
	for _, typ := range sortedKeys(s.ByType) {
		table.Append([]string{typ, strconv.Itoa(s.ByType[typ])})
	}
	table.Render()

	if len(s.MentorLoad) == 0 {
		return
	}
	heading.Fprintln(w, "\nMentor load")
	table = newTable(w, "Mentor", "Accepted", "Capacity", "Remaining")
	for _, l := range s.MentorLoad {
		remaining := strconv.Itoa(l.Remaining)
		if l.Remaining == 0 {
			remaining = failure.Sprint(remaining)
		}
		table.Append([]string{l.MentorID, strconv.Itoa(l.Accepted), strconv.Itoa(l.Capacity), remaining})
	}
	table.Render()
}

func renderPreview(w io.Writer, r *query.PreviewCandidatesResult) {
	heading.Fprintf(w, "\nCandidates for %s in %s\n", r.MenteeID, r.ProgramID)
	fmt.Fprintf(w, "Preferences: %s\n", orDash(strings.Join(r.Preferences, ", ")))
	if r.Next != nil {
		success.Fprintf(w, "Next proposal: %s (%s, score %s)\n", r.Next.MentorID, r.NextType, r.Next.Breakdown.Total)
	} else {
		warning.Fprintln(w, "No eligible mentor: the mentee needs manual matching")
	}

	table := newTable(w, "Mentor", "Industry", "Score", "Rank", "Accepted", "Eligibility")
	for _, c := range r.Candidates {
		rank := "-"
		if c.Breakdown.PreferenceRank > 0 {
			rank = "#" + strconv.Itoa(c.Breakdown.PreferenceRank)
		}
		table.Append([]string{
			c.MentorID,
			orDash(c.Industry),
			c.Breakdown.Total.String(),
			rank,
			strconv.Itoa(c.Accepted),
			c.Eligibility,
		})
	}
	table.Render()
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

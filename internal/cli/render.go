package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/gosuri/uitable"

	"curetrack/internal/calendar"
	"curetrack/internal/core"
	memsched "curetrack/internal/infra/scheduler/memory"
	"curetrack/internal/infra/scheduler/spool"
	"curetrack/internal/server"
	"curetrack/internal/temporal"
	"curetrack/pkg/domain"
)

const minIDWidth = 8

// calendarHint is shown when the device refuses calendar access.
const calendarHint = "Calendar access is denied. Allow it with `calendar.permission: true` in .curetrack.yaml " +
	"or CURETRACK_CALENDAR_PERMISSION=true, then re-enable sync with `curetrack edit <id> --calendar`."

type printer struct {
	out  io.Writer
	json bool
	now  time.Time
	loc  *time.Location
}

func (p printer) encode(v any) error {
	enc := json.NewEncoder(p.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func severityColor(sev temporal.Severity) *color.Color {
	switch sev {
	case temporal.SeverityOverdue:
		return color.New(color.FgRed, color.Bold)
	case temporal.SeverityUrgent:
		return color.New(color.FgYellow)
	case temporal.SeverityNormalNear:
		return color.New(color.FgGreen)
	case temporal.SeverityDone:
		return color.New(color.FgGreen, color.Faint)
	default:
		return color.New(color.FgBlue)
	}
}

func mark(ok bool) string {
	if ok {
		return "✓"
	}
	return ""
}

func (p printer) view(s domain.Sample) server.SampleView {
	return server.NewSampleView(s, p.now, p.loc)
}

func (p printer) samples(list []domain.Sample) error {
	if p.json {
		views := make([]server.SampleView, 0, len(list))
		for _, s := range list {
			views = append(views, p.view(s))
		}
		return p.encode(views)
	}
	if len(list) == 0 {
		_, _ = fmt.Fprintln(p.out, "No samples yet. Record one with `curetrack add`.")
		return nil
	}
	ids := shortIDs(list)
	bold := color.New(color.Bold)
	tbl := uitable.New()
	tbl.Separator = "  "
	tbl.AddRow(bold.Sprint("ID"), bold.Sprint("NAME"), bold.Sprint("START"), bold.Sprint("DUE"),
		bold.Sprint("STATUS"), bold.Sprint("PHOTO"), bold.Sprint("CALENDAR"))
	for _, s := range list {
		st := temporal.Classify(s.DueDate, p.now, s.Completed)
		tbl.AddRow(ids[s.ID], s.Name,
			temporal.FormatDate(s.CureStart, p.loc),
			temporal.FormatDate(s.DueDate, p.loc),
			severityColor(st.Severity).Sprint(st.Label),
			mark(s.Photo != nil),
			mark(s.CalendarSyncEnabled))
	}
	_, _ = fmt.Fprintln(p.out, tbl)
	return nil
}

func (p printer) sample(s domain.Sample) error {
	if p.json {
		return p.encode(p.view(s))
	}
	st := temporal.Classify(s.DueDate, p.now, s.Completed)
	days := strconv.Itoa(s.CureDays)
	if preset, ok := temporal.LookupPeriod(s.CureDays); ok {
		days = fmt.Sprintf("%s (%s)", preset.Label, preset.Description)
	}
	photo := "-"
	if s.Photo != nil {
		photo = fmt.Sprintf("%s (%d bytes)", s.Photo.URI, s.Photo.Size)
	}
	event := "-"
	if s.CalendarSyncEnabled {
		event = s.CalendarEventRef
	}

	bold := color.New(color.Bold)
	tbl := uitable.New()
	tbl.Separator = "  "
	tbl.Wrap = true
	tbl.AddRow(bold.Sprint("ID:"), s.ID)
	tbl.AddRow(bold.Sprint("Name:"), s.Name)
	tbl.AddRow(bold.Sprint("Cure start:"), s.CureStart.In(p.loc).Format("2006-01-02 15:04"))
	tbl.AddRow(bold.Sprint("Cure period:"), days)
	tbl.AddRow(bold.Sprint("Due:"), s.DueDate.In(p.loc).Format("2006-01-02 15:04"))
	tbl.AddRow(bold.Sprint("Status:"), severityColor(st.Severity).Sprint(st.Label))
	tbl.AddRow(bold.Sprint("Photo:"), photo)
	tbl.AddRow(bold.Sprint("Reminders:"), strconv.Itoa(len(s.ReminderIDs)))
	tbl.AddRow(bold.Sprint("Calendar:"), event)
	tbl.AddRow(bold.Sprint("Created:"), s.CreatedAt.In(p.loc).Format(time.RFC3339))
	_, _ = fmt.Fprintln(p.out, tbl)
	return nil
}

type statsOutput struct {
	core.Stats
	Next *server.SampleView `json:"next,omitempty"`
}

func (p printer) stats(st core.Stats, next *core.Upcoming) error {
	if p.json {
		out := statsOutput{Stats: st}
		if next != nil {
			v := p.view(next.Sample)
			out.Next = &v
		}
		return p.encode(out)
	}
	bold := color.New(color.Bold)
	tbl := uitable.New()
	tbl.Separator = "  "
	tbl.AddRow(bold.Sprint("Total:"), st.Total)
	tbl.AddRow(bold.Sprint("Active:"), st.Active)
	tbl.AddRow(bold.Sprint("Overdue:"), severityColor(temporal.SeverityOverdue).Sprint(st.Overdue))
	tbl.AddRow(bold.Sprint("Completed:"), st.Completed)
	if next != nil {
		tbl.AddRow(bold.Sprint("Next due:"), fmt.Sprintf("%s, %s (%s)", next.Sample.Name,
			temporal.FormatDate(next.Sample.DueDate, p.loc),
			severityColor(next.Status.Severity).Sprint(next.Status.Label)))
	}
	_, _ = fmt.Fprintln(p.out, tbl)
	return nil
}

func (p printer) presets() error {
	if p.json {
		return p.encode(temporal.CurePeriods)
	}
	bold := color.New(color.Bold)
	tbl := uitable.New()
	tbl.Separator = "  "
	tbl.AddRow(bold.Sprint("DAYS"), bold.Sprint("LABEL"), bold.Sprint("DESCRIPTION"))
	for _, cp := range temporal.CurePeriods {
		tbl.AddRow(cp.Days, cp.Label, cp.Description)
	}
	tbl.RightAlign(0)
	_, _ = fmt.Fprintln(p.out, tbl)
	return nil
}

func (p printer) settings(s domain.Settings) error {
	if p.json {
		return p.encode(s)
	}
	tbl := uitable.New()
	tbl.Separator = "  "
	tbl.AddRow("default_cure_days:", s.DefaultCureDays)
	tbl.AddRow("calendar_sync_default:", s.CalendarSyncDefault)
	_, _ = fmt.Fprintln(p.out, tbl)
	return nil
}

type reminderRow struct {
	Handle string                  `json:"handle"`
	At     time.Time               `json:"at"`
	Sample string                  `json:"sample"`
	Kind   domain.NotificationKind `json:"kind"`
	Title  string                  `json:"title"`
}

func spoolRows(entries []spool.Entry) []reminderRow {
	rows := make([]reminderRow, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, newReminderRow(e.Handle, e.At, e.Notification))
	}
	return rows
}

func timerRows(pending []memsched.Pending) []reminderRow {
	rows := make([]reminderRow, 0, len(pending))
	for _, e := range pending {
		rows = append(rows, newReminderRow(e.Handle, e.At, e.Notification))
	}
	return rows
}

func newReminderRow(handle string, at time.Time, n domain.Notification) reminderRow {
	return reminderRow{Handle: handle, At: at, Sample: n.SampleID, Kind: n.Kind, Title: n.Title}
}

// reminders prints rows, replacing sample ids with names where known.
func (p printer) reminders(rows []reminderRow, names map[string]string) error {
	for i := range rows {
		if name := names[rows[i].Sample]; name != "" {
			rows[i].Sample = name
		}
	}
	if p.json {
		return p.encode(rows)
	}
	if len(rows) == 0 {
		_, _ = fmt.Fprintln(p.out, "No pending reminders.")
		return nil
	}
	bold := color.New(color.Bold)
	tbl := uitable.New()
	tbl.Separator = "  "
	tbl.AddRow(bold.Sprint("AT"), bold.Sprint("SAMPLE"), bold.Sprint("KIND"), bold.Sprint("TITLE"))
	for _, r := range rows {
		tbl.AddRow(r.At.In(p.loc).Format("2006-01-02 15:04"), r.Sample, string(r.Kind), r.Title)
	}
	_, _ = fmt.Fprintln(p.out, tbl)
	return nil
}

func (p printer) notification(n domain.Notification) {
	if p.json {
		_ = json.NewEncoder(p.out).Encode(n)
		return
	}
	bell := color.New(color.FgYellow, color.Bold)
	_, _ = fmt.Fprintf(p.out, "%s %s\n  %s\n", bell.Sprint("🔔"), bell.Sprint(n.Title), n.Body)
}

// notices reports soft failures. They never change the exit status.
func (p printer) notices(w io.Writer, res core.Result) {
	warn := color.New(color.FgYellow)
	denied := false
	for _, n := range res.Notices {
		msg := n.Message
		if n.Err != nil {
			msg = fmt.Sprintf("%s: %v", msg, n.Err)
		}
		_, _ = fmt.Fprintln(w, warn.Sprint("! "+msg))
		if errors.Is(n.Err, calendar.ErrPermissionDenied) {
			denied = true
		}
	}
	if denied {
		_, _ = fmt.Fprintln(w, calendarHint)
	}
}

// shortIDs returns the shortest prefix of each id, at least minIDWidth long,
// that no other id in list shares.
func shortIDs(list []domain.Sample) map[string]string {
	out := make(map[string]string, len(list))
	for i, s := range list {
		n := minIDWidth
		for ; n < len(s.ID); n++ {
			unique := true
			for j, other := range list {
				if i != j && len(other.ID) >= n && other.ID[:n] == s.ID[:n] {
					unique = false
					break
				}
			}
			if unique {
				break
			}
		}
		if n > len(s.ID) {
			n = len(s.ID)
		}
		out[s.ID] = s.ID[:n]
	}
	return out
}

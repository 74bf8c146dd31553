package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"curetrack/internal/infra/scheduler/spool"
	"curetrack/internal/reminder"
	"curetrack/internal/server"
	"curetrack/pkg/domain"
)

var errNoSpool = errors.New(`reminders.driver is "memory": reminders fire inside "curetrack serve" only`)

func addRemind(topLevel *cobra.Command, st *state) {
	cmd := &cobra.Command{
		Use:   "remind",
		Short: "Inspect and deliver spooled reminders.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	addRemindRun(cmd, st)
	addRemindList(cmd, st)
	addRemindProbe(cmd, st)

	topLevel.AddCommand(cmd)
}

func addRemindRun(parent *cobra.Command, st *state) {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Deliver every reminder that is due now.",
		Long: `Deliver every reminder that is due now. Run it from cron, or use
"curetrack serve" to deliver continuously.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return st.out.HandleError(st.remindRun(cmd))
		},
	}
	parent.AddCommand(cmd)
}

func (st *state) remindRun(cmd *cobra.Command) error {
	ctx := cmd.Context()
	app, p, err := st.open(ctx, false)
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()
	if app.Spool == nil {
		return errNoSpool
	}

	srv := server.New(app.Service,
		server.WithLogger(app.Logger),
		server.WithDispatcher(app.Spool, 0),
		server.WithNotifier(func(_ context.Context, n domain.Notification) error {
			p.notification(n)
			return nil
		}))
	sent, err := srv.DispatchOnce(ctx)
	if sent == 0 && err == nil {
		st.printf("No reminders due.\n")
	}
	return err
}

func addRemindList(parent *cobra.Command, st *state) {
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List pending reminders in delivery order.",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return st.out.HandleError(st.remindList(cmd))
		},
	}
	parent.AddCommand(cmd)
}

func (st *state) remindList(cmd *cobra.Command) error {
	ctx := cmd.Context()
	app, p, err := st.open(ctx, false)
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	var (
		rows []reminderRow
		perr error
	)
	if app.Spool != nil {
		var entries []spool.Entry
		entries, perr = app.Spool.Pending(ctx)
		rows = spoolRows(entries)
	} else {
		rows = timerRows(app.Timers.Pending())
	}
	samples, err := app.Service.List(ctx)
	if err != nil {
		return err
	}
	names := make(map[string]string, len(samples))
	for _, s := range samples {
		names[s.ID] = s.Name
	}
	if err := p.reminders(rows, names); err != nil {
		return err
	}
	return perr
}

func addRemindProbe(parent *cobra.Command, st *state) {
	cmd := &cobra.Command{
		Use:   "probe <id>",
		Short: "Schedule a one-off reminder an hour before a sample is due.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return st.out.HandleError(st.remindProbe(cmd, args[0]))
		},
	}
	parent.AddCommand(cmd)
}

func (st *state) remindProbe(cmd *cobra.Command, ref string) error {
	ctx := cmd.Context()
	app, p, err := st.open(ctx, false)
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	sample, err := resolveSample(ctx, app.Service, ref)
	if err != nil {
		return err
	}
	handle, err := app.Service.ScheduleProbe(ctx, sample.ID)
	if errors.Is(err, reminder.ErrProbeTooLate) {
		return errors.New("the probe would fire in the past: the sample is due within the hour")
	}
	if err != nil {
		return err
	}
	if p.json {
		return p.encode(map[string]string{"id": sample.ID, "handle": handle})
	}
	st.printf("Probe reminder for %s scheduled an hour before it is due.\n", sample.Name)
	return nil
}

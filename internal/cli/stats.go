package cli

import (
	"github.com/spf13/cobra"

	"curetrack/internal/core"
	"curetrack/pkg/domain"
)

func addStats(topLevel *cobra.Command, st *state) {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show sample counts and the next sample to come due.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return st.out.HandleError(st.stats(cmd))
		},
	}

	topLevel.AddCommand(cmd)
}

func (st *state) stats(cmd *cobra.Command) error {
	ctx := cmd.Context()
	app, p, err := st.open(ctx, false)
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	stats, err := app.Service.Stats(ctx)
	if err != nil {
		return err
	}
	up, ok, err := app.Service.NextDue(ctx)
	if err != nil {
		return err
	}
	var next *core.Upcoming
	if ok {
		next = &up
	}
	return p.stats(stats, next)
}

func addPresets(topLevel *cobra.Command, st *state) {
	cmd := &cobra.Command{
		Use:   "presets",
		Short: "List the standard cure periods.",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			p := printer{out: st.env.Out, json: st.out.JSON}
			return st.out.HandleError(p.presets())
		},
	}

	topLevel.AddCommand(cmd)
}

// SettingsOptions changes stored preferences.
type SettingsOptions struct {
	DefaultDays     int
	CalendarDefault bool
}

func addSettings(topLevel *cobra.Command, st *state) {
	so := &SettingsOptions{}

	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change stored preferences.",
		Example: `
curetrack settings
curetrack settings --default-days 7 --calendar-default
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return st.out.HandleError(st.settings(cmd, so))
		},
	}
	cmd.Flags().IntVar(&so.DefaultDays, "default-days", 0, "Cure period used when add is given no --days.")
	cmd.Flags().BoolVar(&so.CalendarDefault, "calendar-default", false, "Mirror new samples into the calendar by default.")

	topLevel.AddCommand(cmd)
}

func (st *state) settings(cmd *cobra.Command, so *SettingsOptions) error {
	ctx := cmd.Context()
	app, p, err := st.open(ctx, false)
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	current, err := app.Service.Settings(ctx)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("default-days") || flags.Changed("calendar-default") {
		next := domain.Settings{DefaultCureDays: current.DefaultCureDays, CalendarSyncDefault: current.CalendarSyncDefault}
		if flags.Changed("default-days") {
			next.DefaultCureDays = so.DefaultDays
		}
		if flags.Changed("calendar-default") {
			next.CalendarSyncDefault = so.CalendarDefault
		}
		if err := app.Service.SaveSettings(ctx, next); err != nil {
			return err
		}
		current = next
	}
	return p.settings(current)
}

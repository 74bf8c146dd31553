package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"curetrack/internal/core"
	"curetrack/internal/temporal"
)

// SampleOptions are the fields of an add or edit submission.
type SampleOptions struct {
	Name     string
	Start    string
	Days     int
	Calendar bool
	Photo    string
}

func addSampleArgs(cmd *cobra.Command, o *SampleOptions) {
	cmd.Flags().StringVar(&o.Start, "start", "",
		"Cure start: YYYY-MM-DD (keeps the current time of day), YYYY-MM-DD HH:MM or RFC 3339. Defaults to now.")
	cmd.Flags().IntVarP(&o.Days, "days", "d", 0,
		"Cure period in days. Defaults to the default_cure_days setting.")
	cmd.Flags().BoolVar(&o.Calendar, "calendar", false,
		"Mirror the due day into the calendar. Defaults to the calendar_sync_default setting.")
}

func addAdd(topLevel *cobra.Command, st *state) {
	so := &SampleOptions{}
	yo := &YesOptions{}

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Record a new sample.",
		Example: `
curetrack add Beam-A --days 28 --start 2024-01-01
curetrack add "Column C3" --days 7 --calendar --photo ./column.jpg
`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			so.Name = strings.Join(args, " ")
			return st.out.HandleError(st.add(cmd, so, yo.Yes))
		},
	}
	addSampleArgs(cmd, so)
	cmd.Flags().StringVar(&so.Photo, "photo", "", "Attach the image at this path.")
	addYesArg(cmd, yo)

	topLevel.AddCommand(cmd)
}

func (st *state) add(cmd *cobra.Command, so *SampleOptions, yes bool) error {
	ctx := cmd.Context()
	app, p, err := st.open(ctx, yes)
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	settings, err := app.Service.Settings(ctx)
	if err != nil {
		return err
	}
	in := core.Input{
		Name:         so.Name,
		CureDays:     settings.DefaultCureDays,
		CalendarSync: settings.CalendarSyncDefault,
	}
	if cmd.Flags().Changed("days") {
		in.CureDays = so.Days
	}
	if cmd.Flags().Changed("calendar") {
		in.CalendarSync = so.Calendar
	}
	if in.CureStart, err = parseStart(so.Start, st.env.Now(), app.Location); err != nil {
		return err
	}
	if so.Photo != "" {
		if in.Photo, err = pickPhoto(ctx, app, so.Photo); err != nil {
			return err
		}
	}

	sample, res, err := app.Service.Create(ctx, in)
	if err != nil {
		if in.Photo != nil {
			if derr := app.Photos.Delete(ctx, in.Photo.URI); derr != nil {
				app.Logger.Warn("photo cleanup failed", "photo", in.Photo.URI, "err", derr)
			}
		}
		return err
	}
	p.notices(st.env.Err, res)
	if p.json {
		return p.sample(sample)
	}
	status := temporal.Classify(sample.DueDate, p.now, false)
	st.printf("Recorded %s (%s), due %s: %s\n", sample.Name, sample.ID,
		temporal.FormatDate(sample.DueDate, app.Location), status.Label)
	return nil
}

func addEdit(topLevel *cobra.Command, st *state) {
	so := &SampleOptions{}
	yo := &YesOptions{}

	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change a sample's name, start, cure period or calendar sync.",
		Example: `
curetrack edit 0190a1b2 --days 56
curetrack edit 0190a1b2 --calendar=false
`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return st.out.HandleError(st.edit(cmd, args[0], so, yo.Yes))
		},
	}
	addSampleArgs(cmd, so)
	cmd.Flags().StringVar(&so.Name, "name", "", "New name.")
	addYesArg(cmd, yo)

	topLevel.AddCommand(cmd)
}

func (st *state) edit(cmd *cobra.Command, ref string, so *SampleOptions, yes bool) error {
	ctx := cmd.Context()
	app, p, err := st.open(ctx, yes)
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	current, err := resolveSample(ctx, app.Service, ref)
	if err != nil {
		return err
	}
	in := core.Input{
		Name:         current.Name,
		CureStart:    current.CureStart,
		CureDays:     current.CureDays,
		CalendarSync: current.CalendarSyncEnabled,
		Photo:        current.Photo,
	}
	flags := cmd.Flags()
	if flags.Changed("name") {
		in.Name = so.Name
	}
	if flags.Changed("days") {
		in.CureDays = so.Days
	}
	if flags.Changed("calendar") {
		in.CalendarSync = so.Calendar
	}
	if flags.Changed("start") {
		if in.CureStart, err = parseStart(so.Start, st.env.Now(), app.Location); err != nil {
			return err
		}
	}

	sample, res, err := app.Service.Update(ctx, current.ID, in)
	if err != nil {
		return err
	}
	p.notices(st.env.Err, res)
	if p.json {
		return p.sample(sample)
	}
	st.printf("Updated %s, due %s.\n", sample.Name, temporal.FormatDate(sample.DueDate, app.Location))
	return nil
}

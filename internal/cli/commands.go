// Package cli implements the curetrack command tree.
package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"curetrack/internal/media"
	"curetrack/pkg/domain"
)

// state is shared by every command of one tree.
type state struct {
	env  *Env
	root RootOptions
	out  OutputOptions
}

// New returns the root command wired to the process environment.
func New() *cobra.Command {
	return NewWithEnv(&Env{})
}

// NewWithEnv returns the root command running in env.
func NewWithEnv(env *Env) *cobra.Command {
	env.defaults()
	st := &state{env: env}
	st.out.out = env.Out

	cmd := &cobra.Command{
		Use:   "curetrack",
		Short: "Track concrete test samples through their curing period.",
		Long: `curetrack records concrete test samples, computes when each one finishes
curing, schedules reminders before the due date and mirrors the due day into
a local calendar.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	cmd.SetIn(env.In)
	cmd.SetOut(env.Out)
	cmd.SetErr(env.Err)
	addRootArgs(cmd, &st.root)
	addOutputArg(cmd, &st.out)

	addCommands(cmd, st)
	return cmd
}

// addCommands registers every subcommand on topLevel.
func addCommands(topLevel *cobra.Command, st *state) {
	addAdd(topLevel, st)
	addEdit(topLevel, st)
	addList(topLevel, st)
	addShow(topLevel, st)
	addDone(topLevel, st)
	addRemove(topLevel, st)
	addPhoto(topLevel, st)
	addStats(topLevel, st)
	addPresets(topLevel, st)
	addSettings(topLevel, st)
	addRemind(topLevel, st)
	addServe(topLevel, st)
	addReset(topLevel, st)
	addVersion(topLevel, st)
}

func (st *state) open(ctx context.Context, assumeYes bool) (*App, printer, error) {
	app, err := openApp(ctx, st.env, &st.root, assumeYes)
	if err != nil {
		return nil, printer{}, err
	}
	return app, st.printer(app), nil
}

func (st *state) printer(app *App) printer {
	return printer{out: st.env.Out, json: st.out.JSON, now: st.env.Now(), loc: app.Location}
}

func (st *state) printf(format string, args ...any) {
	if st.out.JSON {
		return
	}
	_, _ = fmt.Fprintf(st.env.Out, format, args...)
}

// pickPhoto imports the image at path. A cancelled pick is an error here
// because the path was asked for explicitly.
func pickPhoto(ctx context.Context, app *App, path string) (*domain.PhotoRef, error) {
	switch o := app.Photos.Pick(ctx, path).(type) {
	case media.Captured:
		return &domain.PhotoRef{URI: o.URI, Size: o.Size}, nil
	case media.Cancelled:
		if o.Err != nil {
			return nil, fmt.Errorf("photo %s not stored (%s): %w", path, o.Reason, o.Err)
		}
		return nil, fmt.Errorf("photo %s not stored (%s)", path, o.Reason)
	default:
		return nil, errors.New("photo: unexpected outcome")
	}
}

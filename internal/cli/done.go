package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func addDone(topLevel *cobra.Command, st *state) {
	cmd := &cobra.Command{
		Use:     "done <id>",
		Aliases: []string{"complete", "toggle"},
		Short:   "Toggle a sample between completed and open.",
		Long: `Toggle a sample between completed and open. Reminders and the calendar
event are left as they are.`,
		Example: `
curetrack done 0190a1b2
`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return st.out.HandleError(st.done(cmd, args[0]))
		},
	}

	topLevel.AddCommand(cmd)
}

func (st *state) done(cmd *cobra.Command, ref string) error {
	ctx := cmd.Context()
	app, p, err := st.open(ctx, false)
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	current, err := resolveSample(ctx, app.Service, ref)
	if err != nil {
		return err
	}
	sample, res, err := app.Service.ToggleComplete(ctx, current.ID)
	if err != nil {
		return err
	}
	p.notices(st.env.Err, res)
	if p.json {
		return p.sample(sample)
	}
	if sample.Completed {
		st.printf("%s marked completed.\n", sample.Name)
	} else {
		st.printf("%s reopened.\n", sample.Name)
	}
	return nil
}

func addRemove(topLevel *cobra.Command, st *state) {
	yo := &YesOptions{}

	cmd := &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"delete"},
		Short:   "Delete a sample with its reminders, calendar event and photo.",
		Example: `
curetrack rm 0190a1b2
curetrack rm 0190a1b2 --yes
`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return st.out.HandleError(st.remove(cmd, args[0], yo.Yes))
		},
	}
	addYesArg(cmd, yo)

	topLevel.AddCommand(cmd)
}

func (st *state) remove(cmd *cobra.Command, ref string, yes bool) error {
	ctx := cmd.Context()
	app, p, err := st.open(ctx, yes)
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	sample, err := resolveSample(ctx, app.Service, ref)
	if err != nil {
		return err
	}
	if !yes {
		ok, err := st.env.prompt(fmt.Sprintf("Delete %s and everything attached to it?", sample.Name))
		if err != nil {
			return err
		}
		if !ok {
			st.printf("Kept %s.\n", sample.Name)
			return nil
		}
	}
	res, err := app.Service.Delete(ctx, sample.ID)
	if err != nil {
		return err
	}
	p.notices(st.env.Err, res)
	if p.json {
		return p.encode(map[string]string{"deleted": sample.ID})
	}
	st.printf("Deleted %s.\n", sample.Name)
	return nil
}

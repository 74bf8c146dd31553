package cli

import (
	"github.com/spf13/cobra"
)

func addReset(topLevel *cobra.Command, st *state) {
	yo := &YesOptions{}

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete every sample with its reminders, calendar events and photos, and the settings.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return st.out.HandleError(st.reset(cmd, yo.Yes))
		},
	}
	addYesArg(cmd, yo)

	topLevel.AddCommand(cmd)
}

func (st *state) reset(cmd *cobra.Command, yes bool) error {
	ctx := cmd.Context()
	app, p, err := st.open(ctx, yes)
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	if !yes {
		ok, err := st.env.prompt("Delete ALL samples and settings? This cannot be undone.")
		if err != nil {
			return err
		}
		if !ok {
			st.printf("Nothing deleted.\n")
			return nil
		}
	}
	res, err := app.Service.Reset(ctx)
	if err != nil {
		return err
	}
	p.notices(st.env.Err, res)
	if p.json {
		return p.encode(map[string]bool{"reset": true})
	}
	st.printf("All data deleted.\n")
	return nil
}

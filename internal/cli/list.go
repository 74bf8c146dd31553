package cli

import (
	"github.com/spf13/cobra"

	"curetrack/internal/temporal"
	"curetrack/pkg/domain"
)

// ListOptions filters the sample list.
type ListOptions struct {
	Open    bool
	Overdue bool
}

func addList(topLevel *cobra.Command, st *state) {
	lo := &ListOptions{}

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List samples, newest first.",
		Example: `
curetrack list
curetrack list --overdue
curetrack list --json
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return st.out.HandleError(st.list(cmd, lo))
		},
	}
	cmd.Flags().BoolVar(&lo.Open, "open", false, "Only samples that are not completed.")
	cmd.Flags().BoolVar(&lo.Overdue, "overdue", false, "Only open samples past their due time.")

	topLevel.AddCommand(cmd)
}

func (st *state) list(cmd *cobra.Command, lo *ListOptions) error {
	ctx := cmd.Context()
	app, p, err := st.open(ctx, false)
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	samples, err := app.Service.List(ctx)
	if err != nil {
		return err
	}
	filtered := make([]domain.Sample, 0, len(samples))
	for _, s := range samples {
		if (lo.Open || lo.Overdue) && s.Completed {
			continue
		}
		if lo.Overdue && !temporal.IsOverdue(s.DueDate, p.now, s.Completed) {
			continue
		}
		filtered = append(filtered, s)
	}
	return p.samples(filtered)
}

func addShow(topLevel *cobra.Command, st *state) {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one sample.",
		Example: `
curetrack show 0190a1b2
`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return st.out.HandleError(st.show(cmd, args[0]))
		},
	}

	topLevel.AddCommand(cmd)
}

func (st *state) show(cmd *cobra.Command, ref string) error {
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
	return p.sample(sample)
}

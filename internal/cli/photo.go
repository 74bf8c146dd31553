package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

func addPhoto(topLevel *cobra.Command, st *state) {
	cmd := &cobra.Command{
		Use:   "photo",
		Short: "Manage sample photos.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	addPhotoAttach(cmd, st)
	addPhotoRemove(cmd, st)
	addPhotoURL(cmd, st)
	addPhotoPrune(cmd, st)

	topLevel.AddCommand(cmd)
}

func addPhotoAttach(parent *cobra.Command, st *state) {
	cmd := &cobra.Command{
		Use:   "attach <id> <path>",
		Short: "Attach or replace a sample's photo.",
		Example: `
curetrack photo attach 0190a1b2 ./cube.jpg
`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return st.out.HandleError(st.photoAttach(cmd, args[0], args[1]))
		},
	}
	parent.AddCommand(cmd)
}

func (st *state) photoAttach(cmd *cobra.Command, ref, path string) error {
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
	photo, err := pickPhoto(ctx, app, path)
	if err != nil {
		return err
	}
	sample, res, err := app.Service.ReplacePhoto(ctx, current.ID, photo)
	if err != nil {
		if derr := app.Photos.Delete(ctx, photo.URI); derr != nil {
			app.Logger.Warn("photo cleanup failed", "photo", photo.URI, "err", derr)
		}
		return err
	}
	p.notices(st.env.Err, res)
	if p.json {
		return p.sample(sample)
	}
	st.printf("Attached %s to %s.\n", photo.URI, sample.Name)
	return nil
}

func addPhotoRemove(parent *cobra.Command, st *state) {
	cmd := &cobra.Command{
		Use:   "remove <id>",
		Short: "Remove a sample's photo.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return st.out.HandleError(st.photoRemove(cmd, args[0]))
		},
	}
	parent.AddCommand(cmd)
}

func (st *state) photoRemove(cmd *cobra.Command, ref string) error {
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
	if current.Photo == nil {
		return fmt.Errorf("%s has no photo", current.Name)
	}
	sample, res, err := app.Service.ReplacePhoto(ctx, current.ID, nil)
	if err != nil {
		return err
	}
	p.notices(st.env.Err, res)
	if p.json {
		return p.sample(sample)
	}
	st.printf("Removed the photo of %s.\n", sample.Name)
	return nil
}

func addPhotoURL(parent *cobra.Command, st *state) {
	cmd := &cobra.Command{
		Use:   "url <id>",
		Short: "Print a time-limited link to a sample's photo.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return st.out.HandleError(st.photoURL(cmd, args[0]))
		},
	}
	parent.AddCommand(cmd)
}

func (st *state) photoURL(cmd *cobra.Command, ref string) error {
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
	if sample.Photo == nil {
		return fmt.Errorf("%s has no photo", sample.Name)
	}
	url, err := app.Photos.URL(ctx, sample.Photo.URI, app.Config.Blob.URLExpiry)
	if err != nil {
		return err
	}
	if p.json {
		return p.encode(map[string]string{"id": sample.ID, "url": url})
	}
	_, _ = fmt.Fprintln(st.env.Out, url)
	return nil
}

func addPhotoPrune(parent *cobra.Command, st *state) {
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete stored photos no sample refers to.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return st.out.HandleError(st.photoPrune(cmd))
		},
	}
	parent.AddCommand(cmd)
}

func (st *state) photoPrune(cmd *cobra.Command) error {
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
	referenced := make(map[string]bool, len(samples))
	for _, s := range samples {
		if uri := s.PhotoURI(); uri != "" {
			referenced[uri] = true
		}
	}
	orphans, err := app.Photos.Orphans(ctx, referenced)
	if err != nil {
		return err
	}
	pruned := make([]string, 0, len(orphans))
	var errs []error
	for _, o := range orphans {
		if err := app.Photos.Delete(ctx, o.Key); err != nil {
			errs = append(errs, err)
			continue
		}
		pruned = append(pruned, o.Key)
	}
	if p.json {
		if err := p.encode(map[string][]string{"pruned": pruned}); err != nil {
			return err
		}
	} else {
		st.printf("Pruned %d orphaned photo(s).\n", len(pruned))
	}
	return errors.Join(errs...)
}

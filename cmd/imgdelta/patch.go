package main

import (
	"context"

	"github.com/containerd/log"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/ntfstools/imgdelta/compression"
	"github.com/ntfstools/imgdelta/image"
)

type patchOptions struct {
	oldPath   string
	deltaPath string
	output    string
	compress  string
}

func newPatchCommand() *cobra.Command {
	var opts patchOptions
	cmd := &cobra.Command{
		Use:   "patch OLD [DELTA [NEW]]",
		Short: "Apply a delta to an image, rebuilding the image it was made from",
		Long: `Apply a delta to an ntfsclone image, rebuilding the image the delta
was computed from, byte for byte.

DELTA defaults to standard input and NEW to standard output; "-" selects
them explicitly. Compressed inputs are decompressed on the fly.`,
		Args: cobra.RangeArgs(1, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.oldPath = args[0]
			opts.deltaPath = argOrStdio(args, 1)
			opts.output = argOrStdio(args, 2)
			return runPatch(cmd.Context(), opts)
		},
	}
	installOutputFlags(cmd.Flags(), &opts.compress)
	return cmd
}

func runPatch(ctx context.Context, opts patchOptions) error {
	comp, err := compression.Parse(opts.compress)
	if err != nil {
		return err
	}
	if opts.oldPath == "-" && opts.deltaPath == "-" {
		return errors.New("cannot read both the image and the delta from stdin")
	}

	oldIn, err := openInput(opts.oldPath)
	if err != nil {
		return err
	}
	defer oldIn.Close()

	deltaIn, err := openInput(opts.deltaPath)
	if err != nil {
		return err
	}
	defer deltaIn.Close()

	out, err := openOutput(opts.output, comp)
	if err != nil {
		return err
	}
	defer out.release()

	stats, err := image.ApplyDelta(oldIn, deltaIn, out)
	if err != nil {
		return err
	}
	if err := out.commit(); err != nil {
		return err
	}

	log.G(ctx).WithFields(log.Fields{
		"unallocated": stats.Unallocated,
		"from-old":    stats.FromOld,
		"from-delta":  stats.FromDelta,
	}).Info("image rebuilt")
	return nil
}

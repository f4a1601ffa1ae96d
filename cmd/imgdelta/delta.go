package main

import (
	"context"

	"github.com/containerd/log"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/ntfstools/imgdelta/compression"
	"github.com/ntfstools/imgdelta/image"
)

type deltaOptions struct {
	oldPath  string
	newPath  string
	output   string
	compress string
}

func newDeltaCommand() *cobra.Command {
	var opts deltaOptions
	cmd := &cobra.Command{
		Use:   "delta OLD [NEW [DELTA]]",
		Short: "Compute the delta between two images of one device",
		Long: `Compute the delta between two ntfsclone images of one device.

NEW defaults to standard input and DELTA to standard output; "-" selects
them explicitly. Compressed inputs are decompressed on the fly.`,
		Args: cobra.RangeArgs(1, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.oldPath = args[0]
			opts.newPath = argOrStdio(args, 1)
			opts.output = argOrStdio(args, 2)
			return runDelta(cmd.Context(), opts)
		},
	}
	installOutputFlags(cmd.Flags(), &opts.compress)
	return cmd
}

// installOutputFlags adds the flags shared by the commands that write
// an image or delta stream.
func installOutputFlags(flags *pflag.FlagSet, compress *string) {
	flags.StringVarP(compress, "compress", "z", "none", `Compress the output ("none"|"gzip"|"bzip2"|"xz"|"zstd")`)
}

func runDelta(ctx context.Context, opts deltaOptions) error {
	comp, err := compression.Parse(opts.compress)
	if err != nil {
		return err
	}
	if opts.oldPath == "-" && opts.newPath == "-" {
		return errors.New("cannot read both input images from stdin")
	}

	oldIn, err := openInput(opts.oldPath)
	if err != nil {
		return err
	}
	defer oldIn.Close()

	newIn, err := openInput(opts.newPath)
	if err != nil {
		return err
	}
	defer newIn.Close()

	out, err := openOutput(opts.output, comp)
	if err != nil {
		return err
	}
	defer out.release()

	stats, err := image.CreateDelta(oldIn, newIn, out)
	if err != nil {
		return err
	}
	if err := out.commit(); err != nil {
		return err
	}

	log.G(ctx).WithFields(log.Fields{
		"unchanged": stats.Unchanged,
		"data":      stats.Data,
		"dropped":   stats.Dropped,
	}).Info("delta written")
	return nil
}

package main

import (
	"io"
	"os"

	"github.com/moby/term"
	"github.com/pkg/errors"

	"github.com/ntfstools/imgdelta/compression"
)

// argOrStdio returns the i'th positional argument, defaulting to "-"
// (stdin or stdout, as the position dictates) when it is absent.
func argOrStdio(args []string, i int) string {
	if i < len(args) {
		return args[i]
	}
	return "-"
}

// openInput opens path for reading, "-" meaning stdin, and wraps it so
// compressed files are decompressed on the fly. Closing the returned
// reader closes the file.
func openInput(path string) (io.ReadCloser, error) {
	if path == "-" {
		if term.IsTerminal(os.Stdin.Fd()) {
			return nil, errors.New("cannot read image data from a terminal")
		}
		return compression.DecompressStream(os.Stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	dec, err := compression.DecompressStream(f)
	if err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "%s", path)
	}
	return &inputFile{ReadCloser: dec, file: f}, nil
}

// inputFile closes the decompressor and then the file behind it.
type inputFile struct {
	io.ReadCloser
	file *os.File
}

func (in *inputFile) Close() error {
	err := in.ReadCloser.Close()
	if cerr := in.file.Close(); err == nil {
		err = cerr
	}
	return err
}

// output is the sink of an operation: a regular file or stdout,
// optionally wrapped in a compressor.
type output struct {
	f          *os.File
	compressor io.WriteCloser // nil when writing raw
	stdout     bool
	committed  bool
}

// openOutput opens path for writing, "-" meaning stdout. Files are
// created or truncated with mode 0666 before umask.
func openOutput(path string, comp compression.Compression) (*output, error) {
	out := &output{}
	if path == "-" {
		if term.IsTerminal(os.Stdout.Fd()) {
			return nil, errors.New("cowardly refusing to write image data to a terminal, redirect the output or name a file")
		}
		out.f = os.Stdout
		out.stdout = true
	} else {
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o666)
		if err != nil {
			return nil, err
		}
		out.f = f
	}
	if comp != compression.None {
		wc, err := compression.CompressStream(out.f, comp)
		if err != nil {
			out.release()
			return nil, err
		}
		out.compressor = wc
	}
	return out, nil
}

func (o *output) Write(p []byte) (int, error) {
	if o.compressor != nil {
		return o.compressor.Write(p)
	}
	return o.f.Write(p)
}

// commit finishes the output. The compressor is flushed and closed,
// then regular files are synced and closed; pipes and stdout have
// nothing to sync.
func (o *output) commit() error {
	o.committed = true
	if o.compressor != nil {
		if err := o.compressor.Close(); err != nil {
			return errors.Wrap(err, "finishing compression")
		}
	}
	if fi, err := o.f.Stat(); err == nil && fi.Mode().IsRegular() {
		if err := o.f.Sync(); err != nil {
			return errors.Wrap(err, "syncing output")
		}
	}
	if o.stdout {
		return nil
	}
	return o.f.Close()
}

// release drops the handles after a failed run. The partial output is
// left in place for the caller to discard; there is no staging.
func (o *output) release() {
	if o.committed {
		return
	}
	if o.compressor != nil {
		o.compressor.Close()
	}
	if !o.stdout {
		o.f.Close()
	}
}

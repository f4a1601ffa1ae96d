package image

import (
	"bufio"
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// clusterWriter encodes a cluster stream, merging consecutive clusters
// with the same run command into a single record. Data clusters are
// written immediately and never merged.
type clusterWriter struct {
	w      *bufio.Writer
	cmd    byte  // command of the open run; cmdData means none
	repeat int64 // clusters in the open run
}

func newClusterWriter(w io.Writer) *clusterWriter {
	return &clusterWriter{
		w:   bufio.NewWriterSize(w, streamBufSize),
		cmd: cmdData,
	}
}

// writeRun adds one cluster to the open run, closing it and opening a
// new one when the command changes.
func (cw *clusterWriter) writeRun(tag byte) error {
	if cw.cmd == tag {
		cw.repeat++
		return nil
	}
	if err := cw.flushRun(); err != nil {
		return err
	}
	cw.cmd = tag
	cw.repeat = 1
	return nil
}

// writeData writes one data cluster record. Any open run is closed
// first so records stay in cluster order.
func (cw *clusterWriter) writeData(payload []byte) error {
	if err := cw.flushRun(); err != nil {
		return err
	}
	if err := cw.w.WriteByte(cmdData); err != nil {
		return errors.Wrap(err, "writing command")
	}
	if _, err := cw.w.Write(payload); err != nil {
		return errors.Wrap(err, "writing cluster data")
	}
	return nil
}

// flushRun writes the record of the open run, if any. writeRun opens
// runs with one cluster, so a zero run length is never emitted.
func (cw *clusterWriter) flushRun() error {
	if cw.cmd == cmdData {
		return nil
	}
	var raw [8]byte
	binary.LittleEndian.PutUint64(raw[:], uint64(cw.repeat))
	if err := cw.w.WriteByte(cw.cmd); err != nil {
		return errors.Wrap(err, "writing command")
	}
	if _, err := cw.w.Write(raw[:]); err != nil {
		return errors.Wrap(err, "writing run length")
	}
	cw.cmd = cmdData
	cw.repeat = 0
	return nil
}

// finish closes the open run and flushes the stream buffer.
func (cw *clusterWriter) finish() error {
	if err := cw.flushRun(); err != nil {
		return err
	}
	return errors.Wrap(cw.w.Flush(), "flushing image stream")
}

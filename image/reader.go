package image

import (
	"bufio"
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// streamBufSize is the buffer placed in front of every cluster stream.
// Command tags are single bytes; reading them unbuffered would cost one
// syscall per record.
const streamBufSize = 32 * 1024

// clusterReader decodes a cluster stream one cluster at a time. After a
// successful next the current cluster's command is in cmd and, for data
// clusters, its payload is in data. The payload buffer is reused by the
// following next.
type clusterReader struct {
	name   string // role of the stream in error messages
	r      *bufio.Reader
	hdr    *Header
	cmd    byte
	repeat int64 // clusters of the current run not yet surfaced
	data   []byte
}

func newClusterReader(r io.Reader, hdr *Header, name string) *clusterReader {
	return &clusterReader{
		name: name,
		r:    bufio.NewReaderSize(r, streamBufSize),
		hdr:  hdr,
		data: make([]byte, hdr.ClusterSize),
	}
}

// next advances the stream by one cluster. Runs are unfolded: a run
// record covering n clusters surfaces as n consecutive clusters with
// the same command. Drop commands appear only in delta streams and are
// rejected unless allowDrop is set.
func (cr *clusterReader) next(allowDrop bool) error {
	if cr.repeat > 0 {
		cr.repeat--
		return nil
	}

	tag, err := cr.r.ReadByte()
	if err != nil {
		return errors.Wrapf(shortRead(err), "reading command from %s", cr.name)
	}

	switch {
	case tag == cmdSkip, tag == cmdDrop && allowDrop:
		var raw [8]byte
		if _, err := io.ReadFull(cr.r, raw[:]); err != nil {
			return errors.Wrapf(shortRead(err), "reading run length from %s", cr.name)
		}
		n := int64(binary.LittleEndian.Uint64(raw[:]))
		if n <= 0 {
			return errors.Errorf("invalid run length %d after command %d in %s", n, tag, cr.name)
		}
		cr.cmd = tag
		cr.repeat = n - 1
	case tag == cmdData:
		if _, err := io.ReadFull(cr.r, cr.data); err != nil {
			return errors.Wrapf(shortRead(err), "reading cluster data from %s", cr.name)
		}
		cr.cmd = cmdData
	default:
		return errors.Errorf("invalid command %d in %s", tag, cr.name)
	}
	return nil
}

// leftover is the number of clusters decoded from a run record but
// never surfaced through next. Anything nonzero after the last expected
// cluster means the stream and its header disagree.
func (cr *clusterReader) leftover() int64 {
	return cr.repeat
}

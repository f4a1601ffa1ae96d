// Package image reads and writes ntfsclone special images and computes
// and applies deltas between them.
//
// A special image is a header followed by a run-length encoded cluster
// stream. A delta is the same container with a third stream command,
// drop, marking clusters that became unallocated. Deltas are produced
// by CreateDelta from two images of the same device and turned back
// into an image by ApplyDelta.
package image

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"

	"github.com/pkg/errors"
)

// Header is the fixed header shared by base images and delta files.
// Extra carries the opaque metadata block stored between the fixed
// header and the first cluster command, verbatim.
type Header struct {
	Kind          Kind
	Major         uint8
	Minor         uint8
	ClusterSize   uint32
	DeviceSize    int64
	Clusters      int64
	ClustersInUse int64
	Extra         []byte
}

// BackupBootSector reports whether the cluster stream carries one extra
// backup boot sector cluster after the last counted cluster (format
// version 10.1).
func (h *Header) BackupBootSector() bool {
	return h.Minor == verMinorNew
}

// ErrHeaderMismatch is returned when the two inputs of an operation do
// not describe the same device.
var ErrHeaderMismatch = errors.New("input images do not describe the same device")

// sameGeometry reports whether two headers describe the same device:
// equal cluster size, device size and cluster count, and byte-identical
// extra metadata. The in-use count and the version bytes are not
// compared; both legitimately differ between snapshots of one device.
func (h *Header) sameGeometry(other *Header) bool {
	return h.ClusterSize == other.ClusterSize &&
		h.DeviceSize == other.DeviceSize &&
		h.Clusters == other.Clusters &&
		bytes.Equal(h.Extra, other.Extra)
}

// DecodeHeader reads and validates one header from r, including the
// extra metadata block. The reader is left positioned at the first
// cluster command.
func DecodeHeader(r io.Reader) (*Header, error) {
	buf := make([]byte, headerSize)
	if _, err := io.ReadFull(r, buf[:headerSize-4]); err != nil {
		return nil, errors.Wrap(shortRead(err), "reading image header")
	}

	h := &Header{}
	switch {
	case bytes.Equal(buf[:magicSize], magicImage):
		h.Kind = KindImage
	case bytes.Equal(buf[:magicSize], magicDelta):
		h.Kind = KindDelta
	default:
		return nil, errors.Errorf("unknown magic %q in image header", buf[:magicSize])
	}

	h.Major = buf[16]
	h.Minor = buf[17]
	if h.Major != verMajor || h.Minor > verMinorNew {
		return nil, errors.Errorf("unsupported %s format version %d.%d", h.Kind, h.Major, h.Minor)
	}

	h.ClusterSize = binary.LittleEndian.Uint32(buf[18:22])
	h.DeviceSize = int64(binary.LittleEndian.Uint64(buf[22:30]))
	h.Clusters = int64(binary.LittleEndian.Uint64(buf[30:38]))
	h.ClustersInUse = int64(binary.LittleEndian.Uint64(buf[38:46]))

	if h.ClusterSize == 0 || h.ClusterSize > MaxClusterSize {
		return nil, errors.Errorf("invalid cluster size %d in %s header", h.ClusterSize, h.Kind)
	}
	if h.DeviceSize < 0 {
		return nil, errors.Errorf("invalid device size %d in %s header", h.DeviceSize, h.Kind)
	}
	if h.Clusters < 0 {
		return nil, errors.Errorf("invalid cluster count %d in %s header", h.Clusters, h.Kind)
	}
	if h.Clusters > h.DeviceSize/int64(h.ClusterSize) {
		return nil, errors.Errorf("cluster count %d in %s header exceeds the %d byte device", h.Clusters, h.Kind, h.DeviceSize)
	}
	// A format 10.1 stream carries Clusters+1 cluster records; the
	// extended count must not wrap.
	if h.BackupBootSector() && h.Clusters == math.MaxInt64 {
		return nil, errors.Errorf("cluster count %d in %s header leaves no room for the backup boot sector", h.Clusters, h.Kind)
	}

	if _, err := io.ReadFull(r, buf[headerSize-4:]); err != nil {
		return nil, errors.Wrap(shortRead(err), "reading image data offset")
	}
	offset := binary.LittleEndian.Uint32(buf[headerSize-4:])
	if offset < headerSize {
		return nil, errors.Errorf("image data offset %d overlaps the %d byte header", offset, headerSize)
	}
	if extra := offset - headerSize; extra > 0 {
		h.Extra = make([]byte, extra)
		if _, err := io.ReadFull(r, h.Extra); err != nil {
			return nil, errors.Wrap(shortRead(err), "reading extra header metadata")
		}
	}
	return h, nil
}

// Encode writes the header in wire form: the magic of the header's
// Kind, the fixed fields and the extra metadata block. It is the exact
// inverse of DecodeHeader.
func (h *Header) Encode(w io.Writer) error {
	buf := make([]byte, headerSize)
	copy(buf, h.Kind.magic())
	buf[16] = h.Major
	buf[17] = h.Minor
	binary.LittleEndian.PutUint32(buf[18:22], h.ClusterSize)
	binary.LittleEndian.PutUint64(buf[22:30], uint64(h.DeviceSize))
	binary.LittleEndian.PutUint64(buf[30:38], uint64(h.Clusters))
	binary.LittleEndian.PutUint64(buf[38:46], uint64(h.ClustersInUse))
	binary.LittleEndian.PutUint32(buf[46:50], headerSize+uint32(len(h.Extra)))
	if _, err := w.Write(buf); err != nil {
		return errors.Wrap(err, "writing image header")
	}
	if len(h.Extra) > 0 {
		if _, err := w.Write(h.Extra); err != nil {
			return errors.Wrap(err, "writing extra header metadata")
		}
	}
	return nil
}

// shortRead maps io.EOF to io.ErrUnexpectedEOF. Streams end only where
// the header says they do; an earlier end is a truncation no matter
// where the record boundary fell.
func shortRead(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}

package image

// On-disk constants of the ntfsclone special image format, version 10.
// Every multi-byte field in the header and the cluster stream is
// little-endian, independent of the host.
const (
	// magicSize is the length of the leading magic shared by base
	// images and delta files.
	magicSize = 16

	// headerSize is the size of the fixed header: the magic, two
	// version bytes, cluster size, device size, cluster count, in-use
	// count and the offset to the image data.
	headerSize = 50

	verMajor    = 10
	verMinorOld = 0 // stream ends after the last counted cluster
	verMinorNew = 1 // one backup boot sector cluster follows the last counted cluster

	// MaxClusterSize is the largest cluster size NTFS allows.
	MaxClusterSize = 64 * 1024
)

// Command tags of the cluster stream. Skip and drop tags are followed
// by a little-endian int64 holding the total number of clusters in the
// run; a data tag is followed by exactly one cluster of payload.
const (
	cmdSkip byte = 0 // run of unallocated clusters
	cmdData byte = 1 // one allocated cluster, payload follows
	cmdDrop byte = 2 // run of clusters that became unallocated, delta streams only
)

var (
	magicImage = []byte("\x00ntfsclone-image")
	magicDelta = []byte("\x00ntfsclone-delta")
)

// Kind tells base images and delta files apart. It is derived from the
// magic on decode and selects the magic written by Header.Encode.
type Kind int

const (
	// KindImage is an ntfsclone special image of a device.
	KindImage Kind = iota
	// KindDelta is a delta between two images of the same device.
	KindDelta
)

func (k Kind) String() string {
	if k == KindDelta {
		return "delta"
	}
	return "image"
}

func (k Kind) magic() []byte {
	if k == KindDelta {
		return magicDelta
	}
	return magicImage
}

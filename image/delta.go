package image

import (
	"bytes"
	"io"
)

// DeltaStats counts the clusters recorded in a delta by command.
type DeltaStats struct {
	Unchanged int64 // identical in both images, stored as skip runs
	Data      int64 // changed or newly allocated, payload carried in the delta
	Dropped   int64 // allocated in the old image only, stored as drop runs
}

// CreateDelta reads two images of the same device and writes a delta
// that turns the first into the second. Payloads are carried only for
// clusters that differ; clusters that became unallocated are recorded
// as drop runs. The delta's header is a copy of the new image's header,
// re-tagged with the delta magic.
func CreateDelta(oldImage, newImage io.Reader, delta io.Writer) (DeltaStats, error) {
	var stats DeltaStats

	oldIn, newIn, err := inputPair(oldImage, KindImage, "old image", newImage, KindImage, "new image")
	if err != nil {
		return stats, err
	}

	hdr := *newIn.hdr
	hdr.Kind = KindDelta
	if err := hdr.Encode(delta); err != nil {
		return stats, err
	}
	out := newClusterWriter(delta)

	oldTail := oldIn.hdr.BackupBootSector()
	newTail := newIn.hdr.BackupBootSector()
	count := oldIn.hdr.Clusters
	if oldTail && newTail {
		count++
	}

	for pos := int64(0); pos < count; pos++ {
		if err := oldIn.next(false); err != nil {
			return stats, err
		}
		if err := newIn.next(false); err != nil {
			return stats, err
		}
		switch {
		case oldIn.cmd == newIn.cmd && (oldIn.cmd == cmdSkip || bytes.Equal(oldIn.data, newIn.data)):
			err = out.writeRun(cmdSkip)
			stats.Unchanged++
		case newIn.cmd == cmdSkip:
			err = out.writeRun(cmdDrop)
			stats.Dropped++
		default:
			err = out.writeData(newIn.data)
			stats.Data++
		}
		if err != nil {
			return stats, err
		}
	}

	switch {
	case oldTail && !newTail:
		// The old image's trailing sector has no counterpart; read
		// it so the stream is consumed exactly.
		if err := oldIn.next(false); err != nil {
			return stats, err
		}
	case newTail && !oldTail:
		if err := copyTail(newIn, out); err != nil {
			return stats, err
		}
		stats.Data++
	}

	return stats, finalize(oldIn, newIn, out)
}

package image

import "io"

// PatchStats counts the clusters written to a reconstructed image by
// origin.
type PatchStats struct {
	Unallocated int64 // skip runs in the output
	FromOld     int64 // unchanged clusters re-read from the old image
	FromDelta   int64 // payloads taken from the delta
}

// ApplyDelta reads an image and a delta created against it and writes
// the image the delta was created from, byte for byte. Clusters the
// delta marks unchanged are re-materialized from the old image; dropped
// clusters become unallocated. The output header is a copy of the
// delta's header, re-tagged with the image magic.
func ApplyDelta(oldImage, delta io.Reader, newImage io.Writer) (PatchStats, error) {
	var stats PatchStats

	oldIn, deltaIn, err := inputPair(oldImage, KindImage, "old image", delta, KindDelta, "delta")
	if err != nil {
		return stats, err
	}

	hdr := *deltaIn.hdr
	hdr.Kind = KindImage
	if err := hdr.Encode(newImage); err != nil {
		return stats, err
	}
	out := newClusterWriter(newImage)

	oldTail := oldIn.hdr.BackupBootSector()
	deltaTail := deltaIn.hdr.BackupBootSector()
	count := oldIn.hdr.Clusters
	if oldTail && deltaTail {
		count++
	}

	for pos := int64(0); pos < count; pos++ {
		if err := oldIn.next(false); err != nil {
			return stats, err
		}
		if err := deltaIn.next(true); err != nil {
			return stats, err
		}
		switch {
		case deltaIn.cmd == cmdDrop || (oldIn.cmd == cmdSkip && deltaIn.cmd == cmdSkip):
			err = out.writeRun(cmdSkip)
			stats.Unallocated++
		case deltaIn.cmd == cmdSkip:
			err = out.writeData(oldIn.data)
			stats.FromOld++
		default:
			err = out.writeData(deltaIn.data)
			stats.FromDelta++
		}
		if err != nil {
			return stats, err
		}
	}

	switch {
	case oldTail && !deltaTail:
		// The old image's trailing sector has no counterpart; read
		// it so the stream is consumed exactly.
		if err := oldIn.next(false); err != nil {
			return stats, err
		}
	case deltaTail && !oldTail:
		if err := copyTail(deltaIn, out); err != nil {
			return stats, err
		}
		stats.FromDelta++
	}

	return stats, finalize(oldIn, deltaIn, out)
}

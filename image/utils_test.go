package image

import (
	"bytes"
	"encoding/binary"
	"testing"

	"gotest.tools/v3/assert"
)

// testHeader returns a header whose device geometry is derived from the
// cluster count and size.
func testHeader(kind Kind, minor uint8, clusterSize uint32, clusters int64, extra []byte) *Header {
	return &Header{
		Kind:          kind,
		Major:         verMajor,
		Minor:         minor,
		ClusterSize:   clusterSize,
		DeviceSize:    clusters * int64(clusterSize),
		Clusters:      clusters,
		ClustersInUse: clusters,
		Extra:         extra,
	}
}

// cluster returns a payload of n bytes, all set to b.
func cluster(n uint32, b byte) []byte {
	return bytes.Repeat([]byte{b}, int(n))
}

// rawRun encodes one run record.
func rawRun(tag byte, n int64) []byte {
	rec := make([]byte, 9)
	rec[0] = tag
	binary.LittleEndian.PutUint64(rec[1:], uint64(n))
	return rec
}

// rawData encodes one data cluster record.
func rawData(payload ...byte) []byte {
	return append([]byte{cmdData}, payload...)
}

// rawImage assembles a wire-format file from a header and records.
func rawImage(t *testing.T, hdr *Header, records ...[]byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	assert.NilError(t, hdr.Encode(&buf))
	for _, rec := range records {
		buf.Write(rec)
	}
	return buf.Bytes()
}

// encodeImage writes a complete image through the canonical encoder:
// one cluster per entry, nil meaning unallocated, plus an optional
// trailing backup boot sector.
func encodeImage(hdr *Header, clusters [][]byte, tail []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := hdr.Encode(&buf); err != nil {
		return nil, err
	}
	cw := newClusterWriter(&buf)
	for _, c := range clusters {
		if c == nil {
			if err := cw.writeRun(cmdSkip); err != nil {
				return nil, err
			}
			continue
		}
		if err := cw.writeData(c); err != nil {
			return nil, err
		}
	}
	if tail != nil {
		if err := cw.writeData(tail); err != nil {
			return nil, err
		}
	}
	if err := cw.finish(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

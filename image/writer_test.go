package image

import (
	"bytes"
	"testing"

	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"
)

func TestClusterWriterMergesRuns(t *testing.T) {
	var buf bytes.Buffer
	cw := newClusterWriter(&buf)

	for i := 0; i < 3; i++ {
		assert.NilError(t, cw.writeRun(cmdSkip))
	}
	assert.NilError(t, cw.writeData([]byte{0xa1, 0xa2}))
	assert.NilError(t, cw.writeRun(cmdDrop))
	assert.NilError(t, cw.writeRun(cmdDrop))
	assert.NilError(t, cw.writeRun(cmdSkip))
	assert.NilError(t, cw.finish())

	want := bytes.Join([][]byte{
		rawRun(cmdSkip, 3),
		rawData(0xa1, 0xa2),
		rawRun(cmdDrop, 2),
		rawRun(cmdSkip, 1),
	}, nil)
	assert.Check(t, is.DeepEqual(buf.Bytes(), want))
}

func TestClusterWriterDataIsNeverMerged(t *testing.T) {
	var buf bytes.Buffer
	cw := newClusterWriter(&buf)
	assert.NilError(t, cw.writeData([]byte{1, 2}))
	assert.NilError(t, cw.writeData([]byte{1, 2}))
	assert.NilError(t, cw.finish())

	want := append(rawData(1, 2), rawData(1, 2)...)
	assert.Check(t, is.DeepEqual(buf.Bytes(), want))
}

func TestClusterWriterEmptyStream(t *testing.T) {
	var buf bytes.Buffer
	cw := newClusterWriter(&buf)
	assert.NilError(t, cw.finish())
	assert.Check(t, is.Equal(buf.Len(), 0))
}

func TestCodecInverse(t *testing.T) {
	hdr := testHeader(KindDelta, verMinorOld, 2, 7, nil)
	seq := []byte{cmdSkip, cmdSkip, cmdData, cmdDrop, cmdDrop, cmdData, cmdSkip}
	payload := map[int][]byte{2: {5, 6}, 5: {7, 8}}

	var buf bytes.Buffer
	cw := newClusterWriter(&buf)
	for i, c := range seq {
		if c == cmdData {
			assert.NilError(t, cw.writeData(payload[i]))
			continue
		}
		assert.NilError(t, cw.writeRun(c))
	}
	assert.NilError(t, cw.finish())

	cr := newClusterReader(&buf, hdr, "delta")
	for i, want := range seq {
		assert.NilError(t, cr.next(true))
		assert.Check(t, is.Equal(cr.cmd, want), "cluster %d", i)
		if want == cmdData {
			assert.Check(t, is.DeepEqual(cr.data, payload[i]))
		}
	}
	assert.Check(t, is.Equal(cr.leftover(), int64(0)))
}

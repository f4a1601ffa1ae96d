package compression

import (
	"bytes"
	"io"
	"testing"

	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"
)

func TestDetect(t *testing.T) {
	for _, tc := range []struct {
		doc    string
		source []byte
		want   Compression
	}{
		{
			doc:  "empty source",
			want: None,
		},
		{
			doc:    "raw image",
			source: []byte("\x00ntfsclone-image"),
			want:   None,
		},
		{
			doc:    "bzip2",
			source: []byte("BZh91AY&SY"),
			want:   Bzip2,
		},
		{
			doc:    "gzip",
			source: []byte{0x1F, 0x8B, 0x08, 0x00, 0x00, 0x00, 0x00, 0x00},
			want:   Gzip,
		},
		{
			doc:    "xz",
			source: []byte{0xFD, 0x37, 0x7A, 0x58, 0x5A, 0x00, 0x00, 0x04},
			want:   Xz,
		},
		{
			doc:    "zstd frame",
			source: []byte{0x28, 0xB5, 0x2F, 0xFD, 0x24, 0x00},
			want:   Zstd,
		},
		{
			doc:    "zstd skippable frame",
			source: []byte{0x50, 0x2A, 0x4D, 0x18, 0x04, 0x00, 0x00, 0x00, 0x5D, 0x00, 0x00, 0x00},
			want:   Zstd,
		},
		{
			doc:    "zstd skippable frame, highest magic",
			source: []byte{0x5F, 0x2A, 0x4D, 0x18, 0x00, 0x00, 0x00, 0x00},
			want:   Zstd,
		},
		{
			doc:    "zstd skippable magic cut short",
			source: []byte{0x50, 0x2A, 0x4D, 0x18},
			want:   None,
		},
		{
			doc:    "magic past the skippable range",
			source: []byte{0x60, 0x2A, 0x4D, 0x18, 0x00, 0x00, 0x00, 0x00},
			want:   None,
		},
	} {
		t.Run(tc.doc, func(t *testing.T) {
			assert.Check(t, is.Equal(Detect(tc.source), tc.want))
		})
	}
}

func TestParse(t *testing.T) {
	for _, tc := range []struct {
		input string
		want  Compression
	}{
		{input: "", want: None},
		{input: "none", want: None},
		{input: "bzip2", want: Bzip2},
		{input: "gzip", want: Gzip},
		{input: "xz", want: Xz},
		{input: "zstd", want: Zstd},
	} {
		c, err := Parse(tc.input)
		assert.NilError(t, err)
		assert.Check(t, is.Equal(c, tc.want))
	}

	_, err := Parse("lz4")
	assert.Error(t, err, `unsupported compression algorithm "lz4"`)
}

func TestExtension(t *testing.T) {
	assert.Check(t, is.Equal(None.Extension(), "img"))
	assert.Check(t, is.Equal(Bzip2.Extension(), "img.bz2"))
	assert.Check(t, is.Equal(Gzip.Extension(), "img.gz"))
	assert.Check(t, is.Equal(Xz.Extension(), "img.xz"))
	assert.Check(t, is.Equal(Zstd.Extension(), "img.zst"))
	assert.Check(t, is.Equal(Compression(-1).Extension(), ""))
}

func TestCompressDecompressRoundTrip(t *testing.T) {
	payload := append([]byte("\x00ntfsclone-image"), bytes.Repeat([]byte{0xA5, 0x00, 0xFF}, 4096)...)

	for _, c := range []Compression{None, Bzip2, Gzip, Xz, Zstd} {
		t.Run(c.String(), func(t *testing.T) {
			var buf bytes.Buffer
			compressor, err := CompressStream(&buf, c)
			assert.NilError(t, err)
			_, err = compressor.Write(payload)
			assert.NilError(t, err)
			assert.NilError(t, compressor.Close())

			assert.Check(t, is.Equal(Detect(buf.Bytes()), c))

			r, err := DecompressStream(&buf)
			assert.NilError(t, err)
			defer r.Close()
			got, err := io.ReadAll(r)
			assert.NilError(t, err)
			assert.Check(t, is.DeepEqual(got, payload))
		})
	}
}

// Streams shorter than the sniff window must pass through untouched.
func TestDecompressStreamShortInput(t *testing.T) {
	r, err := DecompressStream(bytes.NewReader([]byte("abc")))
	assert.NilError(t, err)
	defer r.Close()
	got, err := io.ReadAll(r)
	assert.NilError(t, err)
	assert.Check(t, is.DeepEqual(got, []byte("abc")))

	r, err = DecompressStream(bytes.NewReader(nil))
	assert.NilError(t, err)
	defer r.Close()
	got, err = io.ReadAll(r)
	assert.NilError(t, err)
	assert.Check(t, is.Len(got, 0))
}

func TestDecompressStreamDoubleClose(t *testing.T) {
	var buf bytes.Buffer
	compressor, err := CompressStream(&buf, Gzip)
	assert.NilError(t, err)
	_, err = compressor.Write([]byte("payload"))
	assert.NilError(t, err)
	assert.NilError(t, compressor.Close())

	r, err := DecompressStream(&buf)
	assert.NilError(t, err)
	assert.NilError(t, r.Close())
	// The second close is logged and swallowed.
	assert.NilError(t, r.Close())
}

func TestCompressStreamUnsupported(t *testing.T) {
	_, err := CompressStream(io.Discard, Compression(-1))
	assert.Error(t, err, "unsupported compression format unknown")
}

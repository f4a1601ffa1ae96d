// Package compression wraps image streams so the rest of the tool
// always sees raw bytes: inputs are sniffed and decompressed
// transparently, outputs are compressed on request. ntfsclone images
// are routinely stored and piped through gzip and friends.
package compression

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"runtime/debug"
	"sync/atomic"

	"github.com/containerd/log"
	"github.com/dsnet/compress/bzip2"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

// Compression is the state represents if compressed or not.
type Compression int

const (
	None  Compression = 0 // None represents the uncompressed.
	Bzip2 Compression = 1 // Bzip2 is bzip2 compression algorithm.
	Gzip  Compression = 2 // Gzip is gzip compression algorithm.
	Xz    Compression = 3 // Xz is xz compression algorithm.
	Zstd  Compression = 4 // Zstd is zstd compression algorithm.
)

// String returns the name of the algorithm as accepted by Parse.
func (c Compression) String() string {
	switch c {
	case None:
		return "none"
	case Bzip2:
		return "bzip2"
	case Gzip:
		return "gzip"
	case Xz:
		return "xz"
	case Zstd:
		return "zstd"
	}
	return "unknown"
}

// Extension returns the extension of a file that uses the specified compression algorithm.
func (c Compression) Extension() string {
	switch c {
	case None:
		return "img"
	case Bzip2:
		return "img.bz2"
	case Gzip:
		return "img.gz"
	case Xz:
		return "img.xz"
	case Zstd:
		return "img.zst"
	}
	return ""
}

// Parse returns the Compression named by s. The empty string means
// None.
func Parse(s string) (Compression, error) {
	switch s {
	case "", "none":
		return None, nil
	case "bzip2":
		return Bzip2, nil
	case "gzip":
		return Gzip, nil
	case "xz":
		return Xz, nil
	case "zstd":
		return Zstd, nil
	default:
		return None, fmt.Errorf("unsupported compression algorithm %q", s)
	}
}

var (
	bzip2Magic = []byte{0x42, 0x5A, 0x68}
	gzipMagic  = []byte{0x1F, 0x8B, 0x08}
	xzMagic    = []byte{0xFD, 0x37, 0x7A, 0x58, 0x5A, 0x00}
	zstdMagic  = []byte{0x28, 0xB5, 0x2F, 0xFD}
)

// Detect returns the compression algorithm of source from its leading
// magic bytes. Raw images never collide with the magics; they start
// with a NUL.
func Detect(source []byte) Compression {
	switch {
	case bytes.HasPrefix(source, bzip2Magic):
		return Bzip2
	case bytes.HasPrefix(source, gzipMagic):
		return Gzip
	case bytes.HasPrefix(source, xzMagic):
		return Xz
	case isZstd(source):
		return Zstd
	default:
		return None
	}
}

// isZstd matches both frame formats defined by Zstandard: Zstandard
// frames and skippable frames.
// See https://datatracker.ietf.org/doc/html/rfc8878#section-3.
func isZstd(source []byte) bool {
	if bytes.HasPrefix(source, zstdMagic) {
		// Zstandard frame
		return true
	}
	// skippable frame: magic numbers 0x184D2A50 to 0x184D2A5F.
	return len(source) >= 8 && binary.LittleEndian.Uint32(source[:4])&0xFFFFFFF0 == 0x184D2A50
}

type readCloserWrapper struct {
	io.Reader
	closer func() error
	closed atomic.Bool
}

func (r *readCloserWrapper) Close() error {
	if !r.closed.CompareAndSwap(false, true) {
		log.G(context.TODO()).Error("subsequent attempt to close readCloserWrapper")
		if log.GetLevel() >= log.DebugLevel {
			log.G(context.TODO()).Errorf("stack trace: %s", string(debug.Stack()))
		}
		return nil
	}
	if r.closer != nil {
		return r.closer()
	}
	return nil
}

// DecompressStream wraps stream so reads see the raw image bytes no
// matter how the file was compressed. Plain streams pass through.
// Closing the returned reader releases the decompressor but leaves the
// underlying stream open.
func DecompressStream(stream io.Reader) (io.ReadCloser, error) {
	buf := bufio.NewReaderSize(stream, 32*1024)
	bs, err := buf.Peek(10)
	if err != nil && err != io.EOF {
		// Peek returns io.EOF together with whatever is available
		// when the stream is shorter than the sniff window; Detect
		// works on the short prefix and the truncation surfaces on
		// the first read.
		return nil, err
	}

	switch compression := Detect(bs); compression {
	case None:
		return &readCloserWrapper{Reader: buf}, nil
	case Bzip2:
		bz2Reader, err := bzip2.NewReader(buf, nil)
		if err != nil {
			return nil, err
		}
		return &readCloserWrapper{Reader: bz2Reader, closer: bz2Reader.Close}, nil
	case Gzip:
		gzReader, err := gzip.NewReader(buf)
		if err != nil {
			return nil, err
		}
		return &readCloserWrapper{Reader: gzReader, closer: gzReader.Close}, nil
	case Xz:
		xzReader, err := xz.NewReader(buf)
		if err != nil {
			return nil, err
		}
		return &readCloserWrapper{Reader: xzReader}, nil
	case Zstd:
		zstdReader, err := zstd.NewReader(buf)
		if err != nil {
			return nil, err
		}
		return &readCloserWrapper{Reader: zstdReader, closer: func() error {
			zstdReader.Close()
			return nil
		}}, nil
	default:
		return nil, fmt.Errorf("unsupported compression format %s", compression)
	}
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }

// CompressStream compresses writes to dest with the specified
// compression algorithm. Closing the returned writer flushes the
// compressor but leaves dest open.
func CompressStream(dest io.Writer, compression Compression) (io.WriteCloser, error) {
	switch compression {
	case None:
		return nopWriteCloser{dest}, nil
	case Bzip2:
		return bzip2.NewWriter(dest, nil)
	case Gzip:
		return gzip.NewWriter(dest), nil
	case Xz:
		return xz.NewWriter(dest)
	case Zstd:
		return zstd.NewWriter(dest)
	default:
		return nil, fmt.Errorf("unsupported compression format %s", compression)
	}
}

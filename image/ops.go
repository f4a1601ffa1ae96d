package image

import (
	"io"

	"github.com/pkg/errors"
)

// inputPair decodes and cross-checks the headers of the two inputs of
// an operation and returns cluster readers positioned at their first
// command. Nothing past the headers has been read on return.
func inputPair(first io.Reader, firstKind Kind, firstName string, second io.Reader, secondKind Kind, secondName string) (*clusterReader, *clusterReader, error) {
	h1, err := decodeInputHeader(first, firstKind, firstName)
	if err != nil {
		return nil, nil, err
	}
	h2, err := decodeInputHeader(second, secondKind, secondName)
	if err != nil {
		return nil, nil, err
	}
	if !h1.sameGeometry(h2) {
		return nil, nil, errors.Wrapf(ErrHeaderMismatch, "%s and %s", firstName, secondName)
	}
	return newClusterReader(first, h1, firstName), newClusterReader(second, h2, secondName), nil
}

func decodeInputHeader(r io.Reader, kind Kind, name string) (*Header, error) {
	h, err := DecodeHeader(r)
	if err != nil {
		return nil, errors.Wrapf(err, "%s", name)
	}
	if h.Kind != kind {
		return nil, errors.Errorf("%s: file is an ntfsclone %s, expected %s", name, h.Kind, kind)
	}
	return h, nil
}

// copyTail reads the trailing backup boot sector from in and writes it
// to out. The trailing sector is always transmitted as a data record; a
// run reaching into it means the stream and its header disagree.
func copyTail(in *clusterReader, out *clusterWriter) error {
	if err := in.next(false); err != nil {
		return err
	}
	if in.cmd != cmdData {
		return errors.Errorf("%s: backup boot sector is not a data cluster", in.name)
	}
	return out.writeData(in.data)
}

// finalize verifies that both inputs were consumed exactly and flushes
// the output stream.
func finalize(first, second *clusterReader, out *clusterWriter) error {
	if n := first.leftover(); n > 0 {
		return errors.Errorf("%s has %d remaining unused clusters at the end", first.name, n)
	}
	if n := second.leftover(); n > 0 {
		return errors.Errorf("%s has %d remaining unused clusters at the end", second.name, n)
	}
	return out.finish()
}

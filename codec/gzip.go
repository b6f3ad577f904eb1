package codec

import (
	"bytes"
	"compress/gzip"
	"errors"
	"io"
)

var (
	gzipMagic = []byte("CMP1g")

	ErrCorruptCompression = errors.New("codec: corrupt compressed payload")
)

// Gzip compresses the output of Inner when it is at least MinSize bytes.
// Payloads written without compression decode unchanged, so MinSize can be
// raised or lowered without invalidating stored values.
type Gzip[V any] struct {
	Inner   Codec[V]
	MinSize int
}

func (c Gzip[V]) Encode(v V) ([]byte, error) {
	raw, err := c.Inner.Encode(v)
	if err != nil {
		return nil, err
	}
	if len(raw) < c.MinSize {
		return raw, nil
	}
	var buf bytes.Buffer
	buf.Write(gzipMagic)
	zw, _ := gzip.NewWriterLevel(&buf, gzip.BestSpeed)
	if _, err := zw.Write(raw); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (c Gzip[V]) Decode(b []byte) (V, error) {
	if !bytes.HasPrefix(b, gzipMagic) {
		return c.Inner.Decode(b)
	}
	var zero V
	gr, err := gzip.NewReader(bytes.NewReader(b[len(gzipMagic):]))
	if err != nil {
		return zero, ErrCorruptCompression
	}
	defer gr.Close()
	raw, err := io.ReadAll(gr)
	if err != nil {
		return zero, ErrCorruptCompression
	}
	return c.Inner.Decode(raw)
}

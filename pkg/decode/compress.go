package decode

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression identifies a stream's compression.
type Compression string

// Detected compressions.
const (
	CompressionNone Compression = "none"
	CompressionZstd Compression = "zstd"
	CompressionLZ4  Compression = "lz4"
)

var (
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
	lz4Magic  = []byte{0x04, 0x22, 0x4d, 0x18}
)

const magicLen = 4

// DetectCompression inspects the leading bytes of a stream.
func DetectCompression(head []byte) Compression {
	switch {
	case bytes.HasPrefix(head, zstdMagic):
		return CompressionZstd
	case bytes.HasPrefix(head, lz4Magic):
		return CompressionLZ4
	default:
		return CompressionNone
	}
}

// readAll reads in to the end, transparently decompressing it. maxSize caps
// the decompressed size; zero means no cap.
func readAll(in io.Reader, maxSize int64) ([]byte, error) {
	br := bufio.NewReader(in)

	head, err := br.Peek(magicLen)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read input: %w", err)
	}

	var src io.Reader = br

	switch DetectCompression(head) {
	case CompressionZstd:
		dec, zerr := zstd.NewReader(br)
		if zerr != nil {
			return nil, fmt.Errorf("open zstd stream: %w", zerr)
		}

		defer dec.Close()

		src = dec
	case CompressionLZ4:
		src = lz4.NewReader(br)
	case CompressionNone:
	}

	if maxSize > 0 {
		src = io.LimitReader(src, maxSize+1)
	}

	data, err := io.ReadAll(src)
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}

	if maxSize > 0 && int64(len(data)) > maxSize {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrInputTooLarge, maxSize)
	}

	return data, nil
}

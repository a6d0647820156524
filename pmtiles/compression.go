package pmtiles

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"fmt"
	"io"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/zstd"
)

// compressBytes compresses raw with the internal directory/metadata codec
// named by compression. Brotli has no encoder wired (decode-only, see
// decompressBytes): requesting it here returns an UnsupportedCompression
// error.
func compressBytes(raw []byte, compression Compression) ([]byte, error) {
	switch compression {
	case NoCompression, UnknownCompression:
		return raw, nil
	case Gzip:
		var buf bytes.Buffer
		gw := gzip.NewWriter(&buf)
		if _, err := gw.Write(raw); err != nil {
			return nil, newError(InvalidFormat, "gzip compressing directory", err)
		}
		if err := gw.Close(); err != nil {
			return nil, newError(InvalidFormat, "closing gzip writer", err)
		}
		return buf.Bytes(), nil
	case Zstd:
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return nil, newError(InvalidFormat, "constructing zstd encoder", err)
		}
		defer enc.Close()
		return enc.EncodeAll(raw, nil), nil
	case Brotli:
		return nil, newError(UnsupportedCompression, "brotli encoding is not supported, only decoding", nil)
	default:
		return nil, newError(UnsupportedCompression, fmt.Sprintf("unknown compression %d", compression), nil)
	}
}

// decompressBytes reverses compressBytes. Brotli is supported here because
// archives produced by other PMTiles implementations may use it; this
// library never writes brotli itself.
func decompressBytes(data []byte, compression Compression) ([]byte, error) {
	switch compression {
	case NoCompression, UnknownCompression:
		return data, nil
	case Gzip:
		gr, err := gzip.NewReader(bufio.NewReader(bytes.NewReader(data)))
		if err != nil {
			return nil, newError(InvalidFormat, "constructing gzip reader", err)
		}
		defer gr.Close()
		out, err := io.ReadAll(gr)
		if err != nil {
			return nil, newError(InvalidFormat, "reading gzip stream", err)
		}
		return out, nil
	case Brotli:
		out, err := io.ReadAll(brotli.NewReader(bytes.NewReader(data)))
		if err != nil {
			return nil, newError(InvalidFormat, "reading brotli stream", err)
		}
		return out, nil
	case Zstd:
		dec, err := zstd.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, newError(InvalidFormat, "constructing zstd decoder", err)
		}
		defer dec.Close()
		out, err := io.ReadAll(dec)
		if err != nil {
			return nil, newError(InvalidFormat, "reading zstd stream", err)
		}
		return out, nil
	default:
		return nil, newError(UnsupportedCompression, fmt.Sprintf("unknown compression %d", compression), nil)
	}
}

// decompressReader wraps r with the streaming decompressor for compression,
// used when decoding tile payloads instead of directory metadata (the
// caller owns closing the returned reader when it implements io.Closer).
func decompressReader(r io.Reader, compression Compression) (io.Reader, error) {
	switch compression {
	case NoCompression, UnknownCompression:
		return r, nil
	case Gzip:
		if _, ok := r.(io.ByteReader); !ok {
			r = bufio.NewReader(r)
		}
		gr, err := gzip.NewReader(r)
		if err != nil {
			return nil, newError(InvalidFormat, "constructing gzip reader", err)
		}
		return gr, nil
	case Brotli:
		return brotli.NewReader(r), nil
	case Zstd:
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, newError(InvalidFormat, "constructing zstd decoder", err)
		}
		return dec.IOReadCloser(), nil
	default:
		return nil, newError(UnsupportedCompression, fmt.Sprintf("unknown compression %d", compression), nil)
	}
}

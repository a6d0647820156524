package pmtiles

import (
	"context"
	"errors"
	"io"
	"os"
)

// FileRangeReader reads ranges from a local file via ReadAt, grounded on
// iwpnd-pmtilr's FileRangeReader and the teacher's FileBucket.
type FileRangeReader struct {
	file *os.File
	size uint64
}

// NewFileRangeReader opens path and stats it once so Size never re-stats.
func NewFileRangeReader(path string) (*FileRangeReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, newError(TransportFailure, "opening "+path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, newError(TransportFailure, "statting "+path, err)
	}
	return &FileRangeReader{file: f, size: uint64(info.Size())}, nil
}

func (r *FileRangeReader) ReadRange(_ context.Context, offset uint64, length uint32, dst []byte) (int, error) {
	if len(dst) < int(length) {
		return 0, newError(InvalidArgument, "destination buffer smaller than requested length", nil)
	}
	n, err := r.file.ReadAt(dst[:length], int64(offset))
	if err != nil && !errors.Is(err, io.EOF) {
		return n, newError(TransportFailure, "reading file range", err)
	}
	return n, nil
}

func (r *FileRangeReader) Size(context.Context) (uint64, error) {
	return r.size, nil
}

func (r *FileRangeReader) Close() error {
	return r.file.Close()
}

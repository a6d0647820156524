package pmtiles

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type roundTripFunc func(req *http.Request) (*http.Response, error)

func (f roundTripFunc) Do(req *http.Request) (*http.Response, error) {
	return f(req)
}

func TestHTTPRangeReaderReadRange(t *testing.T) {
	var gotRange string
	client := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		gotRange = req.Header.Get("Range")
		return &http.Response{
			StatusCode: http.StatusPartialContent,
			Body:       io.NopCloser(strings.NewReader("abcd")),
		}, nil
	})

	r := NewHTTPRangeReader("http://example.com/archive.pmtiles", WithHTTPClient(client))
	dst := make([]byte, 4)
	n, err := r.ReadRange(context.Background(), 10, 4, dst)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, "abcd", string(dst))
	assert.Equal(t, "bytes=10-13", gotRange)
}

func TestHTTPRangeReaderRetriesOn5xx(t *testing.T) {
	attempts := 0
	client := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		attempts++
		if attempts < 3 {
			return &http.Response{StatusCode: http.StatusInternalServerError, Body: io.NopCloser(strings.NewReader(""))}, nil
		}
		return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(strings.NewReader("ok"))}, nil
	})

	r := NewHTTPRangeReader("http://example.com/archive.pmtiles", WithHTTPClient(client), WithMaxRetries(3), WithRetryBaseWait(time.Millisecond))
	dst := make([]byte, 2)
	n, err := r.ReadRange(context.Background(), 0, 2, dst)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 3, attempts)
}

func TestHTTPRangeReaderPermanentFailure(t *testing.T) {
	client := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		return &http.Response{StatusCode: http.StatusNotFound, Body: io.NopCloser(strings.NewReader(""))}, nil
	})

	r := NewHTTPRangeReader("http://example.com/archive.pmtiles", WithHTTPClient(client))
	_, err := r.ReadRange(context.Background(), 0, 2, make([]byte, 2))
	require.Error(t, err)
	assert.True(t, IsKind(err, TransportFailure))
}

package pmtiles

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

// S3RangeReader reads ranges from an S3 object with GetObject's Range
// header, the v2-SDK equivalent of the teacher's BucketAdapter/s3blob path
// but talking to S3 directly (no gocloud.dev indirection) so callers who
// only need S3 don't have to pull in the full blob abstraction.
type S3RangeReader struct {
	client *s3.Client
	bucket string
	key    string
	size   uint64
}

// NewS3RangeReader stats the object once via HeadObject.
func NewS3RangeReader(ctx context.Context, client *s3.Client, bucket, key string) (*S3RangeReader, error) {
	out, err := client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, newError(TransportFailure, fmt.Sprintf("heading s3://%s/%s", bucket, key), err)
	}
	size := uint64(0)
	if out.ContentLength != nil {
		size = uint64(*out.ContentLength)
	}
	return &S3RangeReader{client: client, bucket: bucket, key: key, size: size}, nil
}

func (r *S3RangeReader) ReadRange(ctx context.Context, offset uint64, length uint32, dst []byte) (int, error) {
	if len(dst) < int(length) {
		return 0, newError(InvalidArgument, "destination buffer smaller than requested length", nil)
	}
	rangeHeader := fmt.Sprintf("bytes=%d-%d", offset, offset+uint64(length)-1)
	out, err := r.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(r.key),
		Range:  aws.String(rangeHeader),
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			return 0, newError(TransportFailure, fmt.Sprintf("s3 GetObject %s: %s", rangeHeader, apiErr.ErrorCode()), err)
		}
		return 0, newError(TransportFailure, "s3 GetObject failed", err)
	}
	defer out.Body.Close()

	n, err := io.ReadFull(out.Body, dst[:length])
	if err != nil && err != io.ErrUnexpectedEOF {
		return n, newError(TransportFailure, "reading s3 object body", err)
	}
	return n, nil
}

func (r *S3RangeReader) Size(context.Context) (uint64, error) {
	return r.size, nil
}

func (r *S3RangeReader) Close() error {
	return nil
}

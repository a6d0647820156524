package pmtiles

import (
	"context"
	"fmt"
	"io"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
)

// AzureRangeReader reads ranges from an Azure Blob Storage blob via
// DownloadStream with an HTTP range, the Azure analogue of S3RangeReader.
type AzureRangeReader struct {
	client    *azblob.Client
	container string
	blobName  string
	size      uint64
}

// NewAzureRangeReader stats the blob once via GetProperties.
func NewAzureRangeReader(ctx context.Context, client *azblob.Client, container, blobName string) (*AzureRangeReader, error) {
	props, err := client.ServiceClient().NewContainerClient(container).NewBlobClient(blobName).GetProperties(ctx, nil)
	if err != nil {
		return nil, newError(TransportFailure, fmt.Sprintf("heading azblob://%s/%s", container, blobName), err)
	}
	size := uint64(0)
	if props.ContentLength != nil {
		size = uint64(*props.ContentLength)
	}
	return &AzureRangeReader{client: client, container: container, blobName: blobName, size: size}, nil
}

func (r *AzureRangeReader) ReadRange(ctx context.Context, offset uint64, length uint32, dst []byte) (int, error) {
	if len(dst) < int(length) {
		return 0, newError(InvalidArgument, "destination buffer smaller than requested length", nil)
	}
	o := int64(offset)
	c := int64(length)
	resp, err := r.client.DownloadStream(ctx, r.container, r.blobName, &azblob.DownloadStreamOptions{
		Range: blob.HTTPRange{Offset: o, Count: c},
	})
	if err != nil {
		return 0, newError(TransportFailure, "azure DownloadStream failed", err)
	}
	defer resp.Body.Close()

	n, err := io.ReadFull(resp.Body, dst[:length])
	if err != nil && err != io.ErrUnexpectedEOF {
		return n, newError(TransportFailure, "reading azure blob body", err)
	}
	return n, nil
}

func (r *AzureRangeReader) Size(context.Context) (uint64, error) {
	return r.size, nil
}

func (r *AzureRangeReader) Close() error {
	return nil
}

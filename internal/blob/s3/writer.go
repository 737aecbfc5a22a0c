package s3blob

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/updownlabs/pairbot/internal/domain"
)

// Writer implements domain.BlobWriter with PutObject calls against the
// client's bucket.
type Writer struct {
	client *Client
}

// NewWriter creates a Writer backed by the given client.
func NewWriter(client *Client) *Writer {
	return &Writer{client: client}
}

// Put uploads data under the given key.
func (w *Writer) Put(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := w.client.S3().PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(w.client.Bucket()),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("s3blob: put %s: %w", key, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.BlobWriter = (*Writer)(nil)

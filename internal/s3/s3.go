package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"
	minio "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/yourorg/vetting-worker/internal/checks"
)

type Client struct {
	mc     *minio.Client
	bucket string
}

func New(endpoint, accessKey, secretKey, region string, useSSL bool, bucket string) (*Client, error) {
	mc, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
		Region: region,
	})
	if err != nil {
		return nil, err
	}
	return &Client{mc: mc, bucket: bucket}, nil
}

// EnsureBucket creates the payload bucket when it does not exist yet.
func (c *Client) EnsureBucket(ctx context.Context) error {
	ok, err := c.mc.BucketExists(ctx, c.bucket)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	return c.mc.MakeBucket(ctx, c.bucket, minio.MakeBucketOptions{})
}

// PayloadKey is the object key of one source's raw payload for a process.
func PayloadKey(processID uuid.UUID, source checks.Source) string {
	return fmt.Sprintf("payloads/%s/%s.json", processID, source)
}

// ArchivePayload stores a provider's raw response, overwriting any earlier
// run of the same process.
func (c *Client) ArchivePayload(ctx context.Context, processID uuid.UUID, source checks.Source, raw []byte) error {
	_, err := c.mc.PutObject(ctx, c.bucket, PayloadKey(processID, source), bytes.NewReader(raw), int64(len(raw)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	return err
}

func (c *Client) GetPayload(ctx context.Context, processID uuid.UUID, source checks.Source) ([]byte, error) {
	obj, err := c.mc.GetObject(ctx, c.bucket, PayloadKey(processID, source), minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer obj.Close()
	return io.ReadAll(obj)
}

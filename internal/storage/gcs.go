package storage

import (
	"context"
	"fmt"
	"io"

	gcs "cloud.google.com/go/storage"
)

type GCSUploader struct {
	client *gcs.Client
	bucket string
	prefix string
	public bool
}

// NewGCSUploader stores objects under prefix in bucket. public grants
// allUsers read access so front-ends can fetch artifacts directly.
func NewGCSUploader(ctx context.Context, bucket, prefix string, public bool) (*GCSUploader, error) {
	c, err := gcs.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	return &GCSUploader{client: c, bucket: bucket, prefix: prefix, public: public}, nil
}

func (u *GCSUploader) Close() error { return u.client.Close() }

func (u *GCSUploader) Upload(ctx context.Context, objectName string, contentType string, r io.Reader) (string, error) {
	obj := u.client.Bucket(u.bucket).Object(u.prefix + objectName)

	w := obj.NewWriter(ctx)
	w.ContentType = contentType

	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}

	if u.public {
		if err := obj.ACL().Set(ctx, gcs.AllUsers, gcs.RoleReader); err != nil {
			return "", err
		}
		return fmt.Sprintf("https://storage.googleapis.com/%s/%s", u.bucket, obj.ObjectName()), nil
	}
	return fmt.Sprintf("gs://%s/%s", u.bucket, obj.ObjectName()), nil
}

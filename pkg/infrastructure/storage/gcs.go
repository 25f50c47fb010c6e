// Package storage backs the blob store with Google Cloud Storage. The
// orchestrator archives raw Google Fit fetch payloads here so a scored
// session can be re-derived or audited later.
package storage

import (
	"context"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
)

type StorageAdapter struct {
	Client *storage.Client
}

// Write stores one artifact. Session artifacts are small JSON blobs,
// so the upload goes out in a single request.
func (a *StorageAdapter) Write(ctx context.Context, bucketName, objectName string, data []byte) error {
	wc := a.Client.Bucket(bucketName).Object(objectName).NewWriter(ctx)
	wc.ChunkSize = 0
	wc.ContentType = "application/json"

	if _, err := wc.Write(data); err != nil {
		wc.Close()
		return fmt.Errorf("writing gs://%s/%s: %w", bucketName, objectName, err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("finalizing gs://%s/%s: %w", bucketName, objectName, err)
	}
	return nil
}

// Read loads an archived artifact back, e.g. when re-scoring a session
// from its raw fetch.
func (a *StorageAdapter) Read(ctx context.Context, bucketName, objectName string) ([]byte, error) {
	rc, err := a.Client.Bucket(bucketName).Object(objectName).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("opening gs://%s/%s: %w", bucketName, objectName, err)
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

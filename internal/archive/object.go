package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"tandem/collab/internal/history"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ObjectConfig holds the object-storage settings for an ObjectArchive.
type ObjectConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	SessionID string
}

// ObjectArchive uploads each snapshot as one JSON object per snapshot ID,
// keyed under the session prefix.
type ObjectArchive struct {
	client *minio.Client
	bucket string
	prefix string
}

// NewObjectArchive connects to the object store and ensures the bucket
// exists.
func NewObjectArchive(cfg ObjectConfig) (*ObjectArchive, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create object client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", cfg.Bucket, err)
		}
	}

	return &ObjectArchive{
		client: client,
		bucket: cfg.Bucket,
		prefix: cfg.SessionID + "/",
	}, nil
}

func (a *ObjectArchive) key(snapshotID string) string {
	return a.prefix + snapshotID + ".json"
}

func (a *ObjectArchive) Store(ctx context.Context, snapshot history.Snapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	_, err = a.client.PutObject(ctx, a.bucket, a.key(snapshot.ID),
		bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "application/json"})
	if err != nil {
		return fmt.Errorf("upload snapshot %s: %w", snapshot.ID, err)
	}
	return nil
}

func (a *ObjectArchive) Load(ctx context.Context, snapshotID string) (history.Snapshot, error) {
	obj, err := a.client.GetObject(ctx, a.bucket, a.key(snapshotID), minio.GetObjectOptions{})
	if err != nil {
		return history.Snapshot{}, fmt.Errorf("fetch snapshot %s: %w", snapshotID, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return history.Snapshot{}, fmt.Errorf("read snapshot %s: %w", snapshotID, err)
	}

	var snapshot history.Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return history.Snapshot{}, fmt.Errorf("decode snapshot %s: %w", snapshotID, err)
	}
	return snapshot, nil
}

func (a *ObjectArchive) List(ctx context.Context) ([]string, error) {
	ids := make([]string, 0)
	for obj := range a.client.ListObjects(ctx, a.bucket, minio.ListObjectsOptions{Prefix: a.prefix}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("list snapshots: %w", obj.Err)
		}
		id := strings.TrimPrefix(obj.Key, a.prefix)
		id = strings.TrimSuffix(id, ".json")
		ids = append(ids, id)
	}
	return ids, nil
}

package gstorage

import (
	"context"
	"io"
	"os"
	"path"
	"path/filepath"
	"time"

	"cloud.google.com/go/storage"
	"github.com/pkg/errors"
	"google.golang.org/api/option"
)

var ErrObjectNotExist = storage.ErrObjectNotExist

const transferTimeout = 50 * time.Second

// GStorage copies the encrypted sqlite file to & from a GCS bucket, so the
// db survives the host disappearing.
type GStorage struct {
	storageClient *storage.Client
	bucket        string
	prefix        string
}

func NewGStorage(credentialsFilePath, bucket, prefix string) (*GStorage, error) {
	var client *storage.Client
	var err error

	if credentialsFilePath != "" {
		client, err = storage.NewClient(context.Background(), option.WithCredentialsFile(credentialsFilePath))
	} else {
		client, err = storage.NewClient(context.Background())
	}

	if err != nil {
		return nil, errors.Wrap(err, "NewGStorage")
	}

	return &GStorage{storageClient: client, bucket: bucket, prefix: prefix}, nil
}

// UploadFile uploads the file at filePath under the configured prefix.
func (gs *GStorage) UploadFile(filePath string) error {
	f, err := os.Open(filePath)
	if err != nil {
		return errors.Wrap(err, "UploadFile")
	}
	defer f.Close()

	ctx, cancel := context.WithTimeout(context.Background(), transferTimeout)
	defer cancel()

	object := path.Join(gs.prefix, filepath.Base(filePath))
	wc := gs.storageClient.Bucket(gs.bucket).Object(object).NewWriter(ctx)
	if _, err = io.Copy(wc, f); err != nil {
		return errors.Wrap(err, "UploadFile")
	}
	if err := wc.Close(); err != nil {
		return errors.Wrap(err, "UploadFile")
	}

	return nil
}

// DownloadFile downloads the named object to destFileName. Returns
// ErrObjectNotExist when no backup has been uploaded yet.
func (gs *GStorage) DownloadFile(object, destFileName string) error {
	ctx, cancel := context.WithTimeout(context.Background(), transferTimeout)
	defer cancel()

	rc, err := gs.storageClient.Bucket(gs.bucket).Object(path.Join(gs.prefix, object)).NewReader(ctx)
	if err == storage.ErrObjectNotExist {
		return err
	}
	if err != nil {
		return errors.Wrapf(err, "DownloadFile(%q)", object)
	}
	defer rc.Close()

	f, err := os.Create(destFileName)
	if err != nil {
		return errors.Wrap(err, "DownloadFile")
	}

	if _, err := io.Copy(f, rc); err != nil {
		f.Close()
		return errors.Wrap(err, "DownloadFile")
	}

	return errors.Wrap(f.Close(), "DownloadFile")
}

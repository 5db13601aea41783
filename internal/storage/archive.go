package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/golang/snappy"
	"github.com/spaolacci/murmur3"
)

const (
	// archiveSuffix marks snappy-compressed archive objects.
	archiveSuffix = ".sz"

	// shardCount is the number of key shards under the archive prefix. Keys
	// are spread by hashing the artifact name so no single listing prefix
	// grows unbounded.
	shardCount = 64
)

// Archiver compresses session artifacts with snappy and stores them in object
// storage under sharded keys.
type Archiver struct {
	store  ObjectStorage
	prefix string
}

// NewArchiver creates an archiver writing under the given key prefix.
func NewArchiver(store ObjectStorage, prefix string) *Archiver {
	return &Archiver{store: store, prefix: strings.Trim(prefix, "/")}
}

// ObjectKey returns the storage key for a session artifact.
func (a *Archiver) ObjectKey(sessionName, fileName string) string {
	shard := murmur3.Sum32([]byte(fileName)) % shardCount
	key := fmt.Sprintf("%02x/%s/%s%s", shard, sessionName, fileName, archiveSuffix)
	if a.prefix != "" {
		return a.prefix + "/" + key
	}
	return key
}

// Archive compresses localPath and uploads it, returning the object key.
func (a *Archiver) Archive(ctx context.Context, sessionName, localPath string) (string, error) {
	data, err := os.ReadFile(localPath)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}

	compressed := snappy.Encode(nil, data)

	tmp, err := os.CreateTemp("", "ampline_archive_*"+archiveSuffix)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(compressed); err != nil {
		tmp.Close()
		return "", fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}

	key := a.ObjectKey(sessionName, filepath.Base(localPath))
	if err := a.store.Upload(ctx, tmpPath, key); err != nil {
		return "", err
	}
	return key, nil
}

// ArchiveDir archives every regular file in dir, returning the object keys in
// the order the files were archived.
func (a *Archiver) ArchiveDir(ctx context.Context, sessionName, dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}

	var keys []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		key, err := a.Archive(ctx, sessionName, filepath.Join(dir, entry.Name()))
		if err != nil {
			return keys, err
		}
		keys = append(keys, key)
	}
	return keys, nil
}

// Restore downloads an archived object and decompresses it to destPath.
func (a *Archiver) Restore(ctx context.Context, objectKey, destPath string) error {
	tmp, err := os.CreateTemp("", "ampline_restore_*"+archiveSuffix)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpPath)

	if err := a.store.Download(ctx, objectKey, tmpPath); err != nil {
		return err
	}

	compressed, err := os.ReadFile(tmpPath)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}

	data, err := snappy.Decode(nil, compressed)
	if err != nil {
		return fmt.Errorf("%w: corrupt archive %s: %v", ErrDownloadFailed, objectKey, err)
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}
	return os.WriteFile(destPath, data, 0644)
}

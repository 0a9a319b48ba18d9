package contentstore

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob"
	"gocloud.dev/gcerrors"

	"auditexport/internal/logging"
	"auditexport/internal/services"
)

const (
	recordPrefix = "tickets/"
	recordSuffix = ".json"
	indent       = "    "
)

// MediaKind selects the directory a media object is written to.
type MediaKind string

const (
	MediaCall       MediaKind = "call"
	MediaAttachment MediaKind = "attachment"
)

// Dir returns the bucket prefix for the kind, without a trailing slash.
func (k MediaKind) Dir() string {
	switch k {
	case MediaCall:
		return "calls"
	case MediaAttachment:
		return "attachments"
	default:
		return ""
	}
}

// Store wraps a blob bucket with the exporter's key layout.
type Store struct {
	bucket *blob.Bucket
	logger *slog.Logger
	owned  bool
}

// Open opens the bucket at url (for example file:///data/export?create_dir=true&metadata=skip).
func Open(ctx context.Context, url string, logger *slog.Logger) (*Store, error) {
	bucket, err := blob.OpenBucket(ctx, url)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "contentstore", "open bucket", url, err)
	}
	store := New(bucket, logger)
	store.owned = true
	return store, nil
}

// New wraps an already-open bucket. The caller keeps ownership of bucket.
func New(bucket *blob.Bucket, logger *slog.Logger) *Store {
	return &Store{
		bucket: bucket,
		logger: logging.NewComponentLogger(logger, "contentstore"),
	}
}

// Close releases the bucket when the store opened it.
func (s *Store) Close() error {
	if s == nil || !s.owned {
		return nil
	}
	return s.bucket.Close()
}

// RecordKey returns the object key for a record document.
func RecordKey(id int64) string {
	return recordPrefix + strconv.FormatInt(id, 10) + recordSuffix
}

// MediaKey returns the object key for a media file of the given kind.
func MediaKey(kind MediaKind, name string) (string, error) {
	dir := kind.Dir()
	if dir == "" {
		return "", fmt.Errorf("unknown media kind %q", kind)
	}
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("invalid media key %q", name)
	}
	return dir + "/" + name, nil
}

// RecordExists reports whether a document for id has been saved.
func (s *Store) RecordExists(ctx context.Context, id int64) (bool, error) {
	ok, err := s.bucket.Exists(ctx, RecordKey(id))
	if err != nil {
		return false, services.Wrap(services.ErrStorage, "contentstore", "exists", RecordKey(id), err)
	}
	return ok, nil
}

// SaveRecord writes doc as pretty-printed JSON with sorted object keys and
// four-space indentation, replacing any existing document.
func (s *Store) SaveRecord(ctx context.Context, id int64, doc any) error {
	data, err := json.MarshalIndent(doc, "", indent)
	if err != nil {
		return services.Wrap(services.ErrStorage, "contentstore", "encode record", strconv.FormatInt(id, 10), err)
	}
	data = append(data, '\n')
	key := RecordKey(id)
	if err := s.bucket.WriteAll(ctx, key, data, &blob.WriterOptions{ContentType: "application/json"}); err != nil {
		return services.Wrap(services.ErrStorage, "contentstore", "write record", key, err)
	}
	s.logger.Debug("record written",
		logging.Int64(logging.FieldRecordID, id),
		logging.String("key", key),
		logging.Int("bytes", len(data)))
	return nil
}

// ReadRecord returns the stored document for id. A missing record yields an
// error matching services.ErrNotFound.
func (s *Store) ReadRecord(ctx context.Context, id int64) ([]byte, error) {
	key := RecordKey(id)
	data, err := s.bucket.ReadAll(ctx, key)
	if err != nil {
		if isNotExist(err) {
			return nil, services.Wrap(services.ErrNotFound, "contentstore", "read record", key, err)
		}
		return nil, services.Wrap(services.ErrStorage, "contentstore", "read record", key, err)
	}
	return data, nil
}

// RecordIDs lists saved record IDs in key order.
func (s *Store) RecordIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	iter := s.bucket.List(&blob.ListOptions{Prefix: recordPrefix})
	for {
		obj, err := iter.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, services.Wrap(services.ErrStorage, "contentstore", "list records", "", err)
		}
		if obj.IsDir {
			continue
		}
		name := strings.TrimSuffix(strings.TrimPrefix(obj.Key, recordPrefix), recordSuffix)
		id, err := strconv.ParseInt(name, 10, 64)
		if err != nil || id <= 0 {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// CountRecords returns the number of saved record documents.
func (s *Store) CountRecords(ctx context.Context) (int, error) {
	ids, err := s.RecordIDs(ctx)
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

// WriteMedia streams body to the kind directory under name, replacing any
// existing object. It returns the number of bytes written.
func (s *Store) WriteMedia(ctx context.Context, kind MediaKind, name, contentType string, body io.Reader) (int64, error) {
	key, err := MediaKey(kind, name)
	if err != nil {
		return 0, services.Wrap(services.ErrStorage, "contentstore", "write media", name, err)
	}

	writeCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	w, err := s.bucket.NewWriter(writeCtx, key, &blob.WriterOptions{ContentType: contentType})
	if err != nil {
		return 0, services.Wrap(services.ErrStorage, "contentstore", "open media writer", key, err)
	}
	n, copyErr := io.Copy(w, body)
	if copyErr != nil {
		// Cancelling before Close discards the partial object.
		cancel()
		_ = w.Close()
		return n, services.Wrap(services.ErrStorage, "contentstore", "copy media", key, copyErr)
	}
	if err := w.Close(); err != nil {
		return n, services.Wrap(services.ErrStorage, "contentstore", "close media writer", key, err)
	}

	s.logger.Debug("media written",
		logging.String("key", key),
		logging.Int64("bytes", n))
	return n, nil
}

// MediaExists reports whether a media object is present.
func (s *Store) MediaExists(ctx context.Context, kind MediaKind, name string) (bool, error) {
	key, err := MediaKey(kind, name)
	if err != nil {
		return false, err
	}
	return s.bucket.Exists(ctx, key)
}

// ReadMedia returns a stored media object's bytes.
func (s *Store) ReadMedia(ctx context.Context, kind MediaKind, name string) ([]byte, error) {
	key, err := MediaKey(kind, name)
	if err != nil {
		return nil, err
	}
	data, err := s.bucket.ReadAll(ctx, key)
	if err != nil {
		if isNotExist(err) {
			return nil, services.Wrap(services.ErrNotFound, "contentstore", "read media", key, err)
		}
		return nil, services.Wrap(services.ErrStorage, "contentstore", "read media", key, err)
	}
	return data, nil
}

func isNotExist(err error) bool {
	return gcerrors.Code(err) == gcerrors.NotFound
}

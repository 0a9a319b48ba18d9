package mediafetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"auditexport/internal/contentstore"
	"auditexport/internal/logging"
	"auditexport/internal/services"
)

// ErrUnexpectedRedirect marks a media response that tried to redirect. It
// matches services.ErrMediaUnavailable.
var ErrUnexpectedRedirect = fmt.Errorf("unexpected redirect: %w", services.ErrMediaUnavailable)

// Source performs media GETs without following redirects.
type Source interface {
	GetMedia(ctx context.Context, url string) (*http.Response, error)
}

// Writer persists media bytes.
type Writer interface {
	WriteMedia(ctx context.Context, kind contentstore.MediaKind, name, contentType string, body io.Reader) (int64, error)
}

// Observer receives one notification per media download attempt.
type Observer interface {
	MediaFetched(kind contentstore.MediaKind, bytes int64, err error)
}

// Asset describes a downloaded media file. Type and OriginFilename are nil
// when the response headers did not supply them.
type Asset struct {
	Kind           contentstore.MediaKind
	Type           *string
	OriginFilename *string
	StorageKey     string
	Bytes          int64
}

// Fetcher downloads media and stores it under a deterministic key.
type Fetcher struct {
	source   Source
	store    Writer
	logger   *slog.Logger
	observer Observer
}

// Option customizes a Fetcher.
type Option func(*Fetcher)

// WithObserver attaches a download observer (metrics).
func WithObserver(o Observer) Option {
	return func(f *Fetcher) {
		f.observer = o
	}
}

// New constructs a Fetcher.
func New(source Source, store Writer, logger *slog.Logger, opts ...Option) *Fetcher {
	f := &Fetcher{
		source: source,
		store:  store,
		logger: logging.NewComponentLogger(logger, "mediafetch"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	return f
}

// Fetch downloads url and stores it as {ownerID}_{mediaID}[_{origin}] under
// the kind's directory, replacing any existing file.
func (f *Fetcher) Fetch(ctx context.Context, url string, ownerID int64, mediaID string, kind contentstore.MediaKind) (Asset, error) {
	asset, err := f.fetch(ctx, url, ownerID, mediaID, kind)
	if f.observer != nil {
		f.observer.MediaFetched(kind, asset.Bytes, err)
	}
	return asset, err
}

func (f *Fetcher) fetch(ctx context.Context, url string, ownerID int64, mediaID string, kind contentstore.MediaKind) (Asset, error) {
	op := string(kind) + " " + mediaID
	resp, err := f.source.GetMedia(ctx, url)
	if err != nil {
		return Asset{}, services.Wrap(services.ErrMediaUnavailable, "mediafetch", op, "request failed", err)
	}
	defer resp.Body.Close()

	if isRedirect(resp) {
		return Asset{}, fmt.Errorf("mediafetch: %s: http %d to %q: %w", op, resp.StatusCode, resp.Header.Get("Location"), ErrUnexpectedRedirect)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Asset{}, services.Wrap(services.ErrMediaUnavailable, "mediafetch", op, "http "+strconv.Itoa(resp.StatusCode), nil)
	}

	asset := Asset{Kind: kind}
	contentType := ""
	if mediaType, ok := ParseContentType(resp.Header.Get("Content-Type")); ok {
		contentType = mediaType
		asset.Type = &mediaType
	}
	origin := ""
	if name, ok := ParseContentDispositionFilename(resp.Header.Get("Content-Disposition")); ok {
		origin = name
		asset.OriginFilename = &name
	}
	asset.StorageKey = StorageName(ownerID, mediaID, origin)

	body := &trackingReader{r: resp.Body}
	n, err := f.store.WriteMedia(ctx, kind, asset.StorageKey, contentType, body)
	asset.Bytes = n
	if err != nil {
		if body.err != nil {
			return asset, services.Wrap(services.ErrMediaUnavailable, "mediafetch", op, "download interrupted", body.err)
		}
		return asset, err
	}

	f.logger.Debug("media stored",
		logging.Int64(logging.FieldRecordID, ownerID),
		logging.String("kind", string(kind)),
		logging.String("media_id", mediaID),
		logging.String("key", asset.StorageKey),
		logging.String("content_type", contentType),
		logging.Int64("bytes", n))
	return asset, nil
}

func isRedirect(resp *http.Response) bool {
	if resp.StatusCode >= 300 && resp.StatusCode < 400 {
		return true
	}
	return resp.Header.Get("Location") != ""
}

func formatInt(v int64) string {
	return strconv.FormatInt(v, 10)
}

// trackingReader remembers the first non-EOF read error so a failed download
// can be told apart from a failed write.
type trackingReader struct {
	r   io.Reader
	err error
}

func (t *trackingReader) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	if err != nil && err != io.EOF && t.err == nil {
		t.err = err
	}
	return n, err
}

package document

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"auditexport/internal/contentstore"
	"auditexport/internal/logging"
	"auditexport/internal/mediafetch"
	"auditexport/internal/services"
)

// DefaultSubjectKey names the payload array carrying the record itself.
const DefaultSubjectKey = "records"

// MediaPolicy controls what happens when a media download fails.
type MediaPolicy string

const (
	// MediaAbort fails the whole record; nothing is persisted.
	MediaAbort MediaPolicy = "abort"
	// MediaSkip leaves the reference unresolved and keeps going.
	MediaSkip MediaPolicy = "skip"
)

// MediaFetcher downloads one media reference.
type MediaFetcher interface {
	Fetch(ctx context.Context, url string, ownerID int64, mediaID string, kind contentstore.MediaKind) (mediafetch.Asset, error)
}

// Assembler builds Records from raw payloads.
type Assembler struct {
	fetcher    MediaFetcher
	subjectKey string
	policy     MediaPolicy
	logger     *slog.Logger
}

// Option customizes an Assembler.
type Option func(*Assembler)

// WithSubjectKey sets the payload key holding the record array.
func WithSubjectKey(key string) Option {
	return func(a *Assembler) {
		if key != "" {
			a.subjectKey = key
		}
	}
}

// WithMediaPolicy sets the media failure policy.
func WithMediaPolicy(policy MediaPolicy) Option {
	return func(a *Assembler) {
		if policy == MediaAbort || policy == MediaSkip {
			a.policy = policy
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Assembler) {
		a.logger = logging.NewComponentLogger(logger, "document")
	}
}

// NewAssembler constructs an Assembler that downloads media through fetcher.
func NewAssembler(fetcher MediaFetcher, opts ...Option) *Assembler {
	a := &Assembler{
		fetcher:    fetcher,
		subjectKey: DefaultSubjectKey,
		policy:     MediaAbort,
		logger:     logging.NewComponentLogger(nil, "document"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a
}

// Assemble validates raw, downloads every referenced media file in audit,
// event, attachment order, and returns the record to persist. A payload
// without a usable subject fails with services.ErrMalformedPayload before any
// media is fetched.
func (a *Assembler) Assemble(ctx context.Context, raw []byte) (*Record, error) {
	if _, err := Probe(raw, a.subjectKey); err != nil {
		return nil, err
	}

	var payload map[string]any
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()
	if err := decoder.Decode(&payload); err != nil {
		return nil, services.Wrap(services.ErrMalformedPayload, "document", "decode", "", err)
	}

	// The decoder keeps the last duplicate key while the probe reads the
	// first, so the subject is checked again on the decoded value.
	subject, id, err := a.subject(payload)
	if err != nil {
		return nil, err
	}

	audits, err := asArray(payload["audits"], "audits")
	if err != nil {
		return nil, err
	}
	users, err := projectUsers(payload["users"])
	if err != nil {
		return nil, err
	}

	record := &Record{
		ID:      id,
		Subject: subject,
		Audits:  audits,
		Users:   users,
	}

	logger := a.logger.With(logging.Int64(logging.FieldRecordID, id))
	for _, audit := range audits {
		auditObj, ok := audit.(map[string]any)
		if !ok {
			continue
		}
		events, ok := auditObj["events"].([]any)
		if !ok {
			continue
		}
		for _, event := range events {
			eventObj, ok := event.(map[string]any)
			if !ok {
				continue
			}
			if err := a.resolveRecording(ctx, logger, record, eventObj); err != nil {
				return nil, err
			}
			if err := a.resolveAttachments(ctx, logger, record, eventObj); err != nil {
				return nil, err
			}
		}
	}
	return record, nil
}

func (a *Assembler) resolveRecording(ctx context.Context, logger *slog.Logger, record *Record, event map[string]any) error {
	data, ok := event["data"].(map[string]any)
	if !ok {
		return nil
	}
	url, ok := data["recording_url"].(string)
	if !ok || url == "" {
		return nil
	}
	mediaID := scalarString(data["call_id"])
	asset, err := a.fetcher.Fetch(ctx, url, record.ID, mediaID, contentstore.MediaCall)
	if err != nil {
		return a.mediaFailed(logger, record, contentstore.MediaCall, mediaID, url, err)
	}
	record.Media = append(record.Media, asset)
	data["downloaded_media"] = summarize(asset)
	return nil
}

func (a *Assembler) resolveAttachments(ctx context.Context, logger *slog.Logger, record *Record, event map[string]any) error {
	attachments, ok := event["attachments"].([]any)
	if !ok {
		return nil
	}
	for _, item := range attachments {
		attachment, ok := item.(map[string]any)
		if !ok {
			continue
		}
		url, _ := attachment["content_url"].(string)
		mediaID := scalarString(attachment["id"])
		if url == "" {
			// Attachments are expected to carry a URL; treat a blank one as a failed download.
			err := services.Wrap(services.ErrMediaUnavailable, "document", "attachment "+mediaID, "content_url is empty", nil)
			if ferr := a.mediaFailed(logger, record, contentstore.MediaAttachment, mediaID, url, err); ferr != nil {
				return ferr
			}
			continue
		}
		asset, err := a.fetcher.Fetch(ctx, url, record.ID, mediaID, contentstore.MediaAttachment)
		if err != nil {
			if ferr := a.mediaFailed(logger, record, contentstore.MediaAttachment, mediaID, url, err); ferr != nil {
				return ferr
			}
			continue
		}
		record.Media = append(record.Media, asset)
		attachment["downloaded_media"] = summarize(asset)
	}
	return nil
}

// mediaFailed applies the media policy. Only media-unavailable errors may be
// skipped; storage failures and cancellation always propagate.
func (a *Assembler) mediaFailed(logger *slog.Logger, record *Record, kind contentstore.MediaKind, mediaID, url string, err error) error {
	if a.policy != MediaSkip || !errors.Is(err, services.ErrMediaUnavailable) {
		return fmt.Errorf("record %d: %w", record.ID, err)
	}
	record.Unresolved = append(record.Unresolved, MediaFailure{
		Kind:    string(kind),
		MediaID: mediaID,
		URL:     url,
		Err:     err,
	})
	logging.WarnWithContext(logger, "media download failed; reference left unresolved", "media_skipped",
		logging.String("kind", string(kind)),
		logging.String("media_id", mediaID),
		logging.String("url", url),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "rerun with --force for this record once the media is reachable"),
		logging.String(logging.FieldImpact, "record saved without this media file"),
	)
	return nil
}

func (a *Assembler) subject(payload map[string]any) (map[string]any, int64, error) {
	subjects, ok := payload[a.subjectKey].([]any)
	if !ok || len(subjects) == 0 {
		return nil, 0, services.Wrap(services.ErrMalformedPayload, "document", "decode", a.subjectKey+" is not a non-empty array", nil)
	}
	subject, ok := subjects[0].(map[string]any)
	if !ok {
		return nil, 0, services.Wrap(services.ErrMalformedPayload, "document", "decode", a.subjectKey+"[0] is not an object", nil)
	}
	id, ok := int64Value(subject["id"])
	if !ok || id <= 0 {
		return nil, 0, services.Wrap(services.ErrMalformedPayload, "document", "decode", a.subjectKey+"[0].id is not a positive integer", nil)
	}
	return subject, id, nil
}

func asArray(value any, field string) ([]any, error) {
	switch v := value.(type) {
	case nil:
		return []any{}, nil
	case []any:
		return v, nil
	default:
		return nil, services.Wrap(services.ErrMalformedPayload, "document", "decode", field+" is not an array", nil)
	}
}

// projectUsers keeps one summary per user entry. Field values pass through
// as decoded; absent fields become null.
func projectUsers(value any) ([]UserSummary, error) {
	items, err := asArray(value, "users")
	if err != nil {
		return nil, err
	}
	users := make([]UserSummary, 0, len(items))
	for _, item := range items {
		obj, _ := item.(map[string]any)
		users = append(users, UserSummary{
			ID:    obj["id"],
			URL:   obj["url"],
			Name:  obj["name"],
			Email: obj["email"],
			Phone: obj["phone"],
		})
	}
	return users, nil
}

func int64Value(v any) (int64, bool) {
	switch n := v.(type) {
	case json.Number:
		id, err := n.Int64()
		return id, err == nil
	case float64:
		return int64(n), n == float64(int64(n))
	default:
		return 0, false
	}
}

func scalarString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case json.Number:
		return s.String()
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(s)
	default:
		return fmt.Sprint(s)
	}
}

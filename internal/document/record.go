package document

import (
	"encoding/json"

	"auditexport/internal/mediafetch"
)

// MediaSummary is written into an event's data object (recordings) or an
// attachment object as "downloaded_media".
type MediaSummary struct {
	Filename      *string `json:"filename"`
	SavedFilename string  `json:"saved_filename"`
	Type          *string `json:"type"`
}

func summarize(asset mediafetch.Asset) MediaSummary {
	return MediaSummary{
		Filename:      asset.OriginFilename,
		SavedFilename: asset.StorageKey,
		Type:          asset.Type,
	}
}

// UserSummary is the projection of a user kept in the saved record. Other
// user fields are dropped. Values keep their decoded JSON form; a missing
// field is written as null.
type UserSummary struct {
	ID    any `json:"id"`
	URL   any `json:"url"`
	Name  any `json:"name"`
	Email any `json:"email"`
	Phone any `json:"phone"`
}

// MediaFailure describes a media reference left unresolved under the skip policy.
type MediaFailure struct {
	Kind    string
	MediaID string
	URL     string
	Err     error
}

// Record is an assembled record ready to persist.
type Record struct {
	ID      int64
	Subject map[string]any
	Audits  []any
	Users   []UserSummary

	// Media lists the assets downloaded during assembly.
	Media []mediafetch.Asset
	// Unresolved lists media references that could not be downloaded.
	Unresolved []MediaFailure
}

// MarshalJSON renders the subject's fields with audits and users added at
// the top level.
func (r *Record) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Subject)+2)
	for k, v := range r.Subject {
		out[k] = v
	}
	audits := r.Audits
	if audits == nil {
		audits = []any{}
	}
	users := r.Users
	if users == nil {
		users = []UserSummary{}
	}
	out["audits"] = audits
	out["users"] = users
	return json.Marshal(out)
}

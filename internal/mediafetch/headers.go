package mediafetch

import (
	"mime"
	"path"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// ParseContentType returns the media type from a Content-Type header without
// parameters, lowercased. The charset parameter is optional.
func ParseContentType(header string) (string, bool) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", false
	}
	mediaType, _, err := mime.ParseMediaType(header)
	if err != nil {
		// Tolerate malformed parameters as long as the main token is usable.
		mediaType = strings.ToLower(strings.TrimSpace(strings.SplitN(header, ";", 2)[0]))
	}
	if !validMediaType(mediaType) {
		return "", false
	}
	return mediaType, true
}

func validMediaType(value string) bool {
	major, minor, ok := strings.Cut(value, "/")
	if !ok || major == "" || minor == "" {
		return false
	}
	for _, r := range value {
		if unicode.IsSpace(r) || r == '"' || r == ';' {
			return false
		}
	}
	return true
}

// ParseContentDispositionFilename extracts the filename parameter from a
// Content-Disposition header. Quoted, unquoted, and RFC 5987 filename* forms
// are accepted; filename* wins when both are present. The result is NFC
// normalized and reduced to a base name.
func ParseContentDispositionFilename(header string) (string, bool) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", false
	}
	var raw string
	if _, params, err := mime.ParseMediaType(header); err == nil {
		raw = params["filename"]
	} else {
		raw = scanFilenameParam(header)
	}
	name := sanitizeFilename(raw)
	if name == "" {
		return "", false
	}
	return name, true
}

// scanFilenameParam is the fallback for headers mime.ParseMediaType rejects,
// such as unquoted filenames containing spaces.
func scanFilenameParam(header string) string {
	lower := strings.ToLower(header)
	idx := strings.Index(lower, "filename=")
	if idx < 0 {
		return ""
	}
	value := header[idx+len("filename="):]
	if strings.HasPrefix(value, `"`) {
		value = value[1:]
		if end := strings.Index(value, `"`); end >= 0 {
			return value[:end]
		}
		return value
	}
	if strings.HasPrefix(value, "'") {
		value = strings.TrimPrefix(value, "'")
		if end := strings.Index(value, "'"); end >= 0 {
			return value[:end]
		}
		return value
	}
	if end := strings.Index(value, ";"); end >= 0 {
		value = value[:end]
	}
	return strings.TrimSpace(value)
}

func sanitizeFilename(raw string) string {
	raw = strings.TrimSpace(raw)
	if len(raw) >= 2 && raw[0] == '\'' && raw[len(raw)-1] == '\'' {
		raw = raw[1 : len(raw)-1]
	}
	raw = norm.NFC.String(raw)
	if raw == "" {
		return ""
	}
	raw = strings.ReplaceAll(raw, `\`, "/")
	base := path.Base(raw)
	if base == "." || base == ".." || base == "/" {
		return ""
	}
	base = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, base)
	return strings.TrimSpace(base)
}

// StorageName builds the content store name for a media file:
// {ownerID}_{mediaID} with _{origin} appended when an origin filename is known.
func StorageName(ownerID int64, mediaID, origin string) string {
	var b strings.Builder
	b.WriteString(formatInt(ownerID))
	b.WriteByte('_')
	b.WriteString(strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' {
			return '_'
		}
		return r
	}, mediaID))
	if origin != "" {
		b.WriteByte('_')
		b.WriteString(origin)
	}
	return b.String()
}

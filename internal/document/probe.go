package document

import (
	"github.com/tidwall/gjson"

	"auditexport/internal/services"
)

// Probe checks that raw is JSON carrying a non-empty subject array whose first
// element has a positive integer id, and returns that id.
func Probe(raw []byte, subjectKey string) (int64, error) {
	if !gjson.ValidBytes(raw) {
		return 0, services.Wrap(services.ErrMalformedPayload, "document", "probe", "payload is not valid JSON", nil)
	}
	root := gjson.ParseBytes(raw)
	if !root.IsObject() {
		return 0, services.Wrap(services.ErrMalformedPayload, "document", "probe", "payload is not a JSON object", nil)
	}
	subject := root.Get(subjectKey)
	if !subject.Exists() {
		return 0, services.Wrap(services.ErrMalformedPayload, "document", "probe", "payload has no "+subjectKey+" key", nil)
	}
	if !subject.IsArray() || len(subject.Array()) == 0 {
		return 0, services.Wrap(services.ErrMalformedPayload, "document", "probe", subjectKey+" is not a non-empty array", nil)
	}
	id := subject.Array()[0].Get("id")
	if id.Type != gjson.Number || id.Int() <= 0 || float64(id.Int()) != id.Num {
		return 0, services.Wrap(services.ErrMalformedPayload, "document", "probe", subjectKey+"[0].id is not a positive integer", nil)
	}
	return id.Int(), nil
}

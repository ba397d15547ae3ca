package payload

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"lab-report-access/internal/domain"
)

var envelopeSchema = jsonschema.MustCompileString("report-envelope.json", domain.ReportEnvelopeJSONSchema)

// Reverse order of the upstream escaping. The backslash step must run after
// the control characters and before the quote.
var unescapeSteps = []struct {
	escaped string
	raw     string
}{
	{`\n`, "\n"},
	{`\r`, "\r"},
	{`\t`, "\t"},
	{`\\`, `\`},
	{`\"`, `"`},
}

func Normalize(raw RawResponse) (domain.NormalizedPayload, error) {
	var out []byte
	switch raw.Shape {
	case ShapeBinary:
		out = raw.Body
	case ShapeTextEnvelope:
		text, err := envelopeText(raw.Body)
		if err != nil {
			return domain.NormalizedPayload{}, domain.NewReportError(domain.KindPayload, "unrecognized report envelope", err)
		}
		out = textToBytes(Unescape(text))
	default:
		return domain.NormalizedPayload{}, domain.NewReportError(domain.KindPayload, fmt.Sprintf("unsupported response shape %q", raw.ContentType), nil)
	}

	if len(out) == 0 {
		return domain.NormalizedPayload{}, domain.NewReportError(domain.KindPayload, "normalized report is empty", nil)
	}
	return domain.NormalizedPayload{Bytes: out, Mime: domain.PDFMime}, nil
}

func Unescape(s string) string {
	for _, step := range unescapeSteps {
		s = strings.ReplaceAll(s, step.escaped, step.raw)
	}
	return s
}

// envelopeText extracts the escaped byte-string from a text body: the
// pdfContent field of a JSON object, a JSON string literal, or the raw text.
func envelopeText(body []byte) (string, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return "", fmt.Errorf("empty body")
	}

	switch trimmed[0] {
	case '{':
		var doc any
		if err := json.Unmarshal(trimmed, &doc); err != nil {
			return string(body), nil
		}
		if err := envelopeSchema.Validate(doc); err != nil {
			return "", fmt.Errorf("validate envelope: %w", err)
		}
		content, _ := doc.(map[string]any)["pdfContent"].(string)
		return content, nil
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return string(body), nil
		}
		return s, nil
	case '[':
		if json.Valid(trimmed) {
			return "", fmt.Errorf("json array is not a report envelope")
		}
	}
	return string(body), nil
}

// textToBytes maps each character to one byte. Code points above 0xFF are
// truncated to their low byte; text that is not valid UTF-8 is already one
// byte per character.
func textToBytes(s string) []byte {
	if !utf8.ValidString(s) {
		return []byte(s)
	}
	out := make([]byte, 0, len(s))
	for _, r := range s {
		out = append(out, byte(r))
	}
	return out
}

package domain

import (
	"encoding/json"
	"strings"
	"time"
)

const (
	PDFMime             = "application/pdf"
	DefaultArtifactKind = "test-report"

	AvailabilityUnknownStatus = "unknown"
	ReportNotAvailableMessage = "Report not available"
)

type Action string

const (
	ActionView     Action = "view"
	ActionDownload Action = "download"
	ActionPrint    Action = "print"
)

const ReportAvailabilityJSONSchema = `{
  "type": "object",
  "required": ["isAvailable"],
  "properties": {
    "isAvailable": {"type": "boolean"},
    "currentStatus": {"type": ["string", "null"]},
    "message": {"type": ["string", "null"]},
    "reportGeneratedDate": {"type": ["string", "null"]},
    "reportGeneratedBy": {"type": ["string", "null"]}
  }
}`

const ReportEnvelopeJSONSchema = `{
  "type": "object",
  "required": ["pdfContent"],
  "properties": {
    "pdfContent": {"type": "string"}
  }
}`

const ReportErrorJSONSchema = `{
  "type": "object",
  "properties": {
    "message": {"type": "string"},
    "suggestion": {"type": "string"},
    "error": {"type": "string"}
  }
}`

// ReportAvailability is fetched fresh for every action and never cached.
type ReportAvailability struct {
	IsAvailable         bool       `json:"isAvailable"`
	CurrentStatus       string     `json:"currentStatus"`
	Message             string     `json:"message"`
	ReportGeneratedDate *time.Time `json:"reportGeneratedDate,omitempty"`
	ReportGeneratedBy   string     `json:"reportGeneratedBy,omitempty"`
}

var generatedDateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// UnmarshalJSON accepts reportGeneratedDate in any common timestamp layout.
// The date is informational only, so an unrecognized value is dropped rather
// than failing the availability check.
func (a *ReportAvailability) UnmarshalJSON(data []byte) error {
	type wire ReportAvailability
	var raw struct {
		wire
		ReportGeneratedDate *string `json:"reportGeneratedDate,omitempty"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*a = ReportAvailability(raw.wire)
	a.ReportGeneratedDate = nil
	if raw.ReportGeneratedDate != nil {
		a.ReportGeneratedDate = parseGeneratedDate(*raw.ReportGeneratedDate)
	}
	return nil
}

func parseGeneratedDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range generatedDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

func UnavailableReport() ReportAvailability {
	return ReportAvailability{
		IsAvailable:   false,
		CurrentStatus: AvailabilityUnknownStatus,
		Message:       ReportNotAvailableMessage,
	}
}

type NormalizedPayload struct {
	Bytes []byte
	Mime  string
}

func ReportFilename(artifactKind, requestID string) string {
	if artifactKind == "" {
		artifactKind = DefaultArtifactKind
	}
	return artifactKind + "-" + requestID + ".pdf"
}

package payload

import (
	"strings"

	"lab-report-access/internal/domain"
)

type Shape int

const (
	ShapeUnknown Shape = iota
	ShapeBinary
	ShapeTextEnvelope
)

func (s Shape) String() string {
	switch s {
	case ShapeBinary:
		return "binary"
	case ShapeTextEnvelope:
		return "text_envelope"
	default:
		return "unknown"
	}
}

// RawResponse is the download-report body tagged once by its content type.
type RawResponse struct {
	Shape       Shape
	ContentType string
	Body        []byte
}

func NewRawResponse(contentType string, body []byte) RawResponse {
	shape := ShapeTextEnvelope
	if strings.Contains(strings.ToLower(contentType), domain.PDFMime) {
		shape = ShapeBinary
	}
	return RawResponse{Shape: shape, ContentType: contentType, Body: body}
}

package payload

import "strings"

var escapeSteps = []struct {
	raw     string
	escaped string
}{
	{`"`, `\"`},
	{`\`, `\\`},
	{"\t", `\t`},
	{"\r", `\r`},
	{"\n", `\n`},
}

// Escape produces the text transcription the report service emits for a
// binary report: one character per byte, then the control substitutions.
func Escape(data []byte) string {
	var b strings.Builder
	b.Grow(len(data))
	for _, c := range data {
		b.WriteRune(rune(c))
	}
	s := b.String()
	for _, step := range escapeSteps {
		s = strings.ReplaceAll(s, step.raw, step.escaped)
	}
	return s
}

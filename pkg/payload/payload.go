package payload

import (
	"encoding/base64"
	"fmt"
	"regexp"
	"strings"

	"github.com/xssnick/tonutils-go/tvm/cell"
)

// PremiumMarker is the phrase that anchors a gift-subscription memo. Text
// before it is boilerplate and gets discarded by the heuristic decoder.
const PremiumMarker = "Telegram Premium"

var (
	crlfRe      = regexp.MustCompile(`\r\n?`)
	blankRunsRe = regexp.MustCompile(`[ ]*\n+`)
)

func decodeBase64(s string) ([]byte, error) {
	if m := len(s) % 4; m != 0 {
		s += strings.Repeat("=", 4-m)
	}
	raw, err := base64.StdEncoding.DecodeString(s)
	if err == nil {
		return raw, nil
	}
	return base64.URLEncoding.DecodeString(s)
}

// DecodeComment extracts the UTF-8 comment from a cell-encoded transfer
// payload. Malformed input yields an empty string, never an error: a memo
// is cosmetic and must not fail a transfer.
func DecodeComment(payload string) string {
	if payload == "" {
		return ""
	}
	raw, err := decodeBase64(payload)
	if err != nil {
		return ""
	}
	c, err := cell.FromBOC(raw)
	if err != nil {
		return ""
	}

	s := c.BeginParse()
	if s.BitsLeft() >= 32 {
		// Text comments carry a 32-bit zero opcode prefix.
		op, err := s.LoadUInt(32)
		if err != nil || op != 0 {
			return ""
		}
	}
	text, err := s.LoadStringSnake()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(text)
}

// DecodePremiumMemo best-effort extracts readable text from a gift
// subscription payload: base64-decode, keep printable ASCII plus line
// breaks, normalize newlines, collapse blank runs, and cut everything
// before the marker phrase. A decode failure is reported inside the
// returned string; callers treat the result as UX text, not as a signal.
func DecodePremiumMemo(payload string) string {
	raw, err := decodeBase64(payload)
	if err != nil {
		return fmt.Sprintf("decode_error: %v", err)
	}

	var b strings.Builder
	for _, ch := range string(raw) {
		if (ch >= 32 && ch <= 126) || ch == '\r' || ch == '\n' {
			b.WriteRune(ch)
		}
	}
	text := crlfRe.ReplaceAllString(b.String(), "\n")
	text = blankRunsRe.ReplaceAllString(text, "\n\n")
	text = strings.TrimSpace(text)

	if idx := strings.Index(text, PremiumMarker); idx != -1 {
		text = text[idx:]
	}
	return text
}

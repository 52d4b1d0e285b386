package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const signatureHeader = "X-Hub-Signature-256"

// ValidSignature checks the X-Hub-Signature-256 header Meta sends with every
// delivery: "sha256=" followed by the hex HMAC-SHA256 of the raw request body
// keyed with the app secret.
func ValidSignature(body []byte, header, appSecret string) bool {
	provided, ok := strings.CutPrefix(header, "sha256=")
	if !ok {
		return false
	}
	decoded, err := hex.DecodeString(provided)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(appSecret))
	mac.Write(body)
	return hmac.Equal(decoded, mac.Sum(nil))
}

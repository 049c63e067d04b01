package access

import (
	"encoding/base64"
	"strings"
)

const bearerPrefix = "Bearer "

// TokenFromHeader extracts the credential from an Authorization header value
// of the form "Bearer <base64>". The decoded bytes are the token. It reports
// false for missing, non-bearer or undecodable values.
func TokenFromHeader(h string) (string, bool) {
	if !strings.HasPrefix(h, bearerPrefix) {
		return "", false
	}
	enc := strings.TrimSpace(h[len(bearerPrefix):])
	if enc == "" {
		return "", false
	}
	raw, err := base64.StdEncoding.DecodeString(enc)
	if err != nil {
		// tolerate unpadded input
		raw, err = base64.RawStdEncoding.DecodeString(enc)
		if err != nil {
			return "", false
		}
	}
	if len(raw) == 0 {
		return "", false
	}
	return string(raw), true
}

// EncodeToken is the inverse of TokenFromHeader, used by clients.
func EncodeToken(token string) string {
	return bearerPrefix + base64.StdEncoding.EncodeToString([]byte(token))
}

// FromHeader resolves the capabilities carried by an Authorization header.
func (p *Policy) FromHeader(header, queue string) Capabilities {
	token, ok := TokenFromHeader(header)
	if !ok {
		return Capabilities{}
	}
	return p.Resolve(token, queue)
}

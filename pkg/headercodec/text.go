package headercodec

import (
	"encoding/base64"
	"encoding/hex"
	"mime"
	"net/url"
	"strings"

	"github.com/illmade-knight/go-malhttp/pkg/mal"
)

const upperHex = "0123456789ABCDEF"

// EncodeURI percent-encodes the UTF-8 bytes of s that are neither unreserved
// nor reserved characters (RFC 3986). '%' itself is always escaped.
func EncodeURI(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isURIChar(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(upperHex[c>>4])
		b.WriteByte(upperHex[c&0x0f])
	}
	return b.String()
}

// DecodeURI is the inverse of EncodeURI.
func DecodeURI(field, s string) (string, error) {
	v, err := url.PathUnescape(s)
	if err != nil {
		return "", malformed(field, s, err)
	}
	return v, nil
}

func isURIChar(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	return strings.IndexByte("-._~:/?#[]@!$&'()*+,;=", c) >= 0
}

var wordDecoder = new(mime.WordDecoder)

// EncodeText makes s a legal header value, using RFC 2047 encoded-words when s
// is not plain printable ASCII.
func EncodeText(s string) string {
	return encodeText(s, "")
}

// DecodeText is the inverse of EncodeText.
func DecodeText(field, s string) (string, error) {
	v, err := wordDecoder.DecodeHeader(s)
	if err != nil {
		return "", malformed(field, s, err)
	}
	return v, nil
}

// encodeText encodes s, additionally forcing an encoded-word when s contains any
// byte of reserved, so the caller can use those bytes as separators.
func encodeText(s, reserved string) string {
	if s == "" || strings.TrimSpace(s) != s || strings.Contains(s, "=?") ||
		(reserved != "" && strings.ContainsAny(s, reserved)) {
		return "=?utf-8?b?" + base64.StdEncoding.EncodeToString([]byte(s)) + "?="
	}
	return mime.BEncoding.Encode("utf-8", s)
}

// EncodeDomain joins the encoded domain entries with '.'.
func EncodeDomain(domain []string) string {
	if len(domain) == 0 {
		return ""
	}
	parts := make([]string, len(domain))
	for i, d := range domain {
		parts[i] = encodeText(d, ".")
	}
	return strings.Join(parts, ".")
}

// DecodeDomain is the inverse of EncodeDomain.
func DecodeDomain(s string) ([]string, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ".")
	domain := make([]string, len(parts))
	for i, p := range parts {
		v, err := DecodeText(HeaderDomain, p)
		if err != nil {
			return nil, err
		}
		domain[i] = v
	}
	return domain, nil
}

// EncodeBlob renders b as a lower-case hex string. An empty blob is "".
func EncodeBlob(b mal.Blob) string {
	return hex.EncodeToString(b)
}

// DecodeBlob is the inverse of EncodeBlob.
func DecodeBlob(s string) (mal.Blob, error) {
	if s == "" {
		return nil, nil
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, malformed(HeaderAuthenticationID, s, err)
	}
	return b, nil
}

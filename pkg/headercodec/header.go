// Package headercodec converts a message header to and from the flat map of HTTP
// header values that carries it on the wire.
package headercodec

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/illmade-knight/go-malhttp/pkg/mal"
)

// HeaderMap is the wire form of a message header: lower-case header names to values.
type HeaderMap map[string]string

// FromHTTP flattens an http.Header, keeping the first value of each header.
func FromHTTP(h http.Header) HeaderMap {
	m := make(HeaderMap, len(h))
	for k, v := range h {
		if len(v) > 0 {
			m[strings.ToLower(k)] = v[0]
		} else {
			m[strings.ToLower(k)] = ""
		}
	}
	return m
}

// WriteTo copies the map into an http.Header. Synthetic and connection level
// fields are left to the HTTP stack.
func (m HeaderMap) WriteTo(h http.Header) {
	for k, v := range m {
		switch k {
		case HeaderHost, HeaderRequestTarget, HeaderContentLength:
			continue
		}
		h.Set(k, v)
	}
}

// Destination extracts the destination fields.
func (m HeaderMap) Destination() Destination {
	return Destination{Host: m[HeaderHost], RequestTarget: m[HeaderRequestTarget], URITo: m[HeaderURITo]}
}

// HasProtocolHeaders reports whether every mandatory protocol header is present.
func (m HeaderMap) HasProtocolHeaders() bool {
	for _, name := range protocolHeaders {
		if _, ok := m[name]; !ok {
			return false
		}
	}
	return true
}

// Codec encodes and decodes complete headers. It carries no mutable state; the
// zero value uses the plain malhttp scheme.
type Codec struct {
	// Scheme is the logical scheme used to rebuild a destination from Host and
	// RequestTarget.
	Scheme string
}

func (c Codec) scheme() string {
	if c.Scheme == "" {
		return SchemeMALHTTP
	}
	return c.Scheme
}

// validate checks every mandatory field before anything is encoded, so a bad
// header is rejected as a whole.
func validate(h *mal.MessageHeader) error {
	switch {
	case h == nil:
		return missing("header")
	case h.URIFrom == "":
		return missing(HeaderURIFrom)
	case h.URITo == "":
		return missing(HeaderURITo)
	case !h.QoSLevel.Valid():
		return missing(HeaderQoSLevel)
	case h.NetworkZone == "":
		return missing(HeaderNetworkZone)
	case !h.Session.Valid():
		return missing(HeaderSession)
	case h.SessionName == "":
		return missing(HeaderSessionName)
	case !h.InteractionType.Valid():
		return missing(HeaderInteractionType)
	}
	return nil
}

// Encode renders h as a HeaderMap addressed through the physical endpoint. An
// empty physical endpoint is derived from h.URITo.
func (c Codec) Encode(h *mal.MessageHeader, physical string) (HeaderMap, error) {
	if err := validate(h); err != nil {
		return nil, err
	}
	dest, err := SplitDestination(h.URITo, physical)
	if err != nil {
		return nil, err
	}

	m, err := encodeFields(h)
	if err != nil {
		return nil, err
	}
	m[HeaderHost] = dest.Host
	if dest.RequestTarget != "" {
		m[HeaderRequestTarget] = dest.RequestTarget
	}
	if dest.URITo != "" {
		m[HeaderURITo] = EncodeURI(dest.URITo)
	}
	return m, nil
}

// EncodeResponse renders h for an HTTP response. A response has no request line,
// so the destination always travels as x-mal-uri-to.
func (c Codec) EncodeResponse(h *mal.MessageHeader) (HeaderMap, error) {
	if err := validate(h); err != nil {
		return nil, err
	}
	m, err := encodeFields(h)
	if err != nil {
		return nil, err
	}
	m[HeaderURITo] = EncodeURI(h.URITo)
	return m, nil
}

func encodeFields(h *mal.MessageHeader) (HeaderMap, error) {
	timestamp, err := EncodeTimestamp(h.Timestamp)
	if err != nil {
		return nil, err
	}
	return HeaderMap{
		HeaderURIFrom:          EncodeURI(h.URIFrom),
		HeaderVersionNumber:    VersionNumber,
		HeaderAuthenticationID: EncodeBlob(h.AuthenticationID),
		HeaderTimestamp:        timestamp,
		HeaderQoSLevel:         h.QoSLevel.String(),
		HeaderPriority:         strconv.FormatUint(uint64(h.Priority), 10),
		HeaderDomain:           EncodeDomain(h.Domain),
		HeaderNetworkZone:      EncodeText(h.NetworkZone),
		HeaderSession:          h.Session.String(),
		HeaderSessionName:      EncodeText(h.SessionName),
		HeaderInteractionType:  h.InteractionType.String(),
		HeaderInteractionStage: strconv.FormatUint(uint64(h.InteractionStage), 10),
		HeaderTransactionID:    strconv.FormatInt(h.TransactionID, 10),
		HeaderServiceArea:      strconv.FormatUint(uint64(h.ServiceArea), 10),
		HeaderService:          strconv.FormatUint(uint64(h.Service), 10),
		HeaderOperation:        strconv.FormatUint(uint64(h.Operation), 10),
		HeaderAreaVersion:      strconv.FormatUint(uint64(h.AreaVersion), 10),
		HeaderIsErrorMessage:   strconv.FormatBool(h.IsErrorMessage),
	}, nil
}

// Decode parses a HeaderMap back into a message header. The destination is
// rebuilt from x-mal-uri-to, or from Host and RequestTarget; when neither is
// present URITo is left empty.
func (c Codec) Decode(m HeaderMap) (*mal.MessageHeader, error) {
	d := decoder{m: m}
	h := &mal.MessageHeader{}

	if v, ok := d.get(HeaderURIFrom); ok {
		h.URIFrom, d.err = DecodeURI(HeaderURIFrom, v)
	}
	if v, ok := d.get(HeaderVersionNumber); ok && v != VersionNumber && d.err == nil {
		d.err = malformed(HeaderVersionNumber, v, nil)
	}
	if v, ok := d.get(HeaderAuthenticationID); ok && d.err == nil {
		h.AuthenticationID, d.err = DecodeBlob(v)
	}
	if v, ok := d.get(HeaderTimestamp); ok && d.err == nil {
		h.Timestamp, d.err = DecodeTimestamp(v)
	}
	if v, ok := d.get(HeaderQoSLevel); ok && d.err == nil {
		var valid bool
		if h.QoSLevel, valid = mal.ParseQoSLevel(v); !valid {
			d.err = malformed(HeaderQoSLevel, v, nil)
		}
	}
	h.Priority = uint32(d.unsigned(HeaderPriority, 32))
	if v, ok := d.get(HeaderDomain); ok && d.err == nil {
		h.Domain, d.err = DecodeDomain(v)
	}
	if v, ok := d.get(HeaderNetworkZone); ok && d.err == nil {
		h.NetworkZone, d.err = DecodeText(HeaderNetworkZone, v)
	}
	if v, ok := d.get(HeaderSession); ok && d.err == nil {
		var valid bool
		if h.Session, valid = mal.ParseSessionType(v); !valid {
			d.err = malformed(HeaderSession, v, nil)
		}
	}
	if v, ok := d.get(HeaderSessionName); ok && d.err == nil {
		h.SessionName, d.err = DecodeText(HeaderSessionName, v)
	}
	if v, ok := d.get(HeaderInteractionType); ok && d.err == nil {
		var valid bool
		if h.InteractionType, valid = mal.ParseInteractionType(v); !valid {
			d.err = malformed(HeaderInteractionType, v, nil)
		}
	}
	h.InteractionStage = uint8(d.unsigned(HeaderInteractionStage, 8))
	if v, ok := d.get(HeaderTransactionID); ok && d.err == nil {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			d.err = malformed(HeaderTransactionID, v, err)
		}
		h.TransactionID = id
	}
	h.ServiceArea = uint16(d.unsigned(HeaderServiceArea, 16))
	h.Service = uint16(d.unsigned(HeaderService, 16))
	h.Operation = uint16(d.unsigned(HeaderOperation, 16))
	h.AreaVersion = uint8(d.unsigned(HeaderAreaVersion, 8))
	if v, ok := d.get(HeaderIsErrorMessage); ok && d.err == nil {
		b, err := strconv.ParseBool(strings.ToLower(v))
		if err != nil {
			d.err = malformed(HeaderIsErrorMessage, v, err)
		}
		h.IsErrorMessage = b
	}
	if d.err != nil {
		return nil, d.err
	}

	dest := m.Destination()
	if dest.URITo != "" {
		uri, err := DecodeURI(HeaderURITo, dest.URITo)
		if err != nil {
			return nil, err
		}
		dest.URITo = uri
	}
	h.URITo = JoinDestination(c.scheme(), dest)
	return h, nil
}

// decoder remembers the first failure so the field list reads top to bottom.
type decoder struct {
	m   HeaderMap
	err error
}

func (d *decoder) get(name string) (string, bool) {
	if d.err != nil {
		return "", false
	}
	v, ok := d.m[name]
	if !ok {
		d.err = missing(name)
		return "", false
	}
	return strings.TrimSpace(v), true
}

func (d *decoder) unsigned(name string, bits int) uint64 {
	v, ok := d.get(name)
	if !ok {
		return 0
	}
	n, err := strconv.ParseUint(v, 10, bits)
	if err != nil {
		d.err = malformed(name, v, err)
	}
	return n
}

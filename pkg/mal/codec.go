package mal

import (
	"errors"
	"fmt"
)

// TypeTag names the type of one body element so a BodyCodec can decode it.
type TypeTag uint8

const (
	TagUInteger TypeTag = iota + 1
	TagString
	TagBlob
	TagElement
)

// BodyCodec turns a list of typed values into an encoded body and back. The
// transport never looks inside a body except to read or build the standard
// error number of an error message.
type BodyCodec interface {
	// ContentType is the HTTP content type of encoded bodies.
	ContentType() string
	// Encoding names a non-default body encoding; empty means the default.
	Encoding() string
	Encode(elements []any) ([]byte, error)
	Decode(data []byte, tags []TypeTag) ([]any, error)
}

// ErrorBody builds the element list of an error message body.
func ErrorBody(number ErrorNumber, extraInfo string) []any {
	return []any{uint32(number), extraInfo}
}

// DecodeStandardError reads the error number and extra information from the body
// of an error message.
func DecodeStandardError(codec BodyCodec, body []byte) (ErrorNumber, string, error) {
	elements, err := codec.Decode(body, []TypeTag{TagUInteger, TagString})
	if err != nil {
		return 0, "", fmt.Errorf("failed to decode error body: %w", err)
	}
	if len(elements) == 0 {
		return 0, "", errors.New("error body is empty")
	}
	var number ErrorNumber
	switch v := elements[0].(type) {
	case uint32:
		number = ErrorNumber(v)
	case ErrorNumber:
		number = v
	case int:
		number = ErrorNumber(v)
	case int64:
		number = ErrorNumber(v)
	default:
		return 0, "", fmt.Errorf("error body starts with %T, not an error number", elements[0])
	}
	var info string
	if len(elements) > 1 {
		if s, ok := elements[1].(string); ok {
			info = s
		}
	}
	return number, info, nil
}

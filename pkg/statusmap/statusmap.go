// Package statusmap translates between standard error numbers and HTTP status codes.
package statusmap

import (
	"fmt"
	"net/http"

	"github.com/illmade-knight/go-malhttp/pkg/mal"
)

// toStatus gives every standard error number its own HTTP status, so the forward
// direction is one-to-one.
var toStatus = map[mal.ErrorNumber]int{
	mal.ErrorDeliveryFailed:       http.StatusBadGateway,
	mal.ErrorDeliveryTimedOut:     http.StatusGatewayTimeout,
	mal.ErrorDeliveryDelayed:      http.StatusRequestTimeout,
	mal.ErrorDestinationUnknown:   http.StatusNotFound,
	mal.ErrorDestinationTransient: http.StatusServiceUnavailable,
	mal.ErrorDestinationLost:      http.StatusGone,
	mal.ErrorAuthenticationFail:   http.StatusUnauthorized,
	mal.ErrorAuthorisationFail:    http.StatusForbidden,
	mal.ErrorEncryptionFail:       http.StatusUpgradeRequired,
	mal.ErrorUnsupportedArea:      http.StatusUnprocessableEntity,
	mal.ErrorUnsupportedOperation: http.StatusNotImplemented,
	mal.ErrorUnsupportedVersion:   http.StatusHTTPVersionNotSupported,
	mal.ErrorBadEncoding:          http.StatusBadRequest,
	mal.ErrorInternal:             http.StatusInternalServerError,
	mal.ErrorUnknown:              http.StatusExpectationFailed,
	mal.ErrorIncorrectState:       http.StatusConflict,
	mal.ErrorTooMany:              http.StatusTooManyRequests,
	mal.ErrorShutdown:             http.StatusLocked,
}

// fromStatus is the reverse direction. Several statuses may share an error number.
var fromStatus = map[int]mal.ErrorNumber{
	http.StatusPaymentRequired:               mal.ErrorAuthorisationFail,
	http.StatusMethodNotAllowed:              mal.ErrorUnsupportedOperation,
	http.StatusNotAcceptable:                 mal.ErrorBadEncoding,
	http.StatusProxyAuthRequired:             mal.ErrorAuthenticationFail,
	http.StatusLengthRequired:                mal.ErrorBadEncoding,
	http.StatusPreconditionFailed:            mal.ErrorIncorrectState,
	http.StatusRequestEntityTooLarge:         mal.ErrorBadEncoding,
	http.StatusRequestURITooLong:             mal.ErrorDestinationUnknown,
	http.StatusUnsupportedMediaType:          mal.ErrorBadEncoding,
	http.StatusRequestedRangeNotSatisfiable:  mal.ErrorBadEncoding,
	http.StatusMisdirectedRequest:            mal.ErrorDestinationUnknown,
	http.StatusFailedDependency:              mal.ErrorDeliveryFailed,
	http.StatusTooEarly:                      mal.ErrorDestinationTransient,
	http.StatusPreconditionRequired:          mal.ErrorIncorrectState,
	http.StatusRequestHeaderFieldsTooLarge:   mal.ErrorBadEncoding,
	http.StatusUnavailableForLegalReasons:    mal.ErrorAuthorisationFail,
	http.StatusVariantAlsoNegotiates:         mal.ErrorInternal,
	http.StatusInsufficientStorage:           mal.ErrorTooMany,
	http.StatusLoopDetected:                  mal.ErrorDeliveryFailed,
	http.StatusNotExtended:                   mal.ErrorUnsupportedOperation,
	http.StatusNetworkAuthenticationRequired: mal.ErrorAuthenticationFail,
}

func init() {
	for number, status := range toStatus {
		if _, dup := fromStatus[status]; dup {
			panic(fmt.Sprintf("statusmap: status %d is mapped twice", status))
		}
		fromStatus[status] = number
	}
}

// HTTPStatus returns the HTTP status carrying the standard error number. Numbers
// outside the standard set map to 500.
func HTTPStatus(number mal.ErrorNumber) int {
	if status, ok := toStatus[number]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// ErrorNumber returns the standard error number for an HTTP error status.
// Statuses without a mapping resolve to the internal error. It panics for
// statuses below 400, which are not errors.
func ErrorNumber(status int) mal.ErrorNumber {
	if status < http.StatusBadRequest {
		panic(fmt.Sprintf("statusmap: status %d is not an error status", status))
	}
	if number, ok := fromStatus[status]; ok {
		return number
	}
	return mal.ErrorInternal
}

// IsError reports whether status is in the HTTP error range.
func IsError(status int) bool {
	return status >= http.StatusBadRequest
}

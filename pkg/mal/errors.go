package mal

import (
	"fmt"
)

// ErrorNumber is a standard error number carried as the first body element of an
// error message.
type ErrorNumber uint32

const (
	ErrorDeliveryFailed       ErrorNumber = 65536
	ErrorDeliveryTimedOut     ErrorNumber = 65537
	ErrorDeliveryDelayed      ErrorNumber = 65538
	ErrorDestinationUnknown   ErrorNumber = 65539
	ErrorDestinationTransient ErrorNumber = 65540
	ErrorDestinationLost      ErrorNumber = 65541
	ErrorAuthenticationFail   ErrorNumber = 65542
	ErrorAuthorisationFail    ErrorNumber = 65543
	ErrorEncryptionFail       ErrorNumber = 65544
	ErrorUnsupportedArea      ErrorNumber = 65545
	ErrorUnsupportedOperation ErrorNumber = 65546
	ErrorUnsupportedVersion   ErrorNumber = 65547
	ErrorBadEncoding          ErrorNumber = 65548
	ErrorInternal             ErrorNumber = 65549
	ErrorUnknown              ErrorNumber = 65550
	ErrorIncorrectState       ErrorNumber = 65551
	ErrorTooMany              ErrorNumber = 65552
	ErrorShutdown             ErrorNumber = 65553
)

var errorNames = map[ErrorNumber]string{
	ErrorDeliveryFailed:       "DELIVERY_FAILED",
	ErrorDeliveryTimedOut:     "DELIVERY_TIMEDOUT",
	ErrorDeliveryDelayed:      "DELIVERY_DELAYED",
	ErrorDestinationUnknown:   "DESTINATION_UNKNOWN",
	ErrorDestinationTransient: "DESTINATION_TRANSIENT",
	ErrorDestinationLost:      "DESTINATION_LOST",
	ErrorAuthenticationFail:   "AUTHENTICATION_FAIL",
	ErrorAuthorisationFail:    "AUTHORISATION_FAIL",
	ErrorEncryptionFail:       "ENCRYPTION_FAIL",
	ErrorUnsupportedArea:      "UNSUPPORTED_AREA",
	ErrorUnsupportedOperation: "UNSUPPORTED_OPERATION",
	ErrorUnsupportedVersion:   "UNSUPPORTED_VERSION",
	ErrorBadEncoding:          "BAD_ENCODING",
	ErrorInternal:             "INTERNAL",
	ErrorUnknown:              "UNKNOWN",
	ErrorIncorrectState:       "INCORRECT_STATE",
	ErrorTooMany:              "TOO_MANY",
	ErrorShutdown:             "SHUTDOWN",
}

// StandardErrors lists every defined standard error number.
func StandardErrors() []ErrorNumber {
	out := make([]ErrorNumber, 0, len(errorNames))
	for n := ErrorDeliveryFailed; n <= ErrorShutdown; n++ {
		out = append(out, n)
	}
	return out
}

func (n ErrorNumber) String() string {
	if name, ok := errorNames[n]; ok {
		return name
	}
	return fmt.Sprintf("ErrorNumber(%d)", uint32(n))
}

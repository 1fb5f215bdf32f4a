package headercodec

// Wire header names in their lower-case canonical form.
const (
	HeaderHost             = "host"
	HeaderContentLength    = "content-length"
	HeaderContentType      = "content-type"
	HeaderURITo            = "x-mal-uri-to"
	HeaderURIFrom          = "x-mal-uri-from"
	HeaderEncoding         = "x-mal-encoding"
	HeaderVersionNumber    = "x-mal-version-number"
	HeaderAuthenticationID = "x-mal-authentication-id"
	HeaderTimestamp        = "x-mal-timestamp"
	HeaderQoSLevel         = "x-mal-qoslevel"
	HeaderPriority         = "x-mal-priority"
	HeaderDomain           = "x-mal-domain"
	HeaderNetworkZone      = "x-mal-network-zone"
	HeaderSession          = "x-mal-session"
	HeaderSessionName      = "x-mal-session-name"
	HeaderInteractionType  = "x-mal-interaction-type"
	HeaderInteractionStage = "x-mal-interaction-stage"
	HeaderTransactionID    = "x-mal-transaction-id"
	HeaderServiceArea      = "x-mal-service-area"
	HeaderService          = "x-mal-service"
	HeaderOperation        = "x-mal-operation"
	HeaderAreaVersion      = "x-mal-area-version"
	HeaderIsErrorMessage   = "x-mal-is-error-message"
	// HeaderRequestTarget is synthesized by the server from the request line.
	HeaderRequestTarget = "request-target"
)

// VersionNumber is the protocol version written to x-mal-version-number.
const VersionNumber = "1"

// protocolHeaders are present on every message produced by a protocol layer.
// A response lacking any of them never reached the peer's protocol layer.
var protocolHeaders = []string{
	HeaderURIFrom,
	HeaderVersionNumber,
	HeaderAuthenticationID,
	HeaderTimestamp,
	HeaderQoSLevel,
	HeaderPriority,
	HeaderDomain,
	HeaderNetworkZone,
	HeaderSession,
	HeaderSessionName,
	HeaderInteractionType,
	HeaderInteractionStage,
	HeaderTransactionID,
	HeaderServiceArea,
	HeaderService,
	HeaderOperation,
	HeaderAreaVersion,
	HeaderIsErrorMessage,
}

// ProtocolHeaders returns the names of the mandatory protocol headers.
func ProtocolHeaders() []string {
	return append([]string(nil), protocolHeaders...)
}

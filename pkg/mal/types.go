// Package mal holds the value types of the message abstraction carried by the
// HTTP binding: the message header, its enumerations, the interaction stages and
// the standard error numbers.
package mal

import (
	"fmt"
)

// InteractionType identifies one of the six interaction patterns.
type InteractionType uint8

const (
	InteractionSend     InteractionType = 1
	InteractionSubmit   InteractionType = 2
	InteractionRequest  InteractionType = 3
	InteractionInvoke   InteractionType = 4
	InteractionProgress InteractionType = 5
	InteractionPubSub   InteractionType = 6
)

var interactionNames = map[InteractionType]string{
	InteractionSend:     "SEND",
	InteractionSubmit:   "SUBMIT",
	InteractionRequest:  "REQUEST",
	InteractionInvoke:   "INVOKE",
	InteractionProgress: "PROGRESS",
	InteractionPubSub:   "PUBSUB",
}

// Valid reports whether t is one of the defined patterns.
func (t InteractionType) Valid() bool {
	_, ok := interactionNames[t]
	return ok
}

func (t InteractionType) String() string {
	if name, ok := interactionNames[t]; ok {
		return name
	}
	return fmt.Sprintf("InteractionType(%d)", uint8(t))
}

// ParseInteractionType is the inverse of InteractionType.String.
func ParseInteractionType(s string) (InteractionType, bool) {
	for t, name := range interactionNames {
		if name == s {
			return t, true
		}
	}
	return 0, false
}

// QoSLevel is the quality of service requested for a message.
type QoSLevel uint8

const (
	QoSBestEffort QoSLevel = 1
	QoSAssured    QoSLevel = 2
	QoSQueued     QoSLevel = 3
	QoSTimely     QoSLevel = 4
)

var qosNames = map[QoSLevel]string{
	QoSBestEffort: "BESTEFFORT",
	QoSAssured:    "ASSURED",
	QoSQueued:     "QUEUED",
	QoSTimely:     "TIMELY",
}

func (q QoSLevel) Valid() bool {
	_, ok := qosNames[q]
	return ok
}

func (q QoSLevel) String() string {
	if name, ok := qosNames[q]; ok {
		return name
	}
	return fmt.Sprintf("QoSLevel(%d)", uint8(q))
}

func ParseQoSLevel(s string) (QoSLevel, bool) {
	for q, name := range qosNames {
		if name == s {
			return q, true
		}
	}
	return 0, false
}

// SessionType is the kind of session a message belongs to.
type SessionType uint8

const (
	SessionLive       SessionType = 1
	SessionSimulation SessionType = 2
	SessionReplay     SessionType = 3
)

var sessionNames = map[SessionType]string{
	SessionLive:       "LIVE",
	SessionSimulation: "SIMULATION",
	SessionReplay:     "REPLAY",
}

func (s SessionType) Valid() bool {
	_, ok := sessionNames[s]
	return ok
}

func (s SessionType) String() string {
	if name, ok := sessionNames[s]; ok {
		return name
	}
	return fmt.Sprintf("SessionType(%d)", uint8(s))
}

func ParseSessionType(v string) (SessionType, bool) {
	for s, name := range sessionNames {
		if name == v {
			return s, true
		}
	}
	return 0, false
}

// Interaction stages. A stage is only meaningful relative to its InteractionType.
const (
	SendStage uint8 = 0

	SubmitStage    uint8 = 1
	SubmitAckStage uint8 = 2

	RequestStage         uint8 = 1
	RequestResponseStage uint8 = 2

	InvokeStage         uint8 = 1
	InvokeAckStage      uint8 = 2
	InvokeResponseStage uint8 = 3

	ProgressStage         uint8 = 1
	ProgressAckStage      uint8 = 2
	ProgressUpdateStage   uint8 = 3
	ProgressResponseStage uint8 = 4

	PubSubRegisterStage             uint8 = 1
	PubSubRegisterAckStage          uint8 = 2
	PubSubPublishRegisterStage      uint8 = 3
	PubSubPublishRegisterAckStage   uint8 = 4
	PubSubPublishStage              uint8 = 5
	PubSubNotifyStage               uint8 = 6
	PubSubDeregisterStage           uint8 = 7
	PubSubDeregisterAckStage        uint8 = 8
	PubSubPublishDeregisterStage    uint8 = 9
	PubSubPublishDeregisterAckStage uint8 = 10
)

// Blob is an opaque byte sequence.
type Blob []byte

// Time is a point in time in milliseconds since the POSIX epoch.
type Time int64

// FineTime is a point in time in nanoseconds since the POSIX epoch.
type FineTime int64

// Duration is a signed span of time in seconds.
type Duration float64

// Package interaction classifies interaction stages: whether a stage expects no
// reply, whether it is itself a reply, and which HTTP status a successful reply
// at that stage is sent with.
package interaction

import (
	"net/http"

	"github.com/illmade-knight/go-malhttp/pkg/mal"
)

type stageKey struct {
	t     mal.InteractionType
	stage uint8
}

// noReplyExpected holds the stages whose sender neither blocks for nor expects a
// reply message. SEND is terminal at every stage and is handled separately.
var noReplyExpected = map[stageKey]struct{}{
	{mal.InteractionInvoke, mal.InvokeResponseStage}:     {},
	{mal.InteractionProgress, mal.ProgressUpdateStage}:   {},
	{mal.InteractionProgress, mal.ProgressResponseStage}: {},
	{mal.InteractionPubSub, mal.PubSubPublishStage}:      {},
	{mal.InteractionPubSub, mal.PubSubNotifyStage}:       {},
}

// replyStatus holds the stages that are themselves the reply to an earlier
// message, with the HTTP status used when the reply is not an error.
var replyStatus = map[stageKey]int{
	{mal.InteractionSubmit, mal.SubmitAckStage}:                  http.StatusAccepted,
	{mal.InteractionRequest, mal.RequestResponseStage}:           http.StatusOK,
	{mal.InteractionInvoke, mal.InvokeAckStage}:                  http.StatusAccepted,
	{mal.InteractionProgress, mal.ProgressAckStage}:              http.StatusAccepted,
	{mal.InteractionPubSub, mal.PubSubRegisterAckStage}:          http.StatusAccepted,
	{mal.InteractionPubSub, mal.PubSubPublishRegisterAckStage}:   http.StatusAccepted,
	{mal.InteractionPubSub, mal.PubSubDeregisterAckStage}:        http.StatusAccepted,
	{mal.InteractionPubSub, mal.PubSubPublishDeregisterAckStage}: http.StatusAccepted,
}

// IsTerminal reports whether a message at this stage expects no reply.
func IsTerminal(t mal.InteractionType, stage uint8) bool {
	if t == mal.InteractionSend {
		return true
	}
	_, ok := noReplyExpected[stageKey{t, stage}]
	return ok
}

// IsReply reports whether a message at this stage is the reply to a message the
// receiver sent earlier.
func IsReply(t mal.InteractionType, stage uint8) bool {
	_, ok := replyStatus[stageKey{t, stage}]
	return ok
}

// SuccessStatus is the HTTP status of a non-error reply at this stage, or of the
// immediate acknowledgement of a terminal stage. Any other stage reports 200.
func SuccessStatus(t mal.InteractionType, stage uint8) int {
	if IsTerminal(t, stage) {
		return http.StatusNoContent
	}
	if status, ok := replyStatus[stageKey{t, stage}]; ok {
		return status
	}
	return http.StatusOK
}

// Disposition is what the receiver of a message has to do with it.
type Disposition int

const (
	// AwaitReply means the message opens an exchange that a later reply completes.
	AwaitReply Disposition = iota
	// Terminal means the message is acknowledged at once and no reply follows.
	Terminal
	// Reply means the message answers an exchange the receiver opened.
	Reply
)

// Classify combines IsTerminal and IsReply. Unknown combinations await a reply.
func Classify(t mal.InteractionType, stage uint8) Disposition {
	switch {
	case IsTerminal(t, stage):
		return Terminal
	case IsReply(t, stage):
		return Reply
	}
	return AwaitReply
}

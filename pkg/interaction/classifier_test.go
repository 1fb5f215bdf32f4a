package interaction_test

import (
	"net/http"
	"testing"

	"github.com/illmade-knight/go-malhttp/pkg/interaction"
	"github.com/illmade-knight/go-malhttp/pkg/mal"
	"github.com/stretchr/testify/assert"
)

func TestSendIsTerminalAtEveryStage(t *testing.T) {
	for stage := 0; stage <= 255; stage++ {
		assert.True(t, interaction.IsTerminal(mal.InteractionSend, uint8(stage)))
		assert.False(t, interaction.IsReply(mal.InteractionSend, uint8(stage)))
	}
}

func TestClassify(t *testing.T) {
	testCases := []struct {
		name     string
		t        mal.InteractionType
		stage    uint8
		expected interaction.Disposition
		status   int
	}{
		{"submit", mal.InteractionSubmit, mal.SubmitStage, interaction.AwaitReply, http.StatusOK},
		{"submit ack", mal.InteractionSubmit, mal.SubmitAckStage, interaction.Reply, http.StatusAccepted},
		{"request", mal.InteractionRequest, mal.RequestStage, interaction.AwaitReply, http.StatusOK},
		{"request response", mal.InteractionRequest, mal.RequestResponseStage, interaction.Reply, http.StatusOK},
		{"invoke ack", mal.InteractionInvoke, mal.InvokeAckStage, interaction.Reply, http.StatusAccepted},
		{"invoke response", mal.InteractionInvoke, mal.InvokeResponseStage, interaction.Terminal, http.StatusNoContent},
		{"progress ack", mal.InteractionProgress, mal.ProgressAckStage, interaction.Reply, http.StatusAccepted},
		{"progress update", mal.InteractionProgress, mal.ProgressUpdateStage, interaction.Terminal, http.StatusNoContent},
		{"progress response", mal.InteractionProgress, mal.ProgressResponseStage, interaction.Terminal, http.StatusNoContent},
		{"register", mal.InteractionPubSub, mal.PubSubRegisterStage, interaction.AwaitReply, http.StatusOK},
		{"register ack", mal.InteractionPubSub, mal.PubSubRegisterAckStage, interaction.Reply, http.StatusAccepted},
		{"publish register ack", mal.InteractionPubSub, mal.PubSubPublishRegisterAckStage, interaction.Reply, http.StatusAccepted},
		{"publish", mal.InteractionPubSub, mal.PubSubPublishStage, interaction.Terminal, http.StatusNoContent},
		{"notify", mal.InteractionPubSub, mal.PubSubNotifyStage, interaction.Terminal, http.StatusNoContent},
		{"deregister ack", mal.InteractionPubSub, mal.PubSubDeregisterAckStage, interaction.Reply, http.StatusAccepted},
		{"publish deregister ack", mal.InteractionPubSub, mal.PubSubPublishDeregisterAckStage, interaction.Reply, http.StatusAccepted},
		{"unknown stage", mal.InteractionRequest, 9, interaction.AwaitReply, http.StatusOK},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, interaction.Classify(tc.t, tc.stage))
			assert.Equal(t, tc.status, interaction.SuccessStatus(tc.t, tc.stage))
		})
	}
}

func TestIsReply(t *testing.T) {
	assert.True(t, interaction.IsReply(mal.InteractionSubmit, mal.SubmitAckStage))
	assert.False(t, interaction.IsReply(mal.InteractionSubmit, mal.SubmitStage))
}

package orchestrator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jetperch/joulescope-driver-sub001/internal/queue"
)

func TestFrontendDrainsInboxAndPublishes(t *testing.T) {
	inbox, err := queue.NewMessageQueue()
	require.NoError(t, err)
	defer inbox.Close()

	f := NewFrontend(inbox, nil)
	f.Start()
	defer f.Stop()

	topic := queue.MustParseTopic("h/setting")
	f.Submit(queue.NewMessage(topic, queue.U8Value(7).WithFlags(queue.FlagRetain)))

	require.Eventually(t, func() bool {
		v, code := f.Broker().Query(topic)
		if code != queue.CodeSuccess {
			return false
		}
		n, ok := v.Uint()
		return ok && n == 7
	}, time.Second, 5*time.Millisecond)
}

func TestFrontendStopAfterSubmittedMessageIsPublished(t *testing.T) {
	inbox, err := queue.NewMessageQueue()
	require.NoError(t, err)
	defer inbox.Close()

	f := NewFrontend(inbox, nil)
	f.Start()

	topic := queue.MustParseTopic("h/x")
	f.Submit(queue.NewMessage(topic, queue.U8Value(1).WithFlags(queue.FlagRetain)))
	require.Eventually(t, func() bool {
		_, code := f.Broker().Query(topic)
		return code == queue.CodeSuccess
	}, time.Second, 5*time.Millisecond)

	f.Stop()
}

package server

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/stretchr/testify/require"

	"github.com/Amr-9/btcvanity/internal/job"
	"github.com/Amr-9/btcvanity/pkg/generator"
	"github.com/Amr-9/btcvanity/pkg/generator/cpu"
)

func newTestController() *job.Controller {
	return job.NewController(job.Config{
		Searcher: cpu.NewEngine(cpu.Config{Workers: 2, BatchSize: 50}, 0),
	})
}

func TestSessionStore(t *testing.T) {
	t.Parallel()

	sessions := NewSessionStore()
	first := sessions.Open("10.0.0.1:1000", newTestController())
	time.Sleep(time.Millisecond)
	second := sessions.Open("10.0.0.2:2000", newTestController())

	require.NotEqual(t, first.ID, second.ID)
	require.Equal(t, 2, sessions.Len())

	got, ok := sessions.Get(first.ID)
	require.True(t, ok)
	require.Same(t, first, got)

	_, ok = sessions.Get(uuid.New())
	require.False(t, ok)

	list := sessions.List()
	require.Len(t, list, 2)
	require.Same(t, first, list[0])
	require.Same(t, second, list[1])

	sessions.Close(first.ID)
	sessions.Close(first.ID)
	require.Equal(t, 1, sessions.Len())

	sessions.CloseAll()
	require.Zero(t, sessions.Len())
}

func TestSessionCloseStopsJob(t *testing.T) {
	t.Parallel()

	sessions := NewSessionStore()
	sess := sessions.Open("127.0.0.1:1", newTestController())

	_, err := sess.Controller.Start(&generator.Request{
		Format:       generator.FormatLegacy,
		Pattern:      impossible,
		AttemptLimit: fn.None[uint64](),
	})
	require.NoError(t, err)
	require.Equal(t, job.StateRunning, sess.Controller.Snapshot().State)

	sessions.Close(sess.ID)

	require.NotEqual(t, job.StateRunning, sess.Controller.Snapshot().State)
	_, err = sess.Controller.Start(&generator.Request{
		Format:       generator.FormatLegacy,
		Pattern:      impossible,
		AttemptLimit: fn.None[uint64](),
	})
	require.ErrorIs(t, err, job.ErrControllerClosed)
}

package pool

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pgwire-go/pgwire/internal/pgtest"
	"github.com/pgwire-go/pgwire/pkg/conn"
)

func TestOpen_BringsUpAllSlots(t *testing.T) {
	const n = 3
	srv := pgtest.New(t)
	for i := 0; i < n; i++ {
		srv.Run(pgtest.AcceptUnauthenticated()...)
	}
	host, port := srv.HostPort()

	p, err := New(Config{
		Config: conn.Config{
			Host:             host,
			Port:             port,
			Database:         "postgres",
			Username:         "postgres",
			TimeoutInSeconds: 2,
		},
		Size: n,
	})
	require.NoError(t, err)
	require.NoError(t, p.Open(context.Background()))

	st := p.Stats()
	assert.Equal(t, n, st.Live)
	assert.Equal(t, 0, st.Busy)

	p.Close()
}

func TestAcquireRelease_RoundRobinsLeastLoaded(t *testing.T) {
	const n = 2
	srv := pgtest.New(t)
	for i := 0; i < n; i++ {
		srv.Run(pgtest.AcceptUnauthenticated()...)
	}
	host, port := srv.HostPort()

	p, err := New(Config{
		Config: conn.Config{
			Host:             host,
			Port:             port,
			Database:         "postgres",
			Username:         "postgres",
			TimeoutInSeconds: 2,
		},
		Size: n,
	})
	require.NoError(t, err)
	require.NoError(t, p.Open(context.Background()))
	defer p.Close()

	h1, err := p.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, p.Stats().Busy)

	h2, err := p.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, p.Stats().Busy)
	assert.NotSame(t, h1.Conn(), h2.Conn())

	h1.Release()
	assert.Equal(t, 1, p.Stats().Busy)
	h2.Release()
	assert.Equal(t, 0, p.Stats().Busy)
}

func TestAcquire_TimesOutWhenPoolExhausted(t *testing.T) {
	srv := pgtest.New(t)
	srv.Run(pgtest.AcceptUnauthenticated()...)
	host, port := srv.HostPort()

	p, err := New(Config{
		Config: conn.Config{
			Host:             host,
			Port:             port,
			Database:         "postgres",
			Username:         "postgres",
			TimeoutInSeconds: 2,
		},
		Size: 1,
	})
	require.NoError(t, err)
	require.NoError(t, p.Open(context.Background()))
	defer p.Close()

	h, err := p.Acquire(context.Background())
	require.NoError(t, err)
	defer h.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 0)
	defer cancel()
	_, err = p.Acquire(ctx)
	require.Error(t, err)
}

func TestClose_WaitsForBusySlotBeforeClosingConnection(t *testing.T) {
	srv := pgtest.New(t)
	errCh := srv.Run(pgtest.AcceptUnauthenticated()...)
	host, port := srv.HostPort()

	p, err := New(Config{
		Config: conn.Config{
			Host:             host,
			Port:             port,
			Database:         "postgres",
			Username:         "postgres",
			TimeoutInSeconds: 2,
		},
		Size: 1,
	})
	require.NoError(t, err)
	require.NoError(t, p.Open(context.Background()))

	h, err := p.Acquire(context.Background())
	require.NoError(t, err)

	closeDone := make(chan struct{})
	go func() {
		p.Close()
		close(closeDone)
	}()

	select {
	case <-closeDone:
		t.Fatal("Close returned before the busy handle was released")
	case <-time.After(50 * time.Millisecond):
	}
	assert.NotEqual(t, "closed", h.Conn().State())

	h.Release()

	select {
	case <-closeDone:
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not return after the handle was released")
	}

	require.NoError(t, <-errCh)
}

func TestClose_FailsSubsequentAcquire(t *testing.T) {
	srv := pgtest.New(t)
	srv.Run(pgtest.AcceptUnauthenticated()...)
	host, port := srv.HostPort()

	p, err := New(Config{
		Config: conn.Config{
			Host:             host,
			Port:             port,
			Database:         "postgres",
			Username:         "postgres",
			TimeoutInSeconds: 2,
		},
		Size: 1,
	})
	require.NoError(t, err)
	require.NoError(t, p.Open(context.Background()))

	p.Close()

	_, err = p.Acquire(context.Background())
	require.Error(t, err)
}

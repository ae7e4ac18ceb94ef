package chaos

import (
	"context"
	"testing"
	"time"

	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub002/pkg/exception"
	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub002/pkg/websocket"
	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub002/pkg/websocket/wstest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testKey = websocket.Key{URL: "ws://chaos.test/ws/events"}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, Config{}.Validate())
	assert.False(t, Config{}.Enabled())
	assert.True(t, Config{DropRate: 0.1}.Enabled())

	assert.ErrorIs(t, Config{DropRate: 1.5}.Validate(), exception.ErrChaosRateRange)
	assert.ErrorIs(t, Config{DuplicateRate: -0.1}.Validate(), exception.ErrChaosRateRange)
	assert.ErrorIs(t, Config{DialFailRate: 2}.Validate(), exception.ErrChaosRateRange)
	assert.ErrorIs(t, Config{StallRate: 1.01}.Validate(), exception.ErrChaosRateRange)
	assert.ErrorIs(t, Config{MaxDelay: -time.Second}.Validate(), exception.ErrConfigInvalid)

	_, err := NewDialer(wstest.NewDialer(), Config{DropRate: 3})
	assert.Error(t, err)
	_, err = NewDialer(nil, Config{})
	assert.ErrorIs(t, err, exception.ErrNilInstance)
}

func TestDialFailure(t *testing.T) {
	base := wstest.NewDialer()
	d, err := NewDialer(base, Config{Seed: 1, DialFailRate: 1})
	require.NoError(t, err)

	_, err = d.Dial(context.Background(), testKey)
	assert.ErrorIs(t, err, exception.ErrChaosDialFailed)
	assert.Zero(t, base.Dials.Load())
}

func TestDialStall(t *testing.T) {
	base := wstest.NewDialer()
	d, err := NewDialer(base, Config{Seed: 1, StallRate: 1})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = d.Dial(ctx, testKey)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Zero(t, base.Dials.Load())
}

func TestPassThrough(t *testing.T) {
	base := wstest.NewDialer()
	d, err := NewDialer(base, Config{Seed: 1})
	require.NoError(t, err)

	c, err := d.Dial(context.Background(), testKey)
	require.NoError(t, err)
	raw := base.Next(t)
	raw.Push(t, `{"type":"ping"}`)

	typ, payload, err := c.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, websocket.MessageText, typ)
	assert.Equal(t, `{"type":"ping"}`, string(payload))

	require.NoError(t, c.Write(context.Background(), websocket.MessageText, []byte("x")))
	assert.Equal(t, "x", string(<-raw.Written))
	require.NoError(t, c.Close(websocket.CloseNormal, ""))
	assert.True(t, raw.Closed())
}

func TestDropAll(t *testing.T) {
	base := wstest.NewDialer()
	d, err := NewDialer(base, Config{Seed: 1, DropRate: 1})
	require.NoError(t, err)

	c, err := d.Dial(context.Background(), testKey)
	require.NoError(t, err)
	raw := base.Next(t)
	raw.Push(t, "a")
	raw.Push(t, "b")

	done := make(chan error, 1)
	go func() {
		_, _, err := c.Read(context.Background())
		done <- err
	}()
	select {
	case err := <-done:
		t.Fatalf("read returned early: %v", err)
	case <-time.After(20 * time.Millisecond):
	}
	_ = raw.Close(websocket.CloseNormal, "")
	select {
	case err := <-done:
		var ce *websocket.CloseError
		assert.ErrorAs(t, err, &ce)
	case <-time.After(time.Second):
		t.Fatal("read did not unblock on close")
	}
}

func TestDuplicateAll(t *testing.T) {
	base := wstest.NewDialer()
	d, err := NewDialer(base, Config{Seed: 1, DuplicateRate: 1})
	require.NoError(t, err)

	c, err := d.Dial(context.Background(), testKey)
	require.NoError(t, err)
	base.Next(t).Push(t, "a")

	for range 2 {
		_, payload, err := c.Read(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "a", string(payload))
	}
}

func TestManagerFailsUnderDialChaos(t *testing.T) {
	base := wstest.NewDialer()
	d, err := NewDialer(base, Config{Seed: 1, DialFailRate: 1})
	require.NoError(t, err)

	m := websocket.NewManager(websocket.Options{Dialer: d})
	defer m.Close()

	cfg := wstest.FastConfig()
	cfg.MaxReconnectAttempts = 2
	unsub := m.Subscribe(testKey, websocket.Subscriber{}, cfg)
	defer unsub()

	require.Eventually(t, func() bool {
		return m.State(testKey).Status == websocket.StatusFailed
	}, 2*time.Second, time.Millisecond)
	assert.Zero(t, base.Dials.Load())
}

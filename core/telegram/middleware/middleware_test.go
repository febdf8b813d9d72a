package middleware

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"
)

func newContext(t *testing.T, upd tele.Update) tele.Context {
	t.Helper()
	bot, err := tele.NewBot(tele.Settings{Offline: true})
	require.NoError(t, err)
	return bot.NewContext(upd)
}

func message(userID, chatID int64) tele.Update {
	return tele.Update{ID: 1, Message: &tele.Message{
		Sender: &tele.User{ID: userID},
		Chat:   &tele.Chat{ID: chatID},
		Text:   "hi",
	}}
}

func TestAdminOptionsAllowed(t *testing.T) {
	opts := AdminOptions{AdminIDs: []int64{10, 20}}
	assert.True(t, opts.Allowed(10))
	assert.False(t, opts.Allowed(30))
	assert.False(t, opts.Allowed(0))
	assert.False(t, AdminOptions{}.Allowed(10))
}

func TestAdminOnlyMiddleware(t *testing.T) {
	var reached, rejected bool
	mw := AdminOnlyMiddleware(AdminOptions{
		AdminIDs: []int64{10},
		OnReject: func(tele.Context) error { rejected = true; return nil },
	})
	h := mw(func(tele.Context) error { reached = true; return nil })

	require.NoError(t, h(newContext(t, message(11, 11))))
	assert.False(t, reached)
	assert.True(t, rejected)

	require.NoError(t, h(newContext(t, message(10, 10))))
	assert.True(t, reached)
}

func TestKeyedMutexSerialisesSameKey(t *testing.T) {
	k := NewKeyedMutex()
	var inside, peak atomic.Int32
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := k.Lock(5)
			defer unlock()
			n := inside.Add(1)
			if n > peak.Load() {
				peak.Store(n)
			}
			time.Sleep(time.Millisecond)
			inside.Add(-1)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), peak.Load())
	assert.Zero(t, k.Len(), "idle keys are released")
}

func TestKeyedMutexOtherKeysProceed(t *testing.T) {
	k := NewKeyedMutex()
	unlock := k.Lock(1)
	defer unlock()

	done := make(chan struct{})
	go func() {
		k.Lock(2)()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on another key blocked")
	}
}

func TestRecoverMiddleware(t *testing.T) {
	h := RecoverMiddleware(func(tele.Context) error { panic("boom") })
	err := h(newContext(t, message(1, 1)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")

	want := errors.New("plain")
	h = RecoverMiddleware(func(tele.Context) error { return want })
	assert.ErrorIs(t, h(newContext(t, message(1, 1))), want)
}

func TestRateLimitMiddleware(t *testing.T) {
	now := time.Unix(0, 0)
	var limited int
	mw := RateLimitMiddleware(RateLimitOptions{
		Interval:  time.Second,
		OnLimited: func(tele.Context) error { limited++; return nil },
		Now:       func() time.Time { return now },
	})
	var calls int
	h := mw(func(tele.Context) error { calls++; return nil })

	c := newContext(t, message(3, 3))
	require.NoError(t, h(c))
	require.NoError(t, h(c))
	now = now.Add(2 * time.Second)
	require.NoError(t, h(c))

	assert.Equal(t, 2, calls)
	assert.Equal(t, 1, limited)
}

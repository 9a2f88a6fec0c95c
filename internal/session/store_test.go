package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vetter/internal/history"
	"vetter/internal/models"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestStore(ttl time.Duration) (*Store, *fakeClock) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	store := NewStore(ttl, nil)
	store.now = clock.Now
	return store, clock
}

func TestCreateSeedsHistory(t *testing.T) {
	store := NewStore(time.Minute, nil, models.SystemMessage("Interview the candidate."))

	sess := store.Create()
	require.NotEmpty(t, sess.ID)

	snap := sess.Snapshot()
	assert.Equal(t, sess.ID, snap.ID)
	assert.Equal(t, 1, snap.Count)
	assert.Equal(t, "Interview the candidate.", snap.Messages[0].Content)
	assert.False(t, snap.Pending)
	assert.Equal(t, 1, store.Len())
}

func TestEnsureReusesKnownSession(t *testing.T) {
	store, _ := newTestStore(time.Minute)

	first, created := store.Ensure("")
	require.True(t, created)

	again, created := store.Ensure(first.ID)
	assert.False(t, created)
	assert.Same(t, first, again)

	other, created := store.Ensure("not-a-session")
	assert.True(t, created)
	assert.NotEqual(t, first.ID, other.ID)
	assert.Equal(t, 2, store.Len())
}

func TestSessionsAreIsolated(t *testing.T) {
	store, _ := newTestStore(time.Minute)
	a := store.Create()
	b := store.Create()

	a.Do(func(h *history.History) {
		require.NoError(t, h.Add(models.RoleUser, "Knock knock."))
	})

	assert.Equal(t, 2, a.Snapshot().Count)
	assert.Equal(t, 1, b.Snapshot().Count)
}

func TestDoSerializesAccess(t *testing.T) {
	store, _ := newTestStore(time.Minute)
	sess := store.Create()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sess.Do(func(h *history.History) {
				_ = h.Add(models.RoleUser, "hi")
			})
		}()
	}
	wg.Wait()

	assert.Equal(t, 51, sess.Snapshot().Count)
}

func TestFlashIsOneShot(t *testing.T) {
	store, _ := newTestStore(time.Minute)
	sess := store.Create()

	sess.SetFlash("Max tokens reached.")
	assert.Equal(t, "Max tokens reached.", sess.TakeFlash())
	assert.Empty(t, sess.TakeFlash())
}

func TestDelete(t *testing.T) {
	store, _ := newTestStore(time.Minute)
	sess := store.Create()

	assert.True(t, store.Delete(sess.ID))
	assert.False(t, store.Delete(sess.ID))
	_, ok := store.Get(sess.ID)
	assert.False(t, ok)
}

func TestPurgeExpiredKeepsRecentlyUsed(t *testing.T) {
	store, clock := newTestStore(time.Minute)
	idle := store.Create()
	active := store.Create()

	clock.Advance(45 * time.Second)
	_, ok := store.Get(active.ID)
	require.True(t, ok)
	clock.Advance(30 * time.Second)

	assert.Equal(t, 1, store.purgeExpired())
	_, ok = store.Get(idle.ID)
	assert.False(t, ok)
	_, ok = store.Get(active.ID)
	assert.True(t, ok)
}

func TestPurgeExpiredSkipsBusySession(t *testing.T) {
	store, clock := newTestStore(time.Minute)
	sess := store.Create()
	clock.Advance(2 * time.Minute)

	release := make(chan struct{})
	entered := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		sess.Do(func(*history.History) {
			close(entered)
			<-release
		})
	}()
	<-entered

	assert.Zero(t, store.purgeExpired())
	close(release)
	<-done
	assert.Equal(t, 1, store.purgeExpired())
}

func TestRunStopsWithContext(t *testing.T) {
	store, _ := newTestStore(time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		store.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestSnapshotTranscriptHidesSystem(t *testing.T) {
	store, _ := newTestStore(time.Minute)
	sess := store.Create()
	sess.Do(func(h *history.History) {
		require.NoError(t, h.Add(models.RoleUser, "Knock knock."))
		require.NoError(t, h.Add(models.RoleAssistant, "Who's there?"))
		h.MarkProcessed()
		h.RecordError("boom")
	})

	view := sess.Snapshot().Transcript("Candidate Vetter", "note")

	require.Len(t, view.Bubbles, 2)
	assert.Equal(t, "user_1", view.Bubbles[0].Key)
	assert.True(t, view.Bubbles[0].IsUser)
	assert.Equal(t, "assistant_2", view.Bubbles[1].Key)
	assert.False(t, view.Bubbles[1].IsUser)
	assert.Equal(t, []string{"boom"}, view.Errors)
	assert.Equal(t, "note", view.Notice)
	assert.Equal(t, 3, view.Processed)
	assert.False(t, view.Pending)
	assert.Equal(t, sess.ID, view.SessionID)
}

func TestEmptyErrorsRenderAsEmptyList(t *testing.T) {
	store, _ := newTestStore(time.Minute)
	view := store.Create().Snapshot().Transcript("t", "")
	assert.NotNil(t, view.Errors)
	assert.Empty(t, view.Bubbles)
}

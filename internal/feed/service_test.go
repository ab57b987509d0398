package feed

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sujalbistaa/murmur/internal/db"
	"github.com/sujalbistaa/murmur/internal/models"
)

type event struct {
	kind   string
	post   *models.Post
	like   models.LikeState
	parent string
}

type recorder struct {
	mu     sync.Mutex
	events []event
}

func (r *recorder) NewPost(p *models.Post) { r.add(event{kind: "newPost", post: p}) }
func (r *recorder) LikeUpdate(s models.LikeState) {
	r.add(event{kind: "likeUpdate", like: s})
}
func (r *recorder) ReplyUpdate(id string) { r.add(event{kind: "replyUpdate", parent: id}) }

func (r *recorder) add(e event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) all() []event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]event(nil), r.events...)
}

func newTestService(t *testing.T) (*Service, *recorder) {
	t.Helper()
	store, err := db.OpenSQLite(":memory:", false)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close(context.Background()) })
	rec := &recorder{}
	return NewService(store, rec), rec
}

func TestLikeScenario(t *testing.T) {
	svc, rec := newTestService(t)
	ctx := context.Background()

	a, err := svc.Create(ctx, "alice", CreateInput{Content: "hello"})
	require.NoError(t, err)

	feed, err := svc.Feed(ctx)
	require.NoError(t, err)
	require.Len(t, feed, 1)
	assert.Equal(t, a.ID, feed[0].ID)

	st, err := svc.ToggleLike(ctx, a.ID, "bob")
	require.NoError(t, err)
	assert.Equal(t, 1, st.LikeCount)
	assert.True(t, st.IsLiked)

	st, err = svc.ToggleLike(ctx, a.ID, "bob")
	require.NoError(t, err)
	assert.Equal(t, 0, st.LikeCount)
	assert.False(t, st.IsLiked)

	events := rec.all()
	require.Len(t, events, 3)
	assert.Equal(t, "newPost", events[0].kind)
	assert.Equal(t, a.ID, events[0].post.ID)
	assert.Equal(t, models.LikeState{ID: a.ID, LikeCount: 1, IsLiked: true, Author: "bob"}, events[1].like)
	assert.Equal(t, models.LikeState{ID: a.ID, LikeCount: 0, IsLiked: false, Author: "bob"}, events[2].like)
}

func TestRepostScenario(t *testing.T) {
	svc, rec := newTestService(t)
	ctx := context.Background()

	a, err := svc.Create(ctx, "alice", CreateInput{Content: "hello"})
	require.NoError(t, err)
	b, err := svc.Create(ctx, "bob", CreateInput{Kind: models.KindRepost, RepostOfID: a.ID})
	require.NoError(t, err)
	require.NotNil(t, b.Original)

	events := rec.all()
	require.Len(t, events, 2)
	assert.Equal(t, "newPost", events[1].kind)
	require.NotNil(t, events[1].post.Original, "newPost for a repost carries its original")
	assert.Equal(t, "hello", events[1].post.Original.Content)

	feed, err := svc.Feed(ctx)
	require.NoError(t, err)
	require.Len(t, feed, 2)
	assert.Equal(t, b.ID, feed[0].ID)

	view := Render(feed[0], "")
	assert.Empty(t, view.Body)
	require.NotNil(t, view.Embedded)
	assert.Equal(t, "alice", view.Embedded.Author)
	assert.Equal(t, "hello", view.Embedded.Content)

	orig, err := svc.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "hello", orig.Content)
	assert.Zero(t, orig.LikeCount)
}

func TestReplyScenario(t *testing.T) {
	svc, rec := newTestService(t)
	ctx := context.Background()

	a, err := svc.Create(ctx, "alice", CreateInput{Content: "hello"})
	require.NoError(t, err)
	r, err := svc.Create(ctx, "bob", CreateInput{Content: "hi!", Kind: models.KindReply, ReplyToID: a.ID})
	require.NoError(t, err)

	replies, err := svc.Replies(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, replies, 1)
	assert.Equal(t, r.ID, replies[0].ID)

	feed, err := svc.Feed(ctx)
	require.NoError(t, err)
	for _, p := range feed {
		assert.NotEqual(t, r.ID, p.ID)
	}

	events := rec.all()
	require.Len(t, events, 2)
	assert.Equal(t, event{kind: "replyUpdate", parent: a.ID}, events[1])
}

func TestToggleLikeOnMissingPost(t *testing.T) {
	svc, rec := newTestService(t)
	_, err := svc.ToggleLike(context.Background(), "does-not-exist", "bob")
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.Empty(t, rec.all())
}

func TestAnonymousCallersRejected(t *testing.T) {
	svc, rec := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, "", CreateInput{Content: "hello"})
	assert.ErrorIs(t, err, models.ErrUnauthorized)

	a, err := svc.Create(ctx, "alice", CreateInput{Content: "hello"})
	require.NoError(t, err)
	_, err = svc.ToggleLike(ctx, a.ID, "")
	assert.ErrorIs(t, err, models.ErrUnauthorized)
	assert.Len(t, rec.all(), 1)
}

func TestCreateValidation(t *testing.T) {
	svc, rec := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		name string
		in   CreateInput
		want error
	}{
		{"empty post", CreateInput{}, models.ErrValidation},
		{"oversized", CreateInput{Content: strings.Repeat("x", 281)}, models.ErrValidation},
		{"reply without parent", CreateInput{Content: "x", Kind: models.KindReply}, models.ErrValidation},
		{"reply to missing parent", CreateInput{Content: "x", Kind: models.KindReply, ReplyToID: "gone"}, models.ErrNotFound},
		{"repost of missing post", CreateInput{Kind: models.KindRepost, RepostOfID: "gone"}, models.ErrNotFound},
		{"unknown kind", CreateInput{Content: "x", Kind: "story"}, models.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, "alice", tt.in)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	feed, err := svc.Feed(ctx)
	require.NoError(t, err)
	assert.Empty(t, feed)
	assert.Empty(t, rec.all())
}

func TestMediaPostWithoutContent(t *testing.T) {
	svc, _ := newTestService(t)
	p, err := svc.Create(context.Background(), "alice", CreateInput{
		Media: &models.Media{URL: "/uploads/1-cat.png", Kind: models.MediaImage},
	})
	require.NoError(t, err)
	assert.Equal(t, &models.Media{URL: "/uploads/1-cat.png", Kind: models.MediaImage}, p.Media())
}

func TestLikeRepliesAndReposts(t *testing.T) {
	svc, rec := newTestService(t)
	ctx := context.Background()

	a, err := svc.Create(ctx, "alice", CreateInput{Content: "hello"})
	require.NoError(t, err)
	r, err := svc.Create(ctx, "bob", CreateInput{Content: "reply", Kind: models.KindReply, ReplyToID: a.ID})
	require.NoError(t, err)
	b, err := svc.Create(ctx, "carol", CreateInput{Content: "look at this", Kind: models.KindRepost, RepostOfID: a.ID})
	require.NoError(t, err)

	for _, id := range []string{r.ID, b.ID} {
		st, err := svc.ToggleLike(ctx, id, "dave")
		require.NoError(t, err)
		assert.Equal(t, models.LikeState{ID: id, LikeCount: 1, IsLiked: true, Author: "dave"}, st)
	}

	events := rec.all()
	last := events[len(events)-2:]
	assert.Equal(t, r.ID, last[0].like.ID)
	assert.Equal(t, b.ID, last[1].like.ID)

	replies, err := svc.Replies(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"dave"}, replies[0].LikedBy)
}

func TestConcurrentTogglesKeepCountsAndOrder(t *testing.T) {
	svc, rec := newTestService(t)
	ctx := context.Background()
	a, err := svc.Create(ctx, "alice", CreateInput{Content: "hello"})
	require.NoError(t, err)

	const authors = 16
	const rounds = 5 // odd: every author ends up liking
	var wg sync.WaitGroup
	for i := 0; i < authors; i++ {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			for j := 0; j < rounds; j++ {
				_, err := svc.ToggleLike(ctx, a.ID, name)
				assert.NoError(t, err)
			}
		}(fmt.Sprintf("user-%02d", i))
	}
	wg.Wait()

	got, err := svc.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, authors, got.LikeCount)
	assert.Len(t, got.LikedBy, authors)

	// Each announced count is one step from the previous: events left in
	// the order the toggles were applied.
	prev := 0
	n := 0
	for _, e := range rec.all() {
		if e.kind != "likeUpdate" {
			continue
		}
		n++
		diff := e.like.LikeCount - prev
		assert.True(t, diff == 1 || diff == -1, "count jumped from %d to %d", prev, e.like.LikeCount)
		prev = e.like.LikeCount
	}
	assert.Equal(t, authors*rounds, n)
	assert.Equal(t, authors, prev)
}

type failingStore struct{ Store }

func (failingStore) GetByID(context.Context, string) (*models.Post, error) {
	return &models.Post{ID: "a", Kind: models.KindPost}, nil
}
func (failingStore) Create(context.Context, *models.Post) (*models.Post, error) {
	return nil, fmt.Errorf("%w: disk full", models.ErrStorage)
}
func (failingStore) ToggleLike(context.Context, string, string) (models.LikeState, error) {
	return models.LikeState{}, errors.Join(models.ErrStorage, errors.New("connection reset"))
}

func TestStorageFailureIsNotAnnounced(t *testing.T) {
	rec := &recorder{}
	svc := NewService(failingStore{}, rec)

	_, err := svc.Create(context.Background(), "alice", CreateInput{Content: "hello"})
	assert.ErrorIs(t, err, models.ErrStorage)
	_, err = svc.ToggleLike(context.Background(), "a", "bob")
	assert.ErrorIs(t, err, models.ErrStorage)
	assert.Empty(t, rec.all())
}

func TestNotifiersFanOutInOrder(t *testing.T) {
	first, second := &recorder{}, &recorder{}
	n := Notifiers{first, second}
	n.ReplyUpdate("p")
	n.LikeUpdate(models.LikeState{ID: "p", LikeCount: 1, IsLiked: true})
	assert.Equal(t, first.all(), second.all())
	assert.Len(t, first.all(), 2)
}

func TestKeyLockReleasesEntries(t *testing.T) {
	k := newKeyLock()
	unlockA := k.Lock("a")
	unlockB := k.Lock("b")
	assert.Equal(t, 2, k.size())
	unlockA()
	unlockB()
	assert.Zero(t, k.size())
}

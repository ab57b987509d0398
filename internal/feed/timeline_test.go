package feed

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sujalbistaa/murmur/internal/models"
)

func ids(posts []*models.Post) []string {
	out := make([]string, len(posts))
	for i, p := range posts {
		out[i] = p.ID
	}
	return out
}

func TestTimelinePrepend(t *testing.T) {
	tl := NewTimeline([]*models.Post{
		{ID: "b", Kind: models.KindPost},
		{ID: "a", Kind: models.KindPost},
	})

	assert.True(t, tl.Prepend(&models.Post{ID: "c", Kind: models.KindRepost}))
	assert.False(t, tl.Prepend(&models.Post{ID: "c", Kind: models.KindRepost}), "duplicate ids are ignored")
	assert.False(t, tl.Prepend(&models.Post{ID: "a", Kind: models.KindPost}))
	assert.False(t, tl.Prepend(&models.Post{ID: "r", Kind: models.KindReply}), "replies never enter the feed")

	assert.Equal(t, []string{"c", "b", "a"}, ids(tl.Posts()))
	assert.Equal(t, 3, tl.Len())
}

func TestTimelineSkipsRepliesOnLoad(t *testing.T) {
	tl := NewTimeline([]*models.Post{
		{ID: "a", Kind: models.KindPost},
		{ID: "r", Kind: models.KindReply},
	})
	assert.Equal(t, []string{"a"}, ids(tl.Posts()))
}

func TestTimelineApplyLike(t *testing.T) {
	tl := NewTimeline([]*models.Post{{ID: "a", Kind: models.KindPost}})
	tl.SetReplies("a", []*models.Post{{ID: "r1", Kind: models.KindReply}})

	assert.True(t, tl.ApplyLike(models.LikeState{ID: "a", LikeCount: 2}))
	assert.True(t, tl.ApplyLike(models.LikeState{ID: "r1", LikeCount: 1, IsLiked: true}))
	assert.False(t, tl.ApplyLike(models.LikeState{ID: "unknown", LikeCount: 9}))

	assert.Equal(t, 2, tl.Posts()[0].LikeCount)
	replies, ok := tl.Replies("a")
	assert.True(t, ok)
	assert.Equal(t, 1, replies[0].LikeCount)
}

func TestTimelineApplyLikeTracksLikedBy(t *testing.T) {
	p := &models.Post{ID: "a", Kind: models.KindPost, LikeCount: 1, LikedBy: []string{"carol"}}
	tl := NewTimeline([]*models.Post{p})

	tl.ApplyLike(models.LikeState{ID: "a", LikeCount: 2, IsLiked: true, Author: "bob"})
	assert.Equal(t, []string{"carol", "bob"}, p.LikedBy)
	assert.Equal(t, len(p.LikedBy), p.LikeCount)
	assert.True(t, Render(p, "bob").Liked)

	// A repeated event must not add bob twice.
	tl.ApplyLike(models.LikeState{ID: "a", LikeCount: 2, IsLiked: true, Author: "bob"})
	assert.Equal(t, []string{"carol", "bob"}, p.LikedBy)

	tl.ApplyLike(models.LikeState{ID: "a", LikeCount: 1, IsLiked: false, Author: "bob"})
	assert.Equal(t, []string{"carol"}, p.LikedBy)
	assert.Equal(t, len(p.LikedBy), p.LikeCount)
	assert.False(t, Render(p, "bob").Liked)
	assert.True(t, Render(p, "carol").Liked)
}

func TestTimelineReplyPanels(t *testing.T) {
	tl := NewTimeline(nil)
	assert.False(t, tl.RepliesOpen("a"))

	tl.SetReplies("a", nil)
	assert.True(t, tl.RepliesOpen("a"))

	tl.CloseReplies("a")
	assert.False(t, tl.RepliesOpen("a"))
	_, ok := tl.Replies("a")
	assert.False(t, ok)
}

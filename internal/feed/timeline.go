package feed

import (
	"sync"

	"github.com/sujalbistaa/murmur/internal/models"
)

// Timeline is a live viewer's copy of the feed. It is loaded once and then
// kept current from push events, never by refetching the whole feed.
type Timeline struct {
	mu      sync.Mutex
	posts   []*models.Post
	byID    map[string]*models.Post
	replies map[string][]*models.Post // open reply panels by parent id
}

// NewTimeline starts from a fetched feed, newest first.
func NewTimeline(posts []*models.Post) *Timeline {
	t := &Timeline{
		byID:    make(map[string]*models.Post, len(posts)),
		replies: make(map[string][]*models.Post),
	}
	for _, p := range posts {
		if !p.Kind.InFeed() || t.byID[p.ID] != nil {
			continue
		}
		t.posts = append(t.posts, p)
		t.byID[p.ID] = p
	}
	return t
}

// Prepend puts a pushed post on top. Replies and ids already shown are
// ignored; the return value says whether the timeline changed.
func (t *Timeline) Prepend(p *models.Post) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !p.Kind.InFeed() || t.byID[p.ID] != nil {
		return false
	}
	t.posts = append([]*models.Post{p}, t.posts...)
	t.byID[p.ID] = p
	return true
}

// ApplyLike updates a feed post or a reply in an open panel: the count, and
// the acting author's membership in likedBy when the event names one.
func (t *Timeline) ApplyLike(s models.LikeState) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	changed := false
	if p := t.byID[s.ID]; p != nil {
		applyLike(p, s)
		changed = true
	}
	for _, panel := range t.replies {
		for _, r := range panel {
			if r.ID == s.ID {
				applyLike(r, s)
				changed = true
			}
		}
	}
	return changed
}

func applyLike(p *models.Post, s models.LikeState) {
	p.LikeCount = s.LikeCount
	if s.Author == "" {
		return
	}
	liked := make([]string, 0, len(p.LikedBy)+1)
	for _, a := range p.LikedBy {
		if a != s.Author {
			liked = append(liked, a)
		}
	}
	if s.IsLiked {
		liked = append(liked, s.Author)
	}
	p.LikedBy = liked
}

// SetReplies opens (or refreshes) parentID's reply panel.
func (t *Timeline) SetReplies(parentID string, replies []*models.Post) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.replies[parentID] = replies
}

// CloseReplies closes parentID's reply panel.
func (t *Timeline) CloseReplies(parentID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.replies, parentID)
}

// RepliesOpen reports whether a replyUpdate for parentID requires a refetch.
func (t *Timeline) RepliesOpen(parentID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.replies[parentID]
	return ok
}

// Replies returns parentID's open reply panel.
func (t *Timeline) Replies(parentID string) ([]*models.Post, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	r, ok := t.replies[parentID]
	return append([]*models.Post(nil), r...), ok
}

// Posts returns the timeline, newest first.
func (t *Timeline) Posts() []*models.Post {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]*models.Post(nil), t.posts...)
}

func (t *Timeline) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.posts)
}

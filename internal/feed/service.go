package feed

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/sujalbistaa/murmur/internal/metrics"
	"github.com/sujalbistaa/murmur/internal/models"
)

// Store is the persistence the feed needs.
type Store interface {
	Create(ctx context.Context, p *models.Post) (*models.Post, error)
	GetByID(ctx context.Context, id string) (*models.Post, error)
	ListFeed(ctx context.Context) ([]*models.Post, error)
	ListReplies(ctx context.Context, parentID string) ([]*models.Post, error)
	ToggleLike(ctx context.Context, postID, author string) (models.LikeState, error)
}

// Notifier receives state changes after they are persisted. Implementations
// must not block and must not fail the caller.
type Notifier interface {
	NewPost(p *models.Post)
	LikeUpdate(s models.LikeState)
	ReplyUpdate(parentID string)
}

// CreateInput is what a viewer submits; author comes from their identity.
type CreateInput struct {
	Content    string
	Kind       models.Kind
	ReplyToID  string
	RepostOfID string
	Media      *models.Media
}

type Service struct {
	store    Store
	notifier Notifier
	locks    *keyLock
}

func NewService(store Store, notifier Notifier) *Service {
	return &Service{store: store, notifier: notifier, locks: newKeyLock()}
}

// Create persists a post, reply or repost for author and announces it.
// Replies and reposts must reference an existing post at creation time.
func (s *Service) Create(ctx context.Context, author string, in CreateInput) (*models.Post, error) {
	if author == "" {
		return nil, models.ErrUnauthorized
	}

	p := &models.Post{
		Author:  author,
		Content: in.Content,
		Kind:    in.Kind,
	}
	if p.Kind == "" {
		p.Kind = models.KindPost
	}
	if in.ReplyToID != "" {
		p.ReplyToID = &in.ReplyToID
	}
	if in.RepostOfID != "" {
		p.RepostOfID = &in.RepostOfID
	}
	if in.Media != nil {
		p.MediaURL = in.Media.URL
		p.MediaKind = in.Media.Kind
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	var original *models.Post
	switch p.Kind {
	case models.KindReply:
		if _, err := s.store.GetByID(ctx, in.ReplyToID); err != nil {
			return nil, err
		}
	case models.KindRepost:
		var err error
		if original, err = s.store.GetByID(ctx, in.RepostOfID); err != nil {
			return nil, err
		}
	}

	created, err := s.store.Create(ctx, p)
	if err != nil {
		return nil, err
	}
	metrics.PostsCreated.WithLabelValues(string(created.Kind)).Inc()
	slog.Info("Post created", "id", created.ID, "kind", created.Kind, "author", created.Author)

	switch created.Kind {
	case models.KindReply:
		s.notifier.ReplyUpdate(*created.ReplyToID)
	case models.KindRepost:
		created.Original = original
		s.notifier.NewPost(created)
	default:
		s.notifier.NewPost(created)
	}
	return created, nil
}

// ToggleLike flips author's like on postID. The store mutation and the
// announcement share a per-post lock, so viewers see one post's toggles in
// the order they were applied.
func (s *Service) ToggleLike(ctx context.Context, postID, author string) (models.LikeState, error) {
	if author == "" {
		return models.LikeState{}, models.ErrUnauthorized
	}

	unlock := s.locks.Lock(postID)
	defer unlock()

	state, err := s.store.ToggleLike(ctx, postID, author)
	if err != nil {
		return models.LikeState{}, err
	}
	state.Author = author
	metrics.LikeToggles.WithLabelValues(strconv.FormatBool(state.IsLiked)).Inc()
	s.notifier.LikeUpdate(state)
	return state, nil
}

// Feed returns the main timeline: posts and reposts, newest first.
func (s *Service) Feed(ctx context.Context) ([]*models.Post, error) {
	return s.store.ListFeed(ctx)
}

// Replies returns parentID's reply panel, oldest first.
func (s *Service) Replies(ctx context.Context, parentID string) ([]*models.Post, error) {
	return s.store.ListReplies(ctx, parentID)
}

func (s *Service) Get(ctx context.Context, id string) (*models.Post, error) {
	return s.store.GetByID(ctx, id)
}

// Notifiers fans each event out to several sinks in order.
type Notifiers []Notifier

func (n Notifiers) NewPost(p *models.Post) {
	for _, x := range n {
		x.NewPost(p)
	}
}

func (n Notifiers) LikeUpdate(s models.LikeState) {
	for _, x := range n {
		x.LikeUpdate(s)
	}
}

func (n Notifiers) ReplyUpdate(parentID string) {
	for _, x := range n {
		x.ReplyUpdate(parentID)
	}
}

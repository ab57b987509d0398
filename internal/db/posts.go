package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sujalbistaa/murmur/internal/models"
)

// GormStore keeps posts in a SQL database. The likedBy set lives in its own
// table keyed by (post_id, author), so membership is unique by construction.
type GormStore struct {
	db    *gorm.DB
	clock *clock
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db, clock: newClock(time.Microsecond)}
}

func (s *GormStore) Migrate() error {
	return s.db.AutoMigrate(&models.Post{}, &models.Like{})
}

// Create assigns id and timestamps, validates and inserts the post.
func (s *GormStore) Create(ctx context.Context, p *models.Post) (*models.Post, error) {
	rec := newRecord(p, s.clock.Next())
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Omit(clause.Associations).Create(rec).Error; err != nil {
		return nil, storageErr("create post", err)
	}
	return rec, nil
}

func (s *GormStore) GetByID(ctx context.Context, id string) (*models.Post, error) {
	var post models.Post
	err := s.withLikes(s.db.WithContext(ctx)).First(&post, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrNotFound
		}
		return nil, storageErr("get post", err)
	}
	fillLikedBy(&post)
	return &post, nil
}

// ListFeed returns posts and reposts, newest first, with repost originals embedded.
func (s *GormStore) ListFeed(ctx context.Context) ([]*models.Post, error) {
	var posts []*models.Post
	err := s.withLikes(s.db.WithContext(ctx)).
		Where("kind IN ?", []models.Kind{models.KindPost, models.KindRepost}).
		Order("created_at desc").
		Find(&posts).Error
	if err != nil {
		return nil, storageErr("list feed", err)
	}
	for _, p := range posts {
		fillLikedBy(p)
	}
	if err := attachOriginals(posts, func(ids []string) ([]*models.Post, error) {
		return s.getMany(ctx, ids)
	}); err != nil {
		return nil, err
	}
	return posts, nil
}

// ListReplies returns the replies to parentID, oldest first.
func (s *GormStore) ListReplies(ctx context.Context, parentID string) ([]*models.Post, error) {
	var replies []*models.Post
	err := s.withLikes(s.db.WithContext(ctx)).
		Where("reply_to_id = ?", parentID).
		Order("created_at asc").
		Find(&replies).Error
	if err != nil {
		return nil, storageErr("list replies", err)
	}
	for _, p := range replies {
		fillLikedBy(p)
	}
	return replies, nil
}

// ToggleLike flips author's membership in the post's likedBy set and
// recomputes likeCount from the set, all inside one transaction holding the
// post row lock.
func (s *GormStore) ToggleLike(ctx context.Context, postID, author string) (models.LikeState, error) {
	if author == "" {
		return models.LikeState{}, models.ErrUnauthorized
	}
	state := models.LikeState{ID: postID}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var post models.Post
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id").First(&post, "id = ?", postID).Error; err != nil {
			return err
		}

		res := tx.Where("post_id = ? AND author = ?", postID, author).Delete(&models.Like{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			like := models.Like{PostID: postID, Author: author, CreatedAt: s.clock.Next()}
			if err := tx.Create(&like).Error; err != nil {
				return err
			}
			state.IsLiked = true
		}

		var count int64
		if err := tx.Model(&models.Like{}).Where("post_id = ?", postID).Count(&count).Error; err != nil {
			return err
		}
		// UpdateColumn leaves updated_at alone.
		if err := tx.Model(&models.Post{}).Where("id = ?", postID).
			UpdateColumn("like_count", count).Error; err != nil {
			return err
		}
		state.LikeCount = int(count)
		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.LikeState{}, models.ErrNotFound
		}
		return models.LikeState{}, storageErr("toggle like", err)
	}
	return state, nil
}

func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return storageErr("ping", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return storageErr("ping", err)
	}
	return nil
}

func (s *GormStore) Close(context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *GormStore) getMany(ctx context.Context, ids []string) ([]*models.Post, error) {
	var posts []*models.Post
	if err := s.withLikes(s.db.WithContext(ctx)).Where("id IN ?", ids).Find(&posts).Error; err != nil {
		return nil, storageErr("resolve originals", err)
	}
	for _, p := range posts {
		fillLikedBy(p)
	}
	return posts, nil
}

func (s *GormStore) withLikes(tx *gorm.DB) *gorm.DB {
	return tx.Preload("Likes", func(db *gorm.DB) *gorm.DB {
		return db.Order("created_at asc")
	})
}

func fillLikedBy(p *models.Post) {
	p.LikedBy = make([]string, 0, len(p.Likes))
	for _, l := range p.Likes {
		p.LikedBy = append(p.LikedBy, l.Author)
	}
	p.Likes = nil
}

// newRecord copies the caller-supplied fields of p into a fresh record;
// counters, id and timestamps are always server-assigned.
func newRecord(p *models.Post, now time.Time) *models.Post {
	rec := &models.Post{
		ID:         uuid.NewString(),
		Author:     p.Author,
		Content:    p.Content,
		LikedBy:    []string{},
		MediaURL:   p.MediaURL,
		MediaKind:  p.MediaKind,
		Kind:       p.Kind,
		ReplyToID:  nonEmpty(p.ReplyToID),
		RepostOfID: nonEmpty(p.RepostOfID),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if rec.Kind == "" {
		rec.Kind = models.KindPost
	}
	if rec.MediaURL == "" {
		rec.MediaKind = ""
	}
	return rec
}

func nonEmpty(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	v := *s
	return &v
}

// attachOriginals embeds the target of every repost in posts. Targets that
// no longer exist leave Original nil.
func attachOriginals(posts []*models.Post, lookup func(ids []string) ([]*models.Post, error)) error {
	seen := make(map[string]bool)
	var ids []string
	for _, p := range posts {
		if p.RepostOfID == nil || seen[*p.RepostOfID] {
			continue
		}
		seen[*p.RepostOfID] = true
		ids = append(ids, *p.RepostOfID)
	}
	if len(ids) == 0 {
		return nil
	}

	originals, err := lookup(ids)
	if err != nil {
		return err
	}
	byID := make(map[string]*models.Post, len(originals))
	for _, o := range originals {
		byID[o.ID] = o
	}
	for _, p := range posts {
		if p.RepostOfID != nil {
			p.Original = byID[*p.RepostOfID]
		}
	}
	return nil
}

func storageErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", models.ErrStorage, op, err)
}

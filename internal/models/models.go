package models

import (
	"strings"
	"time"
)

// Field limits shared by the store, the HTTP layer and the live viewer.
const (
	MaxAuthorLength  = 50
	MaxContentLength = 280

	// RepostPlaceholder is the content a client may send for a bare repost.
	RepostPlaceholder = "Repost"
)

// Kind is the structural role of a post.
type Kind string

const (
	KindPost   Kind = "post"
	KindReply  Kind = "reply"
	KindRepost Kind = "repost"
)

// InFeed reports whether posts of this kind belong to the main timeline.
func (k Kind) InFeed() bool {
	return k == KindPost || k == KindRepost
}

// MediaKind describes an attached media file.
type MediaKind string

const (
	MediaImage MediaKind = "image"
	MediaVideo MediaKind = "video"
)

// MediaKindFor picks the media kind from an upload's content type.
func MediaKindFor(contentType string) MediaKind {
	if strings.HasPrefix(contentType, "video") {
		return MediaVideo
	}
	return MediaImage
}

// Media is a reference to a file held by the media storage collaborator.
type Media struct {
	URL  string    `json:"url"`
	Kind MediaKind `json:"kind"`
}

// Post is the only entity: a top-level post, a reply or a repost.
type Post struct {
	ID        string    `gorm:"primarykey;size:36" bson:"_id" json:"id"`
	Author    string    `gorm:"size:50;not null;index" bson:"author" json:"author" validate:"required,max=50"`
	Content   string    `gorm:"size:280;not null;default:''" bson:"content" json:"content" validate:"max=280"`
	LikeCount int       `gorm:"not null;default:0" bson:"likeCount" json:"likeCount"`
	LikedBy   []string  `gorm:"-" bson:"likedBy" json:"likedBy"`
	MediaURL  string    `gorm:"size:512" bson:"mediaUrl,omitempty" json:"mediaUrl,omitempty" validate:"max=512"`
	MediaKind MediaKind `gorm:"size:10" bson:"mediaKind,omitempty" json:"mediaKind,omitempty" validate:"required_with=MediaURL,omitempty,oneof=image video"`
	Kind      Kind      `gorm:"size:10;not null;index" bson:"kind" json:"kind" validate:"oneof=post reply repost"`

	// Weak references: the target may be absent without invalidating this post.
	ReplyToID  *string `gorm:"size:36;index" bson:"replyToId,omitempty" json:"replyToId,omitempty" validate:"required_if=Kind reply,excluded_unless=Kind reply"`
	RepostOfID *string `gorm:"size:36;index" bson:"repostOfId,omitempty" json:"repostOfId,omitempty" validate:"required_if=Kind repost,excluded_unless=Kind repost"`

	// Original is the resolved repost target. Never persisted.
	Original *Post `gorm:"-" bson:"-" json:"original,omitempty" validate:"-"`

	Likes     []Like    `gorm:"foreignKey:PostID" bson:"-" json:"-"`
	CreatedAt time.Time `gorm:"index" bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

// Like is one author's membership in a post's likedBy set.
type Like struct {
	PostID    string    `gorm:"primarykey;size:36"`
	Author    string    `gorm:"primarykey;size:50"`
	CreatedAt time.Time
}

// Media returns the attached media reference, if any.
func (p *Post) Media() *Media {
	if p.MediaURL == "" {
		return nil
	}
	return &Media{URL: p.MediaURL, Kind: p.MediaKind}
}

// IsLikedBy reports whether author is in the post's likedBy set.
func (p *Post) IsLikedBy(author string) bool {
	for _, a := range p.LikedBy {
		if a == author {
			return true
		}
	}
	return false
}

// NormalizeAuthor trims a display name the way login and creation expect it.
func NormalizeAuthor(name string) string {
	return strings.TrimPrefix(strings.TrimSpace(name), "@")
}

// ValidateAuthor checks the display name length constraint.
func ValidateAuthor(author string) error {
	if err := validate.Var(author, "required,max=50"); err != nil {
		return validationError(err, "author")
	}
	return nil
}

// Validate checks the author, content and kind-dependent reference invariants.
// A reference holding an empty id counts as absent.
func (p *Post) Validate() error {
	v := *p
	v.ReplyToID, v.RepostOfID = nonEmpty(p.ReplyToID), nonEmpty(p.RepostOfID)
	if err := validate.Struct(&v); err != nil {
		return validationError(err, "")
	}
	// Only a repost may arrive with neither content nor media.
	if p.Content == "" && p.MediaURL == "" && p.Kind != KindRepost {
		return &ValidationError{Field: "content", Msg: "content or media is required"}
	}
	return nil
}

func nonEmpty(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return s
}

// ParentID returns the id this post references, if any.
func (p *Post) ParentID() string {
	switch {
	case p.ReplyToID != nil:
		return *p.ReplyToID
	case p.RepostOfID != nil:
		return *p.RepostOfID
	}
	return ""
}

// LikeState is the outcome of a like toggle. IsLiked is from the point of
// view of Author, the viewer whose toggle produced it.
type LikeState struct {
	ID        string `json:"id"`
	LikeCount int    `json:"likeCount"`
	IsLiked   bool   `json:"isLiked"`
	Author    string `json:"author,omitempty"`
}

package feed

import (
	"unicode/utf8"

	"github.com/sujalbistaa/murmur/internal/models"
)

// Embedded reposts show at most this many characters of the original.
const excerptLength = 100

// Rendered is a post prepared for display.
type Rendered struct {
	ID        string
	Author    string
	Body      string // empty when a repost shows only its original
	Embedded  *Excerpt
	Media     *models.Media
	LikeCount int
	Liked     bool
}

// Excerpt is the embedded original of a repost.
type Excerpt struct {
	Author  string
	Content string
}

// Render applies the display rules for viewer. A repost whose own content
// is empty or the placeholder shows only its original; otherwise its own
// content sits above the original's excerpt.
func Render(p *models.Post, viewer string) Rendered {
	r := Rendered{
		ID:        p.ID,
		Author:    p.Author,
		Body:      p.Content,
		Media:     p.Media(),
		LikeCount: p.LikeCount,
		Liked:     viewer != "" && p.IsLikedBy(viewer),
	}
	if p.Kind != models.KindRepost || p.Original == nil {
		return r
	}
	if p.Content == "" || p.Content == models.RepostPlaceholder {
		r.Body = ""
	}
	r.Embedded = &Excerpt{
		Author:  p.Original.Author,
		Content: Truncate(p.Original.Content, excerptLength),
	}
	return r
}

// Truncate shortens s to n characters, appending "..." when it cut anything.
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}

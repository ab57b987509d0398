package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sujalbistaa/murmur/internal/feed"
	"github.com/sujalbistaa/murmur/internal/models"
	"github.com/sujalbistaa/murmur/internal/ws"
)

const requestTimeout = 10 * time.Second

// --- Structs for request binding ---
type LoginInput struct {
	Author string `json:"author" binding:"required,max=50"`
}

// CreatePostInput binds both JSON bodies and multipart forms. "type" is
// accepted as an alias of "kind".
type CreatePostInput struct {
	Content    string `json:"content" form:"content" binding:"max=280"`
	Kind       string `json:"kind" form:"kind" binding:"omitempty,oneof=post reply repost"`
	Type       string `json:"type" form:"type" binding:"omitempty,oneof=post reply repost"`
	ReplyToID  string `json:"replyToId" form:"replyToId"`
	RepostOfID string `json:"repostOfId" form:"repostOfId"`
}

// Pinger reports datastore liveness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// --- Handlers ---
type Env struct {
	Feed     *feed.Service
	Hub      *ws.Hub
	Sessions *Sessions
	Uploads  *Uploads
	DB       Pinger
}

func (e *Env) Login(c *gin.Context) {
	var input LoginInput
	if err := c.ShouldBindJSON(&input); err != nil {
		bindError(c, err)
		return
	}
	author := models.NormalizeAuthor(input.Author)
	if err := models.ValidateAuthor(author); err != nil {
		writeError(c, err)
		return
	}
	if err := e.Sessions.Set(c, author); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "author": author})
}

func (e *Env) Logout(c *gin.Context) {
	e.Sessions.Clear(c)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (e *Env) CurrentUser(c *gin.Context) {
	var author any
	if a := currentAuthor(c); a != "" {
		author = a
	}
	c.JSON(http.StatusOK, gin.H{"author": author})
}

func (e *Env) GetPosts(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	posts, err := e.Feed.Feed(ctx)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, posts)
}

func (e *Env) GetReplies(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	replies, err := e.Feed.Replies(ctx, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, replies)
}

func (e *Env) GetPost(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	post, err := e.Feed.Get(ctx, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, post)
}

func (e *Env) CreatePost(c *gin.Context) {
	author := currentAuthor(c)
	if author == "" {
		writeError(c, models.ErrUnauthorized)
		return
	}

	multipartBody := strings.HasPrefix(c.ContentType(), "multipart/")
	if multipartBody && e.Uploads != nil {
		// Room for the form fields on top of the file itself.
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, e.Uploads.MaxBytes+1<<20)
	}

	var input CreatePostInput
	if err := c.ShouldBind(&input); err != nil {
		bindError(c, err)
		return
	}
	kind := input.Kind
	if kind == "" {
		kind = input.Type
	}

	var media *models.Media
	if multipartBody && e.Uploads != nil {
		fh, err := c.FormFile("media")
		switch {
		case errors.Is(err, http.ErrMissingFile):
		case err != nil:
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid media: " + err.Error()})
			return
		default:
			if media, err = e.Uploads.Save(c, fh); err != nil {
				writeError(c, err)
				return
			}
		}
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	post, err := e.Feed.Create(ctx, author, feed.CreateInput{
		Content:    strings.TrimSpace(input.Content),
		Kind:       models.Kind(kind),
		ReplyToID:  input.ReplyToID,
		RepostOfID: input.RepostOfID,
		Media:      media,
	})
	if err != nil {
		e.Uploads.Remove(media)
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, post)
}

func (e *Env) ToggleLike(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	state, err := e.Feed.ToggleLike(ctx, c.Param("id"), currentAuthor(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"likeCount": state.LikeCount, "isLiked": state.IsLiked})
}

func (e *Env) Healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := e.DB.Ping(ctx); err != nil {
		slog.Warn("Health check failed", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "viewers": e.Hub.ClientCount()})
}

// bindError reports a request that failed to bind. Binding tag failures
// read like model validation failures.
func bindError(c *gin.Context, err error) {
	var verr *models.ValidationError
	if errors.As(models.ValidationFailure(err), &verr) {
		writeError(c, verr)
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
}

// writeError maps the error taxonomy onto status codes.
func writeError(c *gin.Context, err error) {
	var verr *models.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": verr.Msg, "field": verr.Field})
	case errors.Is(err, models.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Set a display name first."})
	case errors.Is(err, models.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Post not found"})
	default:
		slog.Error("Request failed", "method", c.Request.Method, "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}

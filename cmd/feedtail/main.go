// Command feedtail is a terminal viewer for a running murmur server. It loads
// the feed once, then keeps it current from the push channel.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"

	"github.com/sujalbistaa/murmur/internal/feed"
	"github.com/sujalbistaa/murmur/internal/models"
	"github.com/sujalbistaa/murmur/internal/ws"
)

type viewer struct {
	base   *url.URL
	name   string
	client *http.Client
	tl     *feed.Timeline
}

func main() {
	_ = godotenv.Load()
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	base, err := url.Parse(getEnv("MURMUR_URL", "http://localhost:8080"))
	if err != nil {
		slog.Error("Invalid MURMUR_URL", "error", err)
		os.Exit(1)
	}
	v := &viewer{
		base:   base,
		name:   models.NormalizeAuthor(os.Getenv("MURMUR_VIEWER")),
		client: &http.Client{Timeout: 10 * time.Second},
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := v.load(ctx, splitList(os.Getenv("MURMUR_WATCH_REPLIES"))); err != nil {
		slog.Error("Failed to load feed", "error", err)
		os.Exit(1)
	}
	for _, p := range v.tl.Posts() {
		v.print(p)
	}

	if err := v.tail(ctx); err != nil && ctx.Err() == nil {
		slog.Error("Push channel closed", "error", err)
		os.Exit(1)
	}
}

func (v *viewer) load(ctx context.Context, watch []string) error {
	var posts []*models.Post
	if err := v.getJSON(ctx, "/api/posts", &posts); err != nil {
		return err
	}
	v.tl = feed.NewTimeline(posts)
	for _, id := range watch {
		if err := v.refreshReplies(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

func (v *viewer) tail(ctx context.Context) error {
	wsURL := *v.base
	wsURL.Scheme = strings.Replace(wsURL.Scheme, "http", "ws", 1)
	wsURL.Path = "/ws"

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL.String(), nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", wsURL.String(), err)
	}
	go func() {
		<-ctx.Done()
		conn.Close()
	}()
	slog.Info("Listening for updates", "url", wsURL.String())

	for {
		var msg ws.Message
		if err := conn.ReadJSON(&msg); err != nil {
			return err
		}
		if err := v.apply(ctx, msg); err != nil {
			slog.Warn("Skipping event", "type", msg.Type, "error", err)
		}
	}
}

func (v *viewer) apply(ctx context.Context, msg ws.Message) error {
	switch msg.Type {
	case ws.EventNewPost:
		var p models.Post
		if err := json.Unmarshal(msg.Data, &p); err != nil {
			return err
		}
		if v.tl.Prepend(&p) {
			v.print(&p)
		}
	case ws.EventLikeUpdate:
		var s models.LikeState
		if err := json.Unmarshal(msg.Data, &s); err != nil {
			return err
		}
		if v.tl.ApplyLike(s) {
			fmt.Printf("  ♥ %s now has %d likes\n", s.ID, s.LikeCount)
		}
	case ws.EventReplyUpdate:
		var r ws.ReplyUpdate
		if err := json.Unmarshal(msg.Data, &r); err != nil {
			return err
		}
		if v.tl.RepliesOpen(r.ReplyToID) {
			return v.refreshReplies(ctx, r.ReplyToID)
		}
	}
	return nil
}

func (v *viewer) refreshReplies(ctx context.Context, parentID string) error {
	var replies []*models.Post
	if err := v.getJSON(ctx, "/api/posts/"+url.PathEscape(parentID)+"/replies", &replies); err != nil {
		return err
	}
	v.tl.SetReplies(parentID, replies)
	fmt.Printf("  ↳ %d replies on %s\n", len(replies), parentID)
	return nil
}

func (v *viewer) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.base.JoinPath(path).String(), nil)
	if err != nil {
		return err
	}
	resp, err := v.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: %s", path, resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (v *viewer) print(p *models.Post) {
	r := feed.Render(p, v.name)
	heart := "♡"
	if r.Liked {
		heart = "♥"
	}
	fmt.Printf("@%s  [%s]  %s %d\n", r.Author, r.ID, heart, r.LikeCount)
	if r.Body != "" {
		fmt.Printf("  %s\n", r.Body)
	}
	if r.Embedded != nil {
		fmt.Printf("  | @%s: %s\n", r.Embedded.Author, r.Embedded.Content)
	}
	if r.Media != nil {
		fmt.Printf("  [%s] %s\n", r.Media.Kind, v.base.JoinPath(r.Media.URL))
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

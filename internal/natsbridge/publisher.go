// Package natsbridge mirrors push events onto NATS subjects so other
// processes (bots, archivers) can follow the feed without a WebSocket.
package natsbridge

import (
	"encoding/json"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/sujalbistaa/murmur/internal/models"
	"github.com/sujalbistaa/murmur/internal/ws"
)

// SubjectPrefix prefixes every mirrored subject, e.g. "murmur.likeUpdate".
const SubjectPrefix = "murmur."

// Conn is the part of *nats.Conn the publisher uses.
type Conn interface {
	PublishMsg(m *nats.Msg) error
}

type Publisher struct {
	nc Conn
}

func NewPublisher(nc Conn) *Publisher {
	return &Publisher{nc: nc}
}

// Connect dials url and returns a publisher plus the connection to close.
func Connect(url string) (*Publisher, *nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name("murmur"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("NATS disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			slog.Info("NATS reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, nil, err
	}
	return NewPublisher(nc), nc, nil
}

func (p *Publisher) NewPost(post *models.Post) {
	p.publish(ws.EventNewPost, post.ID, post)
}

func (p *Publisher) LikeUpdate(s models.LikeState) {
	p.publish(ws.EventLikeUpdate, s.ID, s)
}

func (p *Publisher) ReplyUpdate(parentID string) {
	p.publish(ws.EventReplyUpdate, parentID, ws.ReplyUpdate{ReplyToID: parentID})
}

// publish is fire-and-forget; failures are logged and swallowed.
func (p *Publisher) publish(eventType, postID string, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		slog.Error("Error marshalling NATS event", "type", eventType, "error", err)
		return
	}
	msg := &nats.Msg{
		Subject: SubjectPrefix + eventType,
		Data:    payload,
		Header:  nats.Header{},
	}
	msg.Header.Set("Post-Id", postID)

	if err := p.nc.PublishMsg(msg); err != nil {
		slog.Warn("NATS publish failed", "subject", msg.Subject, "post_id", postID, "error", err)
	}
}

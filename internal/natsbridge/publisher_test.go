package natsbridge

import (
	"errors"
	"testing"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sujalbistaa/murmur/internal/models"
)

type fakeConn struct {
	msgs []*nats.Msg
	err  error
}

func (f *fakeConn) PublishMsg(m *nats.Msg) error {
	f.msgs = append(f.msgs, m)
	return f.err
}

func TestPublisherSubjectsAndPayloads(t *testing.T) {
	conn := &fakeConn{}
	p := NewPublisher(conn)

	p.NewPost(&models.Post{ID: "p1", Author: "alice", Content: "hi", Kind: models.KindPost, LikedBy: []string{}})
	p.LikeUpdate(models.LikeState{ID: "p1", LikeCount: 1, IsLiked: true})
	p.ReplyUpdate("p1")

	require.Len(t, conn.msgs, 3)
	assert.Equal(t, "murmur.newPost", conn.msgs[0].Subject)
	assert.Equal(t, "murmur.likeUpdate", conn.msgs[1].Subject)
	assert.JSONEq(t, `{"id":"p1","likeCount":1,"isLiked":true}`, string(conn.msgs[1].Data))
	assert.Equal(t, "murmur.replyUpdate", conn.msgs[2].Subject)
	assert.JSONEq(t, `{"replyToId":"p1"}`, string(conn.msgs[2].Data))
	for _, m := range conn.msgs {
		assert.Equal(t, "p1", m.Header.Get("Post-Id"))
	}
}

func TestPublisherSwallowsErrors(t *testing.T) {
	conn := &fakeConn{err: errors.New("nats: connection closed")}
	p := NewPublisher(conn)
	assert.NotPanics(t, func() { p.ReplyUpdate("p1") })
	assert.Len(t, conn.msgs, 1)
}

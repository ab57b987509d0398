package db

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/sujalbistaa/murmur/internal/models"
)

const postsCollection = "posts"

// MongoStore keeps posts as documents with likedBy as an embedded array.
// Toggles run as a single pipeline update, so the membership check and the
// write happen atomically on the server.
type MongoStore struct {
	client *mongo.Client
	posts  *mongo.Collection
	clock  *clock
}

func OpenMongo(ctx context.Context, uri, database string) (*MongoStore, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, storageErr("connect", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, storageErr("ping", err)
	}

	store := newMongoStore(client, client.Database(database).Collection(postsCollection))
	if err := store.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return store, nil
}

func newMongoStore(client *mongo.Client, posts *mongo.Collection) *MongoStore {
	return &MongoStore{
		client: client,
		posts:  posts,
		clock:  newClock(time.Millisecond), // BSON dates carry milliseconds
	}
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	_, err := s.posts.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "kind", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "replyToId", Value: 1}, {Key: "createdAt", Value: 1}}},
	})
	if err != nil {
		return storageErr("create indexes", err)
	}
	return nil
}

func (s *MongoStore) Create(ctx context.Context, p *models.Post) (*models.Post, error) {
	rec := newRecord(p, s.clock.Next())
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.posts.InsertOne(ctx, rec); err != nil {
		return nil, storageErr("create post", err)
	}
	return rec, nil
}

func (s *MongoStore) GetByID(ctx context.Context, id string) (*models.Post, error) {
	var post models.Post
	if err := s.posts.FindOne(ctx, bson.M{"_id": id}).Decode(&post); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, models.ErrNotFound
		}
		return nil, storageErr("get post", err)
	}
	normalize(&post)
	return &post, nil
}

func (s *MongoStore) ListFeed(ctx context.Context) ([]*models.Post, error) {
	filter := bson.M{"kind": bson.M{"$in": bson.A{models.KindPost, models.KindRepost}}}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	posts, err := s.find(ctx, filter, opts)
	if err != nil {
		return nil, storageErr("list feed", err)
	}
	if err := attachOriginals(posts, func(ids []string) ([]*models.Post, error) {
		originals, err := s.find(ctx, bson.M{"_id": bson.M{"$in": ids}})
		if err != nil {
			return nil, storageErr("resolve originals", err)
		}
		return originals, nil
	}); err != nil {
		return nil, err
	}
	return posts, nil
}

func (s *MongoStore) ListReplies(ctx context.Context, parentID string) ([]*models.Post, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}})
	replies, err := s.find(ctx, bson.M{"replyToId": parentID}, opts)
	if err != nil {
		return nil, storageErr("list replies", err)
	}
	return replies, nil
}

// ToggleLike removes author from likedBy when present and appends it
// otherwise, then sets likeCount to the array size.
func (s *MongoStore) ToggleLike(ctx context.Context, postID, author string) (models.LikeState, error) {
	if author == "" {
		return models.LikeState{}, models.ErrUnauthorized
	}

	pipeline := mongo.Pipeline{
		{{Key: "$set", Value: bson.D{{Key: "likedBy", Value: bson.D{{Key: "$cond", Value: bson.A{
			bson.D{{Key: "$in", Value: bson.A{author, bson.D{{Key: "$ifNull", Value: bson.A{"$likedBy", bson.A{}}}}}}},
			bson.D{{Key: "$filter", Value: bson.D{
				{Key: "input", Value: "$likedBy"},
				{Key: "cond", Value: bson.D{{Key: "$ne", Value: bson.A{"$$this", author}}}},
			}}},
			bson.D{{Key: "$concatArrays", Value: bson.A{
				bson.D{{Key: "$ifNull", Value: bson.A{"$likedBy", bson.A{}}}},
				bson.A{author},
			}}},
		}}}}}}},
		{{Key: "$set", Value: bson.D{{Key: "likeCount", Value: bson.D{{Key: "$size", Value: "$likedBy"}}}}}},
	}
	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.After).
		SetProjection(bson.M{"likeCount": 1, "likedBy": 1})

	var post models.Post
	err := s.posts.FindOneAndUpdate(ctx, bson.M{"_id": postID}, pipeline, opts).Decode(&post)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.LikeState{}, models.ErrNotFound
		}
		return models.LikeState{}, storageErr("toggle like", err)
	}
	return models.LikeState{ID: postID, LikeCount: post.LikeCount, IsLiked: post.IsLikedBy(author)}, nil
}

func (s *MongoStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx, nil); err != nil {
		return storageErr("ping", err)
	}
	return nil
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *MongoStore) find(ctx context.Context, filter any, opts ...*options.FindOptions) ([]*models.Post, error) {
	cursor, err := s.posts.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	// Non-nil so an empty result encodes as [] rather than null.
	posts := []*models.Post{}
	if err := cursor.All(ctx, &posts); err != nil {
		return nil, err
	}
	for _, p := range posts {
		normalize(p)
	}
	return posts, nil
}

func normalize(p *models.Post) {
	if p.LikedBy == nil {
		p.LikedBy = []string{}
	}
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
}

// Package mongo implements store.Store on a MongoDB collection.
package mongo

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/chatwire/wabridge/internal/model"
	"github.com/chatwire/wabridge/internal/store"
)

const (
	chatTsIndexName = "chat_ts"
	ttlIndexName    = "ttl_createdAt"

	maxPoolSize            = 8
	serverSelectionTimeout = 12 * time.Second
)

type mongoStore struct {
	client *mongo.Client
	col    *mongo.Collection
}

// Open connects to MongoDB and returns a Store over the given database
// and collection. The caller owns the returned store's lifecycle.
func Open(ctx context.Context, uri, db, collection string) (store.Store, error) {
	if uri == "" {
		return nil, errors.New("mongo URI is empty")
	}
	opts := options.Client().
		ApplyURI(uri).
		SetMaxPoolSize(maxPoolSize).
		SetServerSelectionTimeout(serverSelectionTimeout)
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return &mongoStore{
		client: client,
		col:    client.Database(db).Collection(collection),
	}, nil
}

// withDocID pins the document id to the identity key so records lacking
// a client-assigned id never try to rewrite _id on upsert.
func withDocID(m *model.Message) *model.Message {
	if m.ID != "" {
		return m
	}
	c := *m
	c.ID = m.Key()
	return &c
}

func (s *mongoStore) UpsertMessage(ctx context.Context, m *model.Message) error {
	doc := withDocID(m)
	_, err := s.col.UpdateOne(ctx,
		bson.M{"_id": doc.ID},
		bson.M{"$set": doc},
		options.Update().SetUpsert(true),
	)
	return err
}

func (s *mongoStore) BulkUpsertMessages(ctx context.Context, msgs []*model.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	models := make([]mongo.WriteModel, 0, len(msgs))
	for _, m := range msgs {
		doc := withDocID(m)
		models = append(models, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"_id": doc.ID}).
			SetUpdate(bson.M{"$set": doc}).
			SetUpsert(true))
	}
	// Unordered: one record's failure must not block the rest.
	_, err := s.col.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false))
	return err
}

func (s *mongoStore) ListMessages(ctx context.Context, chatID string, sinceDays int, limit int) ([]*model.Message, error) {
	filter := bson.M{}
	if chatID != "" {
		filter["chatId"] = chatID
	}
	if sinceDays > 0 {
		cutoff := time.Now().Add(-time.Duration(sinceDays) * 24 * time.Hour).UnixMilli()
		filter["ts"] = bson.M{"$gte": cutoff}
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "ts", Value: -1}}).
		SetLimit(int64(limit))
	cur, err := s.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer func() { _ = cur.Close(ctx) }()

	var out []*model.Message
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *mongoStore) ListChats(ctx context.Context, sinceDays int) ([]*model.ChatSummary, error) {
	pipe := mongo.Pipeline{}
	if sinceDays > 0 {
		cutoff := time.Now().Add(-time.Duration(sinceDays) * 24 * time.Hour).UnixMilli()
		pipe = append(pipe, bson.D{{Key: "$match", Value: bson.M{"ts": bson.M{"$gte": cutoff}}}})
	}
	pipe = append(pipe,
		bson.D{{Key: "$sort", Value: bson.D{{Key: "ts", Value: -1}}}},
		bson.D{{Key: "$group", Value: bson.M{
			"_id":      "$chatId",
			"lastTs":   bson.M{"$first": "$ts"},
			"lastBody": bson.M{"$first": "$body"},
			"chatName": bson.M{"$first": "$chatName"},
			"isGroup":  bson.M{"$first": "$isGroup"},
		}}},
		bson.D{{Key: "$sort", Value: bson.D{{Key: "lastTs", Value: -1}}}},
		bson.D{{Key: "$limit", Value: 500}},
	)

	cur, err := s.col.Aggregate(ctx, pipe)
	if err != nil {
		return nil, err
	}
	defer func() { _ = cur.Close(ctx) }()

	var out []*model.ChatSummary
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// EnsureIndexes creates the compound read-path index and manages the TTL
// index: created when ttlDays > 0, recreated when the expiry changed.
func (s *mongoStore) EnsureIndexes(ctx context.Context, ttlDays int) error {
	idx := s.col.Indexes()

	_, err := idx.CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "chatId", Value: 1}, {Key: "ts", Value: -1}},
		Options: options.Index().SetName(chatTsIndexName),
	})
	if err != nil {
		return err
	}

	if ttlDays <= 0 {
		return nil
	}
	secs := int32(ttlDays * 86400)

	// Drop a TTL index whose expiry no longer matches before recreating.
	cur, err := idx.List(ctx)
	if err == nil {
		var specs []bson.M
		if err := cur.All(ctx, &specs); err == nil {
			for _, spec := range specs {
				name, _ := spec["name"].(string)
				if name != ttlIndexName {
					continue
				}
				if expire, ok := spec["expireAfterSeconds"].(int32); !ok || expire != secs {
					_, _ = idx.DropOne(ctx, ttlIndexName)
				}
			}
		}
	}

	_, err = idx.CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "createdAt", Value: 1}},
		Options: options.Index().SetName(ttlIndexName).SetExpireAfterSeconds(secs),
	})
	return err
}

func (s *mongoStore) HealthPing(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func (s *mongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

package outbox

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type mongoStore struct {
	collection *mongo.Collection
}

// NewMongoStore returns a Store backed by a MongoDB collection.
func NewMongoStore(db *mongo.Database, collection string) Store {
	return &mongoStore{collection: db.Collection(collection)}
}

func (s *mongoStore) Insert(ctx context.Context, msg Message) error {
	if _, err := s.collection.InsertOne(ctx, msg); err != nil {
		return fmt.Errorf("failed to insert outbox message: %w", err)
	}
	return nil
}

func (s *mongoStore) FetchDue(ctx context.Context, now time.Time, limit int) ([]Message, error) {
	filter := bson.M{
		"status":    StatusPending,
		"sendAfter": bson.M{"$lte": now},
		"$or": []bson.M{
			{"nextRetry": bson.M{"$eq": nil}},
			{"nextRetry": bson.M{"$lte": now}},
		},
	}
	opts := options.Find().SetSort(bson.M{"createdAt": 1}).SetLimit(int64(limit))

	cursor, err := s.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch due outbox messages: %w", err)
	}
	var messages []Message
	if err := cursor.All(ctx, &messages); err != nil {
		return nil, fmt.Errorf("failed to decode outbox messages: %w", err)
	}
	return messages, nil
}

func (s *mongoStore) MarkSent(ctx context.Context, id string, at time.Time) error {
	return s.updateOne(ctx,
		bson.M{"_id": id, "status": StatusPending},
		bson.M{
			"$set":   bson.M{"status": StatusSent, "sentAt": at},
			"$unset": bson.M{"nextRetry": "", "errorMessage": ""},
		})
}

func (s *mongoStore) MarkRetry(ctx context.Context, id string, retryCount int, nextRetry time.Time, errMsg string) error {
	return s.updateOne(ctx,
		bson.M{"_id": id, "status": StatusPending},
		bson.M{"$set": bson.M{
			"retryCount":   retryCount,
			"nextRetry":    nextRetry,
			"errorMessage": errMsg,
		}})
}

func (s *mongoStore) MarkFailed(ctx context.Context, id string, retryCount int, errMsg string) error {
	return s.updateOne(ctx,
		bson.M{"_id": id},
		bson.M{
			"$set":   bson.M{"status": StatusFailed, "retryCount": retryCount, "errorMessage": errMsg},
			"$unset": bson.M{"nextRetry": ""},
		})
}

func (s *mongoStore) RequeueFailed(ctx context.Context) (int, error) {
	result, err := s.collection.UpdateMany(ctx,
		bson.M{
			"status": StatusFailed,
			"$expr":  bson.M{"$lt": bson.A{"$retryCount", "$maxRetries"}},
		},
		bson.M{"$unset": bson.M{"nextRetry": "", "errorMessage": ""}, "$set": bson.M{"status": StatusPending}})
	if err != nil {
		return 0, fmt.Errorf("failed to requeue failed outbox messages: %w", err)
	}
	return int(result.ModifiedCount), nil
}

func (s *mongoStore) Stats(ctx context.Context, since time.Time) (Stats, error) {
	pipeline := mongo.Pipeline{
		bson.D{{Key: "$match", Value: bson.M{"createdAt": bson.M{"$gte": since}}}},
		bson.D{{Key: "$group", Value: bson.M{
			"_id":      bson.M{"status": "$status", "type": "$type"},
			"count":    bson.M{"$sum": 1},
			"retrySum": bson.M{"$sum": "$retryCount"},
		}}},
	}

	cursor, err := s.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to aggregate outbox stats: %w", err)
	}

	var rows []struct {
		ID struct {
			Status Status `bson:"status"`
			Type   string `bson:"type"`
		} `bson:"_id"`
		Count    int `bson:"count"`
		RetrySum int `bson:"retrySum"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return Stats{}, fmt.Errorf("failed to decode outbox stats: %w", err)
	}

	stats := Stats{ByType: map[string]int{}}
	retrySum := 0
	for _, row := range rows {
		stats.Total += row.Count
		stats.ByType[row.ID.Type] += row.Count
		retrySum += row.RetrySum
		switch row.ID.Status {
		case StatusPending:
			stats.Pending += row.Count
		case StatusSent:
			stats.Sent += row.Count
		case StatusFailed:
			stats.Failed += row.Count
		}
	}
	if stats.Total > 0 {
		stats.AvgRetryCount = float64(retrySum) / float64(stats.Total)
	}
	return stats, nil
}

func (s *mongoStore) updateOne(ctx context.Context, filter, update bson.M) error {
	result, err := s.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to update outbox message: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrMessageNotFound
	}
	return nil
}

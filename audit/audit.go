// Package audit keeps a trail of moderation actions.
package audit

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const CollectionName = "moderation_events"

type Action string

const (
	ActionItemVisibility     Action = "item.visibility"
	ActionResponseVisibility Action = "response.visibility"
	ActionItemDeleted        Action = "item.deleted"
	ActionResponseDeleted    Action = "response.deleted"
	ActionImageRejected      Action = "image.rejected"
	ActionUserRole           Action = "user.role"
)

// Event is one moderation action as stored in MongoDB
type Event struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Action     Action             `bson:"action" json:"action"`
	ActorID    string             `bson:"actorId" json:"actorId"`
	EntityID   string             `bson:"entityId" json:"entityId"`
	Details    map[string]any     `bson:"details,omitempty" json:"details,omitempty"`
	OccurredAt time.Time          `bson:"occurredAt" json:"occurredAt"`
}

type Recorder interface {
	Record(ctx context.Context, e Event) error
	History(ctx context.Context, entityID string, limit int64) ([]Event, error)
}

// Nop discards events; used when no MongoDB is configured.
type Nop struct{}

func (Nop) Record(context.Context, Event) error { return nil }

func (Nop) History(context.Context, string, int64) ([]Event, error) { return []Event{}, nil }

type MongoRecorder struct {
	collection *mongo.Collection
	now        func() time.Time
}

func NewMongoRecorder(db *mongo.Database) *MongoRecorder {
	return &MongoRecorder{
		collection: db.Collection(CollectionName),
		now:        time.Now,
	}
}

// EnsureIndexes creates the (entityId, occurredAt) index used to read the
// history of one entity.
func (r *MongoRecorder) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	indexModel := mongo.IndexModel{
		Keys: bson.D{{Key: "entityId", Value: 1}, {Key: "occurredAt", Value: -1}},
	}
	if _, err := r.collection.Indexes().CreateOne(ctx, indexModel); err != nil {
		return fmt.Errorf("create audit index: %w", err)
	}
	return nil
}

func (r *MongoRecorder) Record(ctx context.Context, e Event) error {
	if e.OccurredAt.IsZero() {
		e.OccurredAt = r.now().UTC()
	}
	if _, err := r.collection.InsertOne(ctx, e); err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// History returns the latest events recorded for an entity.
func (r *MongoRecorder) History(ctx context.Context, entityID string, limit int64) ([]Event, error) {
	findOptions := options.Find().
		SetSort(bson.D{{Key: "occurredAt", Value: -1}}).
		SetLimit(limit)

	cursor, err := r.collection.Find(ctx, bson.M{"entityId": entityID}, findOptions)
	if err != nil {
		return nil, fmt.Errorf("find audit events: %w", err)
	}
	defer cursor.Close(ctx)

	events := make([]Event, 0)
	if err := cursor.All(ctx, &events); err != nil {
		return nil, fmt.Errorf("decode audit events: %w", err)
	}
	return events, nil
}

package automation

import (
	"context"
	"time"

	"dealerflow/internal/database"
	"dealerflow/internal/features/definition"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type HookRepository interface {
	Create(ctx context.Context, hook *StepHook) error
	FindByID(ctx context.Context, id string) (*StepHook, error)
	FindActive(ctx context.Context, processType definition.ProcessType, event HookEvent) (*StepHook, error)
	List(ctx context.Context) ([]StepHook, error)
	Delete(ctx context.Context, id string) error
}

type HookRepositoryImpl struct {
	Collection *mongo.Collection
}

func NewHookRepository(mongodb *database.MongodbDB) HookRepository {
	return &HookRepositoryImpl{
		Collection: mongodb.DB.Collection("step_hooks"),
	}
}

func (r *HookRepositoryImpl) Create(ctx context.Context, hook *StepHook) error {
	if hook.ID.IsZero() {
		hook.ID = primitive.NewObjectID()
	}
	now := time.Now()
	hook.CreatedAt = now
	hook.UpdatedAt = now
	_, err := r.Collection.InsertOne(ctx, hook)
	return err
}

func (r *HookRepositoryImpl) FindByID(ctx context.Context, id string) (*StepHook, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, nil
	}
	var hook StepHook
	err = r.Collection.FindOne(ctx, bson.M{"_id": oid}).Decode(&hook)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &hook, nil
}

func (r *HookRepositoryImpl) FindActive(ctx context.Context, processType definition.ProcessType, event HookEvent) (*StepHook, error) {
	// Latest active hook wins when several exist for the same type/event.
	opts := options.FindOne().SetSort(bson.M{"created_at": -1})
	var hook StepHook
	err := r.Collection.FindOne(ctx, bson.M{
		"process_type": processType,
		"event":        event,
		"active":       true,
	}, opts).Decode(&hook)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &hook, nil
}

func (r *HookRepositoryImpl) List(ctx context.Context) ([]StepHook, error) {
	opts := options.Find().SetSort(bson.D{{Key: "process_type", Value: 1}, {Key: "created_at", Value: -1}})
	cursor, err := r.Collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)
	var hooks []StepHook
	if err = cursor.All(ctx, &hooks); err != nil {
		return nil, err
	}
	return hooks, nil
}

func (r *HookRepositoryImpl) Delete(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return err
	}
	_, err = r.Collection.DeleteOne(ctx, bson.M{"_id": oid})
	return err
}

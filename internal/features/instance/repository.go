package instance

import (
	"context"
	"errors"
	"time"

	"dealerflow/internal/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrStale is returned by Replace when the stored document's version no
// longer matches the one the caller read. The engine retries on it.
var ErrStale = errors.New("instance was modified concurrently")

type InstanceRepository interface {
	Insert(ctx context.Context, inst *ProcessInstance) error
	FindByID(ctx context.Context, id string) (*ProcessInstance, error)
	ListBySubject(ctx context.Context, subjectID string) ([]ProcessInstance, error)
	ListByStatuses(ctx context.Context, statuses []ProcessStatus) ([]ProcessInstance, error)
	Replace(ctx context.Context, inst *ProcessInstance) error
	EnsureIndexes(ctx context.Context) error
}

type InstanceRepositoryImpl struct {
	Collection *mongo.Collection
}

func NewInstanceRepository(mongodb *database.MongodbDB) InstanceRepository {
	return &InstanceRepositoryImpl{
		Collection: mongodb.DB.Collection("process_instances"),
	}
}

func (r *InstanceRepositoryImpl) Insert(ctx context.Context, inst *ProcessInstance) error {
	if inst.ID.IsZero() {
		inst.ID = primitive.NewObjectID()
	}
	_, err := r.Collection.InsertOne(ctx, inst)
	return err
}

func (r *InstanceRepositoryImpl) FindByID(ctx context.Context, id string) (*ProcessInstance, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, nil
	}
	var inst ProcessInstance
	err = r.Collection.FindOne(ctx, bson.M{"_id": oid}).Decode(&inst)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &inst, nil
}

func (r *InstanceRepositoryImpl) ListBySubject(ctx context.Context, subjectID string) ([]ProcessInstance, error) {
	opts := options.Find().SetSort(bson.M{"created_at": -1})
	cursor, err := r.Collection.Find(ctx, bson.M{"subject_id": subjectID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)
	var out []ProcessInstance
	if err = cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *InstanceRepositoryImpl) ListByStatuses(ctx context.Context, statuses []ProcessStatus) ([]ProcessInstance, error) {
	opts := options.Find().SetSort(bson.M{"created_at": 1})
	cursor, err := r.Collection.Find(ctx, bson.M{"status": bson.M{"$in": statuses}}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)
	var out []ProcessInstance
	if err = cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Replace swaps the stored document for inst, but only if the stored version
// still equals the version inst was read at. On success the version is
// bumped. A miss means another writer got there first: ErrStale.
func (r *InstanceRepositoryImpl) Replace(ctx context.Context, inst *ProcessInstance) error {
	readVersion := inst.Version
	inst.Version = readVersion + 1
	inst.UpdatedAt = time.Now()

	res, err := r.Collection.ReplaceOne(ctx,
		bson.M{"_id": inst.ID, "version": readVersion},
		inst,
	)
	if err != nil {
		inst.Version = readVersion
		return err
	}
	if res.MatchedCount == 0 {
		inst.Version = readVersion
		return ErrStale
	}
	return nil
}

func (r *InstanceRepositoryImpl) EnsureIndexes(ctx context.Context) error {
	_, err := r.Collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "subject_id", Value: 1}}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "priority", Value: 1}}},
	})
	return err
}

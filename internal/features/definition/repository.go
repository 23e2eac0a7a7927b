package definition

import (
	"context"
	"time"

	"dealerflow/internal/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type DefinitionRepository interface {
	Insert(ctx context.Context, def *ProcessDefinition) error
	FindByID(ctx context.Context, id string) (*ProcessDefinition, error)
	FindActiveByName(ctx context.Context, name string) (*ProcessDefinition, error)
	List(ctx context.Context, includeInactive bool) ([]ProcessDefinition, error)
	ListByType(ctx context.Context, processType ProcessType, includeInactive bool) ([]ProcessDefinition, error)
	FindDefault(ctx context.Context, processType ProcessType) (*ProcessDefinition, error)
	ClearDefault(ctx context.Context, processType ProcessType) error
	MarkDefault(ctx context.Context, id string) error
	SetActive(ctx context.Context, id string, active bool) error
	EnsureIndexes(ctx context.Context) error
}

type DefinitionRepositoryImpl struct {
	Collection *mongo.Collection
}

func NewDefinitionRepository(mongodb *database.MongodbDB) DefinitionRepository {
	return &DefinitionRepositoryImpl{
		Collection: mongodb.DB.Collection("process_definitions"),
	}
}

func (r *DefinitionRepositoryImpl) Insert(ctx context.Context, def *ProcessDefinition) error {
	if def.ID.IsZero() {
		def.ID = primitive.NewObjectID()
	}
	_, err := r.Collection.InsertOne(ctx, def)
	return err
}

func (r *DefinitionRepositoryImpl) FindByID(ctx context.Context, id string) (*ProcessDefinition, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, nil
	}
	var def ProcessDefinition
	err = r.Collection.FindOne(ctx, bson.M{"_id": oid}).Decode(&def)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &def, nil
}

func (r *DefinitionRepositoryImpl) FindActiveByName(ctx context.Context, name string) (*ProcessDefinition, error) {
	var def ProcessDefinition
	err := r.Collection.FindOne(ctx, bson.M{"name": name, "active": true}).Decode(&def)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &def, nil
}

func (r *DefinitionRepositoryImpl) List(ctx context.Context, includeInactive bool) ([]ProcessDefinition, error) {
	query := bson.M{}
	if !includeInactive {
		query["active"] = true
	}
	opts := options.Find().SetSort(bson.D{{Key: "process_type", Value: 1}, {Key: "name", Value: 1}})
	cursor, err := r.Collection.Find(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)
	var defs []ProcessDefinition
	if err = cursor.All(ctx, &defs); err != nil {
		return nil, err
	}
	return defs, nil
}

func (r *DefinitionRepositoryImpl) ListByType(ctx context.Context, processType ProcessType, includeInactive bool) ([]ProcessDefinition, error) {
	query := bson.M{"process_type": processType}
	if !includeInactive {
		query["active"] = true
	}
	opts := options.Find().SetSort(bson.M{"name": 1})
	cursor, err := r.Collection.Find(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)
	var defs []ProcessDefinition
	if err = cursor.All(ctx, &defs); err != nil {
		return nil, err
	}
	return defs, nil
}

func (r *DefinitionRepositoryImpl) FindDefault(ctx context.Context, processType ProcessType) (*ProcessDefinition, error) {
	var def ProcessDefinition
	err := r.Collection.FindOne(ctx, bson.M{
		"process_type": processType,
		"is_default":   true,
		"active":       true,
	}).Decode(&def)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &def, nil
}

func (r *DefinitionRepositoryImpl) ClearDefault(ctx context.Context, processType ProcessType) error {
	_, err := r.Collection.UpdateMany(ctx,
		bson.M{"process_type": processType, "is_default": true},
		bson.M{"$set": bson.M{"is_default": false, "updated_at": time.Now()}},
	)
	return err
}

func (r *DefinitionRepositoryImpl) MarkDefault(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return err
	}
	_, err = r.Collection.UpdateOne(ctx,
		bson.M{"_id": oid},
		bson.M{"$set": bson.M{"is_default": true, "updated_at": time.Now()}},
	)
	return err
}

func (r *DefinitionRepositoryImpl) SetActive(ctx context.Context, id string, active bool) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return err
	}
	_, err = r.Collection.UpdateOne(ctx,
		bson.M{"_id": oid},
		bson.M{"$set": bson.M{"active": active, "updated_at": time.Now()}},
	)
	return err
}

func (r *DefinitionRepositoryImpl) EnsureIndexes(ctx context.Context) error {
	_, err := r.Collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "name", Value: 1}}},
		{Keys: bson.D{{Key: "process_type", Value: 1}, {Key: "is_default", Value: 1}}},
	})
	return err
}

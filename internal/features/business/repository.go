package business

import (
	"context"
	"time"

	"go-marketplace/internal/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

type BusinessRepository interface {
	Create(ctx context.Context, biz *Business) error
	Get(ctx context.Context, id string) (*Business, error)
	Update(ctx context.Context, id string, updates map[string]interface{}) error
	SetLastSynced(ctx context.Context, id string, at time.Time) error
	GetLastSyncTimestamp(ctx context.Context, id string) (*time.Time, error)
	MergeDataSources(ctx context.Context, id string, sources map[string]string) error
}

type BusinessRepositoryImpl struct {
	collection *mongo.Collection
}

func NewBusinessRepository(db *database.MongodbDB) BusinessRepository {
	return &BusinessRepositoryImpl{
		collection: db.DB.Collection("businesses"),
	}
}

func (r *BusinessRepositoryImpl) Create(ctx context.Context, biz *Business) error {
	if biz.ID.IsZero() {
		biz.ID = primitive.NewObjectID()
	}
	biz.CreatedAt = time.Now()
	biz.UpdatedAt = time.Now()

	_, err := r.collection.InsertOne(ctx, biz)
	return err
}

func (r *BusinessRepositoryImpl) Get(ctx context.Context, id string) (*Business, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, err
	}

	var biz Business
	err = r.collection.FindOne(ctx, bson.M{"_id": oid}).Decode(&biz)
	if err != nil {
		return nil, err
	}

	return &biz, nil
}

func (r *BusinessRepositoryImpl) Update(ctx context.Context, id string, updates map[string]interface{}) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return err
	}

	updates["updated_at"] = time.Now()
	_, err = r.collection.UpdateOne(
		ctx,
		bson.M{"_id": oid},
		bson.M{"$set": updates},
	)
	return err
}

func (r *BusinessRepositoryImpl) SetLastSynced(ctx context.Context, id string, at time.Time) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return err
	}

	_, err = r.collection.UpdateOne(
		ctx,
		bson.M{"_id": oid},
		bson.M{"$set": bson.M{"listing.last_synced_at": at, "updated_at": time.Now()}},
	)
	return err
}

func (r *BusinessRepositoryImpl) GetLastSyncTimestamp(ctx context.Context, id string) (*time.Time, error) {
	biz, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return biz.Listing.LastSyncedAt, nil
}

func (r *BusinessRepositoryImpl) MergeDataSources(ctx context.Context, id string, sources map[string]string) error {
	if len(sources) == 0 {
		return nil
	}
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return err
	}

	set := bson.M{}
	for field, origin := range sources {
		set["data_sources."+field] = origin
	}

	_, err = r.collection.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": set})
	return err
}

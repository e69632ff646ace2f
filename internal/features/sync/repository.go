package sync

import (
	"context"
	"errors"
	"time"

	"go-marketplace/internal/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type ConfigRepository interface {
	Upsert(ctx context.Context, cfg *SyncConfiguration) error
	GetByBusiness(ctx context.Context, businessID string) (*SyncConfiguration, error)
	ListAutoSync(ctx context.Context) ([]SyncConfiguration, error)
}

type HistoryRepository interface {
	Append(ctx context.Context, record *HistoryRecord) error
	List(ctx context.Context, businessID string, q HistoryQuery) ([]HistoryRecord, error)
	LastSuccessful(ctx context.Context, businessID string) (*HistoryRecord, error)
	EnsureIndexes(ctx context.Context) error
}

// ErrConfigNotFound signals that a business never saved a configuration;
// callers fall back to DefaultConfiguration.
var ErrConfigNotFound = errors.New("sync configuration not found")

type ConfigRepositoryImpl struct {
	collection *mongo.Collection
}

func NewConfigRepository(db *database.MongodbDB) ConfigRepository {
	return &ConfigRepositoryImpl{
		collection: db.DB.Collection("sync_configurations"),
	}
}

func (r *ConfigRepositoryImpl) Upsert(ctx context.Context, cfg *SyncConfiguration) error {
	if cfg.ID.IsZero() {
		cfg.ID = primitive.NewObjectID()
		cfg.CreatedAt = time.Now()
	}
	cfg.UpdatedAt = time.Now()

	opts := options.Replace().SetUpsert(true)
	_, err := r.collection.ReplaceOne(ctx, bson.M{"business_id": cfg.BusinessID}, cfg, opts)
	return err
}

func (r *ConfigRepositoryImpl) GetByBusiness(ctx context.Context, businessID string) (*SyncConfiguration, error) {
	var cfg SyncConfiguration
	err := r.collection.FindOne(ctx, bson.M{"business_id": businessID}).Decode(&cfg)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}
	return &cfg, nil
}

func (r *ConfigRepositoryImpl) ListAutoSync(ctx context.Context) ([]SyncConfiguration, error) {
	cursor, err := r.collection.Find(ctx, bson.M{"auto_sync": true})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var configs []SyncConfiguration
	if err = cursor.All(ctx, &configs); err != nil {
		return nil, err
	}
	return configs, nil
}

type HistoryRepositoryImpl struct {
	collection *mongo.Collection
}

func NewHistoryRepository(db *database.MongodbDB) HistoryRepository {
	return &HistoryRepositoryImpl{
		collection: db.DB.Collection("sync_history"),
	}
}

func (r *HistoryRepositoryImpl) Append(ctx context.Context, record *HistoryRecord) error {
	if record.ID.IsZero() {
		record.ID = primitive.NewObjectID()
	}
	record.CreatedAt = time.Now()

	_, err := r.collection.InsertOne(ctx, record)
	return err
}

func (r *HistoryRepositoryImpl) List(ctx context.Context, businessID string, q HistoryQuery) ([]HistoryRecord, error) {
	filter := bson.M{"business_id": businessID}

	timeFilter := bson.M{}
	if !q.Start.IsZero() {
		timeFilter["$gte"] = q.Start
	}
	if !q.End.IsZero() {
		timeFilter["$lte"] = q.End
	}
	if len(timeFilter) > 0 {
		filter["start_time"] = timeFilter
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "start_time", Value: -1}}).
		SetLimit(limit).
		SetSkip(q.Offset)

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var records []HistoryRecord
	if err = cursor.All(ctx, &records); err != nil {
		return nil, err
	}
	return records, nil
}

func (r *HistoryRepositoryImpl) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "business_id", Value: 1},
				{Key: "start_time", Value: -1},
			},
			Options: options.Index().SetName("idx_business_start_time"),
		},
		{
			Keys: bson.D{
				{Key: "business_id", Value: 1},
				{Key: "status", Value: 1},
				{Key: "end_time", Value: -1},
			},
			Options: options.Index().SetName("idx_business_status_end_time"),
		},
	}

	_, err := r.collection.Indexes().CreateMany(ctx, indexes)
	return err
}

func (r *HistoryRepositoryImpl) LastSuccessful(ctx context.Context, businessID string) (*HistoryRecord, error) {
	filter := bson.M{
		"business_id": businessID,
		"status":      StatusCompleted,
	}
	opts := options.FindOne().SetSort(bson.D{{Key: "end_time", Value: -1}})

	var record HistoryRecord
	err := r.collection.FindOne(ctx, filter, opts).Decode(&record)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

package saga

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	mongooptions "go.mongodb.org/mongo-driver/v2/mongo/options"
)

// MongoStore 基于 MongoDB 的 Saga 存储，每个 Saga 一个文档.
type MongoStore struct {
	coll *mongo.Collection
}

// NewMongoStore 创建 MongoDB 存储.
func NewMongoStore(coll *mongo.Collection) *MongoStore {
	return &MongoStore{coll: coll}
}

// EnsureIndexes 创建 sagaId、orderId 唯一索引以及查询用索引.
func (m *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := m.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "sagaId", Value: 1}}, Options: mongooptions.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "orderId", Value: 1}}, Options: mongooptions.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "updatedAt", Value: 1}}},
		{Keys: bson.D{{Key: "createdAt", Value: -1}}},
	})
	return err
}

// Create 保存新 Saga.
func (m *MongoStore) Create(ctx context.Context, s *Saga) error {
	if _, err := m.coll.InsertOne(ctx, s); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateSaga
		}
		return err
	}
	return nil
}

// Update 覆盖已有 Saga.
func (m *MongoStore) Update(ctx context.Context, s *Saga) error {
	res, err := m.coll.ReplaceOne(ctx, bson.M{"sagaId": s.SagaID}, s)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrSagaNotFound
	}
	return nil
}

// Get 按 sagaId 查询.
func (m *MongoStore) Get(ctx context.Context, sagaID string) (*Saga, error) {
	return m.findOne(ctx, bson.M{"sagaId": sagaID})
}

// GetByOrderID 按 orderId 查询.
func (m *MongoStore) GetByOrderID(ctx context.Context, orderID string) (*Saga, error) {
	return m.findOne(ctx, bson.M{"orderId": orderID})
}

func (m *MongoStore) findOne(ctx context.Context, filter bson.M) (*Saga, error) {
	var s Saga
	if err := m.coll.FindOne(ctx, filter).Decode(&s); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrSagaNotFound
		}
		return nil, err
	}
	return &s, nil
}

// List 分页查询.
func (m *MongoStore) List(ctx context.Context, q ListQuery) ([]*Saga, int64, error) {
	filter := mongoListFilter(q)
	total, err := m.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	cursor, err := m.coll.Find(ctx, filter, mongoFindOptions(q))
	if err != nil {
		return nil, 0, err
	}
	sagas := make([]*Saga, 0)
	if err := cursor.All(ctx, &sagas); err != nil {
		return nil, 0, err
	}
	return sagas, total, nil
}

func mongoListFilter(q ListQuery) bson.M {
	filter := bson.M{}
	if len(q.Statuses) > 0 {
		filter["status"] = bson.M{"$in": q.Statuses}
	}
	if !q.UpdatedBefore.IsZero() {
		filter["updatedAt"] = bson.M{"$lt": q.UpdatedBefore}
	}
	return filter
}

// mongoFindOptions 排序字段不合法时按 createdAt，sagaId 作为次序键保证分页稳定.
func mongoFindOptions(q ListQuery) *mongooptions.FindOptionsBuilder {
	sortBy := q.SortBy
	if !ValidSortField(sortBy) {
		sortBy = SortByCreatedAt
	}
	dir := -1
	if q.Ascending {
		dir = 1
	}
	opts := mongooptions.Find().
		SetSort(bson.D{{Key: sortBy, Value: dir}, {Key: "sagaId", Value: dir}}).
		SetSkip(int64(q.Offset))
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}
	return opts
}

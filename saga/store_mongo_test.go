package saga

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
	mongooptions "go.mongodb.org/mongo-driver/v2/mongo/options"
)

func TestMongoListFilter(t *testing.T) {
	t.Run("无条件", func(t *testing.T) {
		assert.Empty(t, mongoListFilter(ListQuery{}))
	})

	t.Run("状态与更新时间", func(t *testing.T) {
		before := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		filter := mongoListFilter(ListQuery{
			Statuses:      []Status{StatusPaymentProcessing, StatusInventoryReserving},
			UpdatedBefore: before,
		})
		assert.Equal(t, bson.M{"$in": []Status{StatusPaymentProcessing, StatusInventoryReserving}}, filter["status"])
		assert.Equal(t, bson.M{"$lt": before}, filter["updatedAt"])
	})
}

func TestMongoFindOptions(t *testing.T) {
	apply := func(t *testing.T, q ListQuery) *mongooptions.FindOptions {
		t.Helper()
		fo := &mongooptions.FindOptions{}
		for _, set := range mongoFindOptions(q).Opts {
			require.NoError(t, set(fo))
		}
		return fo
	}

	t.Run("非法排序字段回退到 createdAt 倒序", func(t *testing.T) {
		fo := apply(t, ListQuery{SortBy: "password", Offset: 20, Limit: 10})
		assert.Equal(t, bson.D{{Key: SortByCreatedAt, Value: -1}, {Key: "sagaId", Value: -1}}, fo.Sort)
		require.NotNil(t, fo.Skip)
		assert.EqualValues(t, 20, *fo.Skip)
		require.NotNil(t, fo.Limit)
		assert.EqualValues(t, 10, *fo.Limit)
	})

	t.Run("升序且不限制条数", func(t *testing.T) {
		fo := apply(t, ListQuery{SortBy: SortByUpdatedAt, Ascending: true})
		assert.Equal(t, bson.D{{Key: SortByUpdatedAt, Value: 1}, {Key: "sagaId", Value: 1}}, fo.Sort)
		assert.Nil(t, fo.Limit)
	})
}

package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/d60-Lab/pumproom/internal/model"
	"github.com/d60-Lab/pumproom/internal/repository"
	"github.com/d60-Lab/pumproom/internal/testutil"
)

func seedDocs(t *testing.T, db *gorm.DB, distillery string, n int) {
	t.Helper()
	base := time.Now().Add(-time.Hour)
	for i := 0; i < n; i++ {
		d := &model.Document{
			ID:         fmt.Sprintf("doc-%02d", i),
			Distillery: distillery,
			Reservoir:  "es",
			Fields:     []byte(`{}`),
			CreatedAt:  base.Add(time.Duration(i) * time.Second),
		}
		require.NoError(t, db.Create(d).Error)
	}
}

func ids(docs []*model.Document) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.ID
	}
	return out
}

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRecentDocuments_PagesFromIndex(t *testing.T) {
	db := testutil.NewDB(t)
	seedDocs(t, db, "logons", 5)
	mr, client := newRedis(t)
	svc := NewRecentDocuments(repository.NewDocumentRepository(db), client, time.Minute)
	ctx := context.Background()

	p1, err := svc.Page(ctx, "logons", 1, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"doc-04", "doc-03"}, ids(p1))
	assert.True(t, mr.Exists(indexKey("logons")))

	p2, err := svc.Page(ctx, "logons", 2, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"doc-02", "doc-01"}, ids(p2))

	p4, err := svc.Page(ctx, "logons", 4, 2)
	require.NoError(t, err)
	assert.Empty(t, p4)

	assert.Equal(t, int64(1), svc.Counters().IndexLoads)
	assert.Equal(t, int64(0), svc.Counters().PageQueries)
}

func TestRecentDocuments_PushOnlyTouchesLoadedIndex(t *testing.T) {
	db := testutil.NewDB(t)
	mr, client := newRedis(t)
	svc := NewRecentDocuments(repository.NewDocumentRepository(db), client, time.Minute)
	ctx := context.Background()

	require.NoError(t, svc.Push(ctx, "cold", []string{"x"}))
	assert.False(t, mr.Exists(indexKey("cold")))

	seedDocs(t, db, "hot", 2)
	_, err := svc.Page(ctx, "hot", 1, 10)
	require.NoError(t, err)

	require.NoError(t, db.Create(&model.Document{ID: "doc-new", Distillery: "hot", Fields: []byte(`{}`), CreatedAt: time.Now()}).Error)
	require.NoError(t, svc.Push(ctx, "hot", []string{"doc-new"}))

	page, err := svc.Page(ctx, "hot", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"doc-new", "doc-01", "doc-00"}, ids(page))
	assert.Equal(t, int64(1), svc.Counters().IndexLoads)

	require.NoError(t, svc.Invalidate(ctx, "hot"))
	assert.False(t, mr.Exists(indexKey("hot")))
}

func TestRecentDocuments_WithoutRedis(t *testing.T) {
	db := testutil.NewDB(t)
	seedDocs(t, db, "logons", 3)
	svc := NewRecentDocuments(repository.NewDocumentRepository(db), nil, 0)
	ctx := context.Background()

	require.NoError(t, svc.Push(ctx, "logons", []string{"ignored"}))
	page, err := svc.Page(ctx, "logons", 1, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"doc-02", "doc-01"}, ids(page))
	assert.Equal(t, int64(1), svc.Counters().PageQueries)
}

func TestRecentDocuments_RedisDownFallsBack(t *testing.T) {
	db := testutil.NewDB(t)
	seedDocs(t, db, "logons", 1)
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	svc := NewRecentDocuments(repository.NewDocumentRepository(db), client, time.Minute)
	mr.Close()

	page, err := svc.Page(context.Background(), "logons", 1, 5)
	require.NoError(t, err)
	assert.Len(t, page, 1)
}

// Package cache 用 Redis list 缓存每个 distillery 最新的文档 ID，翻页不打主库
package cache

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/d60-Lab/pumproom/internal/model"
	"github.com/d60-Lab/pumproom/internal/repository"
	"github.com/d60-Lab/pumproom/pkg/logger"
)

const defaultMaxLen = 10000

// RecentDocuments 按新到旧分页；Redis 为 nil 时退化为直接查库
type RecentDocuments struct {
	docs   repository.DocumentRepository
	cache  *redis.Client
	ttl    time.Duration
	maxLen int64

	pageQueries atomic.Int64
	indexLoads  atomic.Int64
}

func NewRecentDocuments(docs repository.DocumentRepository, cache *redis.Client, ttl time.Duration) *RecentDocuments {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RecentDocuments{docs: docs, cache: cache, ttl: ttl, maxLen: defaultMaxLen}
}

func indexKey(distillery string) string {
	return fmt.Sprintf("distillery:docs:%s", distillery)
}

// Push 把新写入的 ID 压到表头。只更新已加载的索引，不存在的在下次读取时从库重建
func (s *RecentDocuments) Push(ctx context.Context, distillery string, ids []string) error {
	if s.cache == nil || len(ids) == 0 {
		return nil
	}
	key := indexKey(distillery)
	// LPUSH 逐个压入，最后一个在表头；ids 按写入顺序，最新的在末尾
	pipe := s.cache.Pipeline()
	pipe.LPushX(ctx, key, interfaceSlice(ids)...)
	pipe.LTrim(ctx, key, 0, s.maxLen-1)
	pipe.Expire(ctx, key, s.ttl)
	_, err := pipe.Exec(ctx)
	return err
}

// Total 文档总数，直接查库
func (s *RecentDocuments) Total(ctx context.Context, distillery string) (int64, error) {
	return s.docs.Count(ctx, distillery)
}

// Invalidate 删除缓存索引
func (s *RecentDocuments) Invalidate(ctx context.Context, distillery string) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Del(ctx, indexKey(distillery)).Err()
}

// Page 返回一页文档（page 从 1 开始）
func (s *RecentDocuments) Page(ctx context.Context, distillery string, page, size int) ([]*model.Document, error) {
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}
	start := (page - 1) * size

	if s.cache == nil {
		s.pageQueries.Add(1)
		return s.docs.ListByDistillery(ctx, distillery, start, size)
	}

	key := indexKey(distillery)
	exists, err := s.cache.Exists(ctx, key).Result()
	if err != nil {
		logger.Warn("redis exists failed, fallback to db", zap.String("distillery", distillery), zap.Error(err))
		s.pageQueries.Add(1)
		return s.docs.ListByDistillery(ctx, distillery, start, size)
	}

	var ids []string
	if exists > 0 {
		ids, err = s.cache.LRange(ctx, key, int64(start), int64(start+size-1)).Result()
		if err != nil {
			return nil, err
		}
	} else {
		all, err := s.loadIndex(ctx, distillery)
		if err != nil {
			return nil, err
		}
		if start >= len(all) {
			return []*model.Document{}, nil
		}
		end := start + size
		if end > len(all) {
			end = len(all)
		}
		ids = all[start:end]
	}
	return s.docs.GetByIDs(ctx, ids)
}

func (s *RecentDocuments) loadIndex(ctx context.Context, distillery string) ([]string, error) {
	s.indexLoads.Add(1)
	ids, err := s.docs.ListIDsByDistillery(ctx, distillery)
	if err != nil {
		return nil, err
	}
	if int64(len(ids)) > s.maxLen {
		ids = ids[:s.maxLen]
	}
	if len(ids) > 0 {
		key := indexKey(distillery)
		pipe := s.cache.Pipeline()
		pipe.Del(ctx, key)
		pipe.RPush(ctx, key, interfaceSlice(ids)...)
		pipe.Expire(ctx, key, s.ttl)
		if _, err := pipe.Exec(ctx); err != nil {
			logger.Warn("cache document index failed", zap.String("distillery", distillery), zap.Error(err))
		}
	}
	return ids, nil
}

func interfaceSlice(strs []string) []interface{} {
	result := make([]interface{}, len(strs))
	for i, s := range strs {
		result[i] = s
	}
	return result
}

// Counters 实际查库次数
func (s *RecentDocuments) Counters() DBCounters {
	return DBCounters{PageQueries: s.pageQueries.Load(), IndexLoads: s.indexLoads.Load()}
}

// DBCounters 查库计数
type DBCounters struct {
	PageQueries int64
	IndexLoads  int64
}

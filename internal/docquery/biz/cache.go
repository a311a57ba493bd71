package biz

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"time"

	"github.com/kart-io/logger"
	"github.com/redis/go-redis/v9"

	"github.com/kart-io/docquery/internal/model"
	"github.com/kart-io/docquery/pkg/utils/json"
)

const answerCachePrefix = "docquery:answer:"

// AnswerCache 基于 Redis 的问答结果缓存. 缓存命中可跳过检索和生成,
// 对同一项目、同一问题、同一文档范围的重复查询直接返回.
type AnswerCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewAnswerCache 创建问答缓存. client 为 nil 时缓存退化为空操作.
func NewAnswerCache(client *redis.Client, ttl time.Duration) *AnswerCache {
	return &AnswerCache{client: client, ttl: ttl}
}

// Enabled 缓存是否可用.
func (c *AnswerCache) Enabled() bool {
	return c != nil && c.client != nil
}

// Get 查询缓存, 命中时返回的结果带 Cached 标记.
// 缓存故障只记录日志, 不影响主流程.
func (c *AnswerCache) Get(ctx context.Context, projectID, question string, documentIDs []string) (*model.QueryResult, bool) {
	if !c.Enabled() {
		return nil, false
	}

	key := c.key(projectID, question, documentIDs)
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			logger.Warnw("answer cache get failed", "error", err.Error())
		}
		return nil, false
	}

	var result model.QueryResult
	if err := json.Unmarshal(data, &result); err != nil {
		logger.Warnw("answer cache entry corrupted, dropping", "key", key)
		c.client.Del(ctx, key)
		return nil, false
	}

	result.Cached = true
	return &result, true
}

// Set 写入缓存. 无相关上下文的回答不缓存, 避免文档入库后继续命中空答案.
func (c *AnswerCache) Set(ctx context.Context, projectID, question string, documentIDs []string, result *model.QueryResult) {
	if !c.Enabled() || result == nil || result.NoContext {
		return
	}

	data, err := json.Marshal(result)
	if err != nil {
		logger.Warnw("answer cache marshal failed", "error", err.Error())
		return
	}

	if err := c.client.Set(ctx, c.key(projectID, question, documentIDs), data, c.ttl).Err(); err != nil {
		logger.Warnw("answer cache set failed", "error", err.Error())
	}
}

// InvalidateProject 删除项目下的全部缓存答案, 在文档变更后调用.
func (c *AnswerCache) InvalidateProject(ctx context.Context, projectID string) {
	if !c.Enabled() {
		return
	}

	pattern := answerCachePrefix + projectID + ":*"
	iter := c.client.Scan(ctx, 0, pattern, 256).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		logger.Warnw("answer cache scan failed", "project_id", projectID, "error", err.Error())
		return
	}
	if len(keys) > 0 {
		if err := c.client.Del(ctx, keys...).Err(); err != nil {
			logger.Warnw("answer cache invalidate failed", "project_id", projectID, "error", err.Error())
		}
	}
}

// key 对问题与文档范围做摘要, 范围排序后参与哈希保证顺序无关.
func (c *AnswerCache) key(projectID, question string, documentIDs []string) string {
	scope := make([]string, len(documentIDs))
	copy(scope, documentIDs)
	sort.Strings(scope)

	h := sha256.New()
	h.Write([]byte(question))
	h.Write([]byte{0})
	h.Write([]byte(strings.Join(scope, "\x00")))

	return answerCachePrefix + projectID + ":" + hex.EncodeToString(h.Sum(nil))
}

package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Briefing 一次已发布的简报
type Briefing struct {
	ID             string            `gorm:"primaryKey;size:40" json:"id"`
	BriefingDate   string            `gorm:"size:10;index" json:"briefingDate"` // UTC 日期 YYYY-MM-DD
	FeedUID        string            `gorm:"size:128" json:"feedUid"`
	Title          string            `gorm:"size:256" json:"title"`
	ObjectKey      string            `gorm:"size:512" json:"objectKey"`
	StreamURL      string            `gorm:"size:1024" json:"streamUrl"`
	RedirectionURL string            `gorm:"size:1024" json:"redirectionUrl"`
	Script         string            `gorm:"type:text" json:"script"`
	CivicCount     int               `json:"civicCount"`
	CultureCount   int               `json:"cultureCount"`
	FailedSources  int               `json:"failedSources"`
	SourceStats    datatypes.JSONMap `gorm:"type:jsonb" json:"sourceStats"` // 每个来源的条数或错误信息
	PublishedAt    time.Time         `gorm:"index" json:"publishedAt"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

const (
	latestCacheKey = "briefing:latest"
	// 记录所有写过的列表缓存 key，保存新简报时逐个删除，避免通配符扫描
	cacheIndexKey = "briefing:cache-keys"
	cacheTTL      = 5 * time.Minute

	defaultListLimit = 20
	maxListLimit     = 365
)

// ErrNotFound 还没有任何简报
var ErrNotFound = errors.New("storage: briefing not found")

type Store struct {
	DB    *gorm.DB
	Redis *redis.Client
}

func NewStore(dsn, redisAddr string) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	// REDIS_ADDR 为空时不启用缓存
	var rdb *redis.Client
	if redisAddr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr: redisAddr,
		})

		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Printf("warn: redis ping failed: %v", err)
		}
	}

	return newStore(db, rdb)
}

// newStore 建表后返回 Store；rdb 可为 nil
func newStore(db *gorm.DB, rdb *redis.Client) (*Store, error) {
	if err := db.AutoMigrate(&Briefing{}); err != nil {
		return nil, err
	}
	return &Store{DB: db, Redis: rdb}, nil
}

// toValidUTF8 将字符串规范为合法 UTF-8，避免 PostgreSQL invalid byte sequence 错误（抓取到的标题可能混有非法字节）
func toValidUTF8(s string) string {
	return strings.ToValidUTF8(s, "\uFFFD")
}

// truncateRunesDB 按 rune 数截断字符串，确保不会超过数据库字段长度（例如 varchar(256)）。
func truncateRunesDB(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	rs := []rune(s)
	if len(rs) <= limit {
		return s
	}
	return string(rs[:limit])
}

// normalize 入库前补齐主键与日期并清洗文本
func normalize(b *Briefing) {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	if b.PublishedAt.IsZero() {
		b.PublishedAt = time.Now()
	}
	if b.BriefingDate == "" {
		b.BriefingDate = b.PublishedAt.UTC().Format("2006-01-02")
	}
	b.Title = truncateRunesDB(toValidUTF8(b.Title), 256)
	b.FeedUID = truncateRunesDB(b.FeedUID, 128)
	b.Script = toValidUTF8(b.Script)
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return defaultListLimit
	case limit > maxListLimit:
		return maxListLimit
	}
	return limit
}

// SaveBriefing 写入一条简报记录并清掉读缓存
func (s *Store) SaveBriefing(ctx context.Context, b *Briefing) error {
	normalize(b)
	if err := s.DB.WithContext(ctx).Create(b).Error; err != nil {
		return fmt.Errorf("storage: save briefing: %w", err)
	}
	s.invalidate(ctx)
	return nil
}

// LatestBriefing 返回最近发布的一条简报，结果缓存 5 分钟
func (s *Store) LatestBriefing(ctx context.Context) (*Briefing, error) {
	var cached Briefing
	if s.cacheGet(ctx, latestCacheKey, &cached) {
		return &cached, nil
	}

	// 首次部署时表为空属于正常情况，不打印 record not found
	silent := s.DB.Session(&gorm.Session{Logger: s.DB.Logger.LogMode(logger.Silent)})
	var b Briefing
	err := silent.WithContext(ctx).Order("published_at DESC").First(&b).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	s.cacheSet(ctx, latestCacheKey, &b)
	return &b, nil
}

// ListBriefings 按发布时间倒序返回简报列表，不含口播稿全文，结果缓存 5 分钟
func (s *Store) ListBriefings(ctx context.Context, limit int) ([]Briefing, error) {
	limit = clampLimit(limit)
	cacheKey := fmt.Sprintf("briefing:list:%d", limit)

	var cached []Briefing
	if s.cacheGet(ctx, cacheKey, &cached) {
		return cached, nil
	}

	var list []Briefing
	err := s.DB.WithContext(ctx).
		Omit("script").
		Order("published_at DESC").
		Limit(limit).
		Find(&list).Error
	if err != nil {
		return nil, err
	}

	if len(list) > 0 {
		s.cacheSet(ctx, cacheKey, list)
	}
	return list, nil
}

func (s *Store) cacheGet(ctx context.Context, key string, dst any) bool {
	if s.Redis == nil {
		return false
	}
	bs, err := s.Redis.Get(ctx, key).Bytes()
	if err != nil {
		return false
	}
	return json.Unmarshal(bs, dst) == nil
}

func (s *Store) cacheSet(ctx context.Context, key string, v any) {
	if s.Redis == nil {
		return
	}
	bs, err := json.Marshal(v)
	if err != nil {
		return
	}
	pipe := s.Redis.TxPipeline()
	pipe.Set(ctx, key, bs, cacheTTL)
	pipe.SAdd(ctx, cacheIndexKey, key)
	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("warn: redis cache %s: %v", key, err)
	}
}

func (s *Store) invalidate(ctx context.Context) {
	if s.Redis == nil {
		return
	}
	keys, err := s.Redis.SMembers(ctx, cacheIndexKey).Result()
	if err != nil {
		log.Printf("warn: redis list cache keys: %v", err)
		keys = nil
	}
	keys = append(keys, latestCacheKey, cacheIndexKey)
	if err := s.Redis.Del(ctx, keys...).Err(); err != nil {
		log.Printf("warn: redis invalidate: %v", err)
	}
}

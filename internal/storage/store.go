package storage

import (
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"

	ilog "netstub/internal/logger"
	"netstub/pkg/domain"
)

// RequestRecord 一条已终结请求的落库记录，供事后排查
type RequestRecord struct {
	ID          uint   `gorm:"primaryKey"`
	Session     string `gorm:"index"`
	Handler     string `gorm:"index"`
	Alias       string
	Correlation string `gorm:"uniqueIndex"`
	URL         string
	Method      string
	Outcome     string
	LatencyMS   int64
	CreatedAt   time.Time
}

// Store 诊断存储：基于 sqlite 的请求流水
type Store struct {
	db  *gorm.DB
	log ilog.Logger
}

// Open 打开数据库并迁移表结构
func Open(dsn, prefix string, l ilog.Logger) (*Store, error) {
	if l == nil {
		l = ilog.NewNop()
	}
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		NamingStrategy: schema.NamingStrategy{TablePrefix: prefix},
		Logger:         NewGormLogger(l),
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&RequestRecord{}); err != nil {
		return nil, err
	}
	return &Store{db: db, log: l}, nil
}

// SaveEvent 把请求终结事件写入流水；注册与协议错误事件不落库
func (s *Store) SaveEvent(ev domain.InterceptEvent) error {
	if ev.Type != domain.EventRequestResolved {
		return nil
	}
	rec := RequestRecord{
		Session:     string(ev.Session),
		Handler:     string(ev.Handler),
		Alias:       ev.Alias,
		Correlation: string(ev.Correlation),
		URL:         ev.URL,
		Method:      ev.Method,
		Outcome:     string(ev.Outcome),
		LatencyMS:   ev.LatencyMS,
	}
	return s.db.Create(&rec).Error
}

// Recent 按时间倒序返回最近 n 条流水
func (s *Store) Recent(n int) ([]RequestRecord, error) {
	if n <= 0 {
		n = 50
	}
	var out []RequestRecord
	err := s.db.Order("id desc").Limit(n).Find(&out).Error
	return out, err
}

// BySession 返回指定会话的全部流水
func (s *Store) BySession(id domain.SessionID) ([]RequestRecord, error) {
	var out []RequestRecord
	err := s.db.Where("session = ?", string(id)).Order("id asc").Find(&out).Error
	return out, err
}

// Close 关闭底层连接
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

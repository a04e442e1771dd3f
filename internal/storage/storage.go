package storage

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/LJTian/JuventudHub/internal/processor"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// 字段长度上限，与下面的 gorm tag 保持一致
const (
	maxTitleRunes   = 512
	maxSourceRunes  = 64
	maxCityRunes    = 64
	maxSummaryRunes = 600
	saveBatchSize   = 200
)

// ArticleRow 是 articles 表的一行；Position 记录文件中的顺序，读取时按它还原
type ArticleRow struct {
	ID          string         `gorm:"primaryKey;size:40"`
	URL         string         `gorm:"size:1024;uniqueIndex"`
	Position    int            `gorm:"index"`
	CaptureDate datatypes.Date `gorm:"index"`
	Title       string         `gorm:"size:512"`
	Source      string         `gorm:"size:64;index"`
	City        string         `gorm:"size:64;index"`
	Summary     string         `gorm:"size:600"`

	CreatedAt time.Time
}

func (ArticleRow) TableName() string {
	return "articles"
}

// PGStore 以 PostgreSQL 保存文章集合，语义与 ExcelStore 相同：Save 整体替换
type PGStore struct {
	DB  *gorm.DB
	loc *time.Location
}

func NewPGStore(dsn string, loc *time.Location) (*PGStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, err
	}
	return NewPGStoreWithDB(db, loc)
}

// NewPGStoreWithDB 使用已打开的连接并自动迁移表结构
func NewPGStoreWithDB(db *gorm.DB, loc *time.Location) (*PGStore, error) {
	if err := db.AutoMigrate(&ArticleRow{}); err != nil {
		return nil, err
	}
	if loc == nil {
		loc = time.Local
	}
	return &PGStore{DB: db, loc: loc}, nil
}

func (s *PGStore) Load(ctx context.Context) ([]processor.Article, error) {
	var rows []ArticleRow
	if err := s.DB.WithContext(ctx).Order("position ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("%w: query articles: %v", ErrCorrupt, err)
	}
	out := make([]processor.Article, 0, len(rows))
	for _, r := range rows {
		out = append(out, fromRow(r, s.loc))
	}
	return out, nil
}

// Save 在一个事务内整体替换；事务失败时旧数据保持不变
func (s *PGStore) Save(ctx context.Context, articles []processor.Article) error {
	rows := make([]ArticleRow, 0, len(articles))
	for i, a := range articles {
		rows = append(rows, toRow(a, i))
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&ArticleRow{}).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.CreateInBatches(rows, saveBatchSize).Error
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersist, err)
	}
	return nil
}

func toRow(a processor.Article, pos int) ArticleRow {
	return ArticleRow{
		ID:          hashURL(a.URL),
		URL:         a.URL,
		Position:    pos,
		CaptureDate: datatypes.Date(a.Date),
		// 上游已做清洗，这里再做一次长度与编码保护，避免入库失败
		Title:   truncateRunesDB(toValidUTF8(a.Title), maxTitleRunes),
		Source:  truncateRunesDB(toValidUTF8(a.Source), maxSourceRunes),
		City:    truncateRunesDB(toValidUTF8(a.City), maxCityRunes),
		Summary: truncateRunesDB(toValidUTF8(a.Summary), maxSummaryRunes),
	}
}

func fromRow(r ArticleRow, loc *time.Location) processor.Article {
	city := r.City
	if city == "" {
		city = processor.CityUnidentified
	}
	var date time.Time
	if t := time.Time(r.CaptureDate); !t.IsZero() {
		date = dateIn(t, loc)
	}
	return processor.Article{
		Date:    date,
		Title:   r.Title,
		Source:  r.Source,
		City:    city,
		URL:     r.URL,
		Summary: r.Summary,
	}
}

// hashURL 以 URL 的 sha1 作为主键
func hashURL(u string) string {
	sum := sha1.Sum([]byte(u))
	return hex.EncodeToString(sum[:])
}

// toValidUTF8 将字符串规范为合法 UTF-8，避免 PostgreSQL invalid byte sequence 错误
func toValidUTF8(s string) string {
	return strings.ToValidUTF8(s, "\uFFFD")
}

// truncateRunesDB 按 rune 数截断字符串，确保不会超过数据库字段长度
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

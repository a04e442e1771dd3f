package storage

import (
	"context"
	"errors"

	"github.com/LJTian/JuventudHub/internal/processor"
)

var (
	// ErrCorrupt 已有数据存在但无法读取；调用方按空库继续，但需要与“文件不存在”区分
	ErrCorrupt = errors.New("stored articles unreadable")
	// ErrPersist 新结果无法保存，本轮采集失败
	ErrPersist = errors.New("persist articles failed")
)

// Repository 整体读写文章集合：Load 在数据不存在时返回空集合而不是错误，
// Save 为全量覆盖，失败时不得破坏之前的数据
type Repository interface {
	Load(ctx context.Context) ([]processor.Article, error)
	Save(ctx context.Context, articles []processor.Article) error
}

package collector

import (
	"context"
	"errors"
)

// 单个源、单个容器级别的错误，均可恢复：源失败跳过该源，容器失败跳过该容器
var (
	ErrFetch     = errors.New("fetch failed")
	ErrNoLink    = errors.New("container has no link")
	ErrBadLink   = errors.New("link cannot be resolved")
	ErrMalformed = errors.New("malformed container")
)

// Candidate 抽取阶段得到的原始条目，尚未做相关性过滤与清洗
type Candidate struct {
	Source  string
	Title   string
	URL     string
	Summary string
	// HomeCity 源的默认城市：城市识别结果为 unidentified 时用它替代
	HomeCity string
}

// Fetcher 抽象页面抓取：超时、非 2xx、网络错误都归为 ErrFetch
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

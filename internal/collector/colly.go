package collector

import (
	"context"
	"fmt"
	"time"

	"github.com/gocolly/colly/v2"
)

const (
	defaultFetchTimeout = 15 * time.Second
	maxBodyBytes        = 8 << 20 // 8MB，防止超大 HTML
)

// CollyFetcher 基于 colly 的页面抓取：固定 UA 与语言头，单次请求超时
type CollyFetcher struct {
	UserAgent      string
	Accept         string
	AcceptLanguage string
	Timeout        time.Duration
}

func (f *CollyFetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrFetch, rawURL, err)
	}

	opts := []colly.CollectorOption{
		colly.MaxBodySize(maxBodyBytes),
		colly.StdlibContext(ctx),
	}
	if f.UserAgent != "" {
		opts = append(opts, colly.UserAgent(f.UserAgent))
	}
	c := colly.NewCollector(opts...)

	timeout := f.Timeout
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	c.SetRequestTimeout(timeout)

	c.OnRequest(func(r *colly.Request) {
		if f.Accept != "" {
			r.Headers.Set("Accept", f.Accept)
		}
		if f.AcceptLanguage != "" {
			r.Headers.Set("Accept-Language", f.AcceptLanguage)
		}
	})

	var body []byte
	c.OnResponse(func(r *colly.Response) {
		body = r.Body
	})

	// colly 对非 2xx 状态码同样返回错误
	if err := c.Visit(rawURL); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrFetch, rawURL, err)
	}
	return body, nil
}

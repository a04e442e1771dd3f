package processor

import (
	"errors"
	"time"

	"github.com/LJTian/JuventudHub/internal/collector"
)

// titleFallbackChars 标题为空、用摘要兜底时的最大长度
const titleFallbackChars = 120

// ErrIrrelevant 标题和摘要都没有命中关键词
var ErrIrrelevant = errors.New("no youth term in title or summary")

// Article 是写入存储层的统一结构，一经创建不再修改
type Article struct {
	// Date 采集日期（不是新闻发布日期），只保留到天
	Date    time.Time `json:"date"`
	Title   string    `json:"title"`
	Source  string    `json:"source"`
	City    string    `json:"city"`
	URL     string    `json:"url"`
	Summary string    `json:"summary"`
	// DateText 旧文件中无法识别的日期原文，保存时原样写回
	DateText string `json:"date_text,omitempty"`
}

// Processor 做相关性过滤、文本清洗与城市识别
type Processor struct {
	filter     *Filter
	cities     *CityClassifier
	maxSummary int
}

func NewProcessor(filter *Filter, cities *CityClassifier) *Processor {
	return &Processor{
		filter:     filter,
		cities:     cities,
		maxSummary: DefaultSummaryChars,
	}
}

// NewDefaultProcessor 使用内置关键词与城市表
func NewDefaultProcessor() *Processor {
	return NewProcessor(NewFilter(DefaultTerms), NewCityClassifier(DefaultCities))
}

func (p *Processor) Filter() *Filter {
	return p.filter
}

// Process 将候选条目转换为 Article；不相关时返回 ErrIrrelevant。
// 相关性分别在原始标题、原始摘要上判断，不做拼接。
func (p *Processor) Process(c collector.Candidate, capturedAt time.Time) (Article, error) {
	if !p.filter.IsRelevant(c.Title) && !p.filter.IsRelevant(c.Summary) {
		return Article{}, ErrIrrelevant
	}

	summary := ""
	if c.Summary != "" {
		summary = Summarize(c.Summary, p.maxSummary)
	}

	title := Normalize(c.Title)
	if title == "" {
		// 标题缺失时用摘要兜底，保证入库记录标题非空
		title = Summarize(c.Summary, titleFallbackChars)
	}

	city := p.cities.Classify(c.Title + " " + c.Summary)
	if city == CityUnidentified && c.HomeCity != "" {
		city = c.HomeCity
	}

	return Article{
		Date:    CaptureDate(capturedAt),
		Title:   title,
		Source:  c.Source,
		City:    city,
		URL:     c.URL,
		Summary: summary,
	}, nil
}

// CaptureDate 截断到所在时区的 0 点
func CaptureDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

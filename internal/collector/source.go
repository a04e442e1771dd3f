package collector

import (
	"bytes"
	"fmt"
	"iter"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// DefaultMaxContainers 每个源最多检查的容器数
const DefaultMaxContainers = 50

const defaultSummarySelector = "p"

// Source 描述一个新闻源的抽取规则，各源只在选择器、基准地址和默认城市上有差异
type Source struct {
	Name    string `yaml:"name"`
	URL     string `yaml:"url"`
	BaseURL string `yaml:"base_url"`
	// Containers 依次尝试，第一个有结果的选择器生效
	Containers []string `yaml:"containers"`
	// Titles 容器内的标题选择器链，全部未命中时使用链接文字
	Titles []string `yaml:"titles"`
	// AnchorTitles 容器本身就是 <a> 时使用的标题链，为空时沿用 Titles
	AnchorTitles  []string `yaml:"anchor_titles"`
	Summary       string   `yaml:"summary"`
	HomeCity      string   `yaml:"home_city"`
	MaxContainers int      `yaml:"max_containers"`
}

// Extraction 单个容器的抽取结果：Err 非空表示该容器被跳过及原因
type Extraction struct {
	Index     int
	Candidate Candidate
	Err       error
}

// ParseDocument 解析原始 HTML，容错处理畸形标记
func ParseDocument(body []byte) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return doc, nil
}

// Extract 返回惰性、有限、可重复遍历的抽取序列；同一文档多次遍历结果与顺序一致
func (s *Source) Extract(doc *goquery.Document) iter.Seq[Extraction] {
	return func(yield func(Extraction) bool) {
		base, err := url.Parse(s.BaseURL)
		if err != nil || !base.IsAbs() {
			base = nil
		}

		containers := s.containers(doc.Selection)
		if containers == nil {
			return
		}
		n := containers.Length()
		if limit := s.maxContainers(); n > limit {
			n = limit
		}
		for i := 0; i < n; i++ {
			if !yield(s.extractOne(i, containers.Eq(i), base)) {
				return
			}
		}
	}
}

func (s *Source) maxContainers() int {
	if s.MaxContainers <= 0 {
		return DefaultMaxContainers
	}
	return s.MaxContainers
}

func (s *Source) containers(root *goquery.Selection) *goquery.Selection {
	for _, sel := range s.Containers {
		if found := root.Find(sel); found.Length() > 0 {
			return found
		}
	}
	return nil
}

// extractOne 处理单个容器，任何 panic 都转成 ErrMalformed，不影响其它容器
func (s *Source) extractOne(i int, box *goquery.Selection, base *url.URL) (ext Extraction) {
	defer func() {
		if r := recover(); r != nil {
			ext = Extraction{Index: i, Err: fmt.Errorf("%w: %v", ErrMalformed, r)}
		}
	}()

	// 容器本身就是链接时（如 Infobae 的卡片），直接用容器
	link := box
	if !box.Is("a[href]") {
		link = box.Find("a[href]").First()
	}
	if link.Length() == 0 {
		return Extraction{Index: i, Err: ErrNoLink}
	}

	href, _ := link.Attr("href")
	abs, err := resolveLink(base, strings.TrimSpace(href))
	if err != nil {
		return Extraction{Index: i, Err: err}
	}

	summarySel := s.Summary
	if summarySel == "" {
		summarySel = defaultSummarySelector
	}

	return Extraction{
		Index: i,
		Candidate: Candidate{
			Source:   s.Name,
			Title:    s.title(box, link),
			URL:      abs,
			Summary:  strings.TrimSpace(box.Find(summarySel).First().Text()),
			HomeCity: s.HomeCity,
		},
	}
}

// title 按选择器链查找标题元素；元素存在但文字为空时也接受（相关性由标题或摘要决定）
func (s *Source) title(box, link *goquery.Selection) string {
	chain := s.Titles
	if link == box && len(s.AnchorTitles) > 0 {
		chain = s.AnchorTitles
	}
	for _, sel := range chain {
		if t := box.Find(sel).First(); t.Length() > 0 {
			return strings.TrimSpace(t.Text())
		}
	}
	if link != box {
		return strings.TrimSpace(link.Text())
	}
	return ""
}

// resolveLink 以 http 开头的链接原样返回，其余按源的基准地址解析
func resolveLink(base *url.URL, href string) (string, error) {
	if href == "" || strings.HasPrefix(href, "#") {
		return "", fmt.Errorf("%w: %q", ErrBadLink, href)
	}
	if strings.HasPrefix(href, "http") {
		return href, nil
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %v", ErrBadLink, href, err)
	}
	if ref.IsAbs() {
		// mailto:、javascript: 之类
		return "", fmt.Errorf("%w: unsupported scheme %q", ErrBadLink, ref.Scheme)
	}
	if base == nil {
		return "", fmt.Errorf("%w: no base url for %q", ErrBadLink, href)
	}
	return base.ResolveReference(ref).String(), nil
}

// classContains 生成 "tag[class*='p']" 形式的选择器组，相当于按 class 子串匹配
func classContains(tags []string, patterns ...string) string {
	parts := make([]string, 0, len(tags)*len(patterns))
	for _, tag := range tags {
		for _, p := range patterns {
			parts = append(parts, fmt.Sprintf("%s[class*='%s']", tag, p))
		}
	}
	return strings.Join(parts, ", ")
}

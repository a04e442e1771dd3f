package api

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/LJTian/JuventudHub/internal/processor"
	"github.com/gin-gonic/gin"
)

const (
	defaultLimit = 200
	maxLimit     = 1000
	dateLayout   = "2006-01-02"
)

var ErrBadQuery = errors.New("invalid query")

// Query 看板筛选条件；零值表示不筛选
type Query struct {
	From    time.Time
	To      time.Time
	Cities  []string
	Sources []string
	// Term 单个关键词，在标题或摘要中匹配
	Term string
	// Q 标题中的自由文本
	Q     string
	Limit int
}

func parseQuery(c *gin.Context, loc *time.Location) (Query, error) {
	q := Query{
		Cities:  splitList(c.Query("city")),
		Sources: splitList(c.Query("source")),
		Term:    strings.TrimSpace(c.Query("term")),
		Q:       strings.TrimSpace(c.Query("q")),
		Limit:   defaultLimit,
	}

	var err error
	if q.From, err = parseDay(c.Query("from"), loc); err != nil {
		return Query{}, fmt.Errorf("%w: from: %v", ErrBadQuery, err)
	}
	if q.To, err = parseDay(c.Query("to"), loc); err != nil {
		return Query{}, fmt.Errorf("%w: to: %v", ErrBadQuery, err)
	}
	if !q.From.IsZero() && !q.To.IsZero() && q.To.Before(q.From) {
		return Query{}, fmt.Errorf("%w: to is before from", ErrBadQuery)
	}

	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return Query{}, fmt.Errorf("%w: limit must be a positive integer", ErrBadQuery)
		}
		if n > maxLimit {
			n = maxLimit
		}
		q.Limit = n
	}
	return q, nil
}

func parseDay(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	return time.ParseInLocation(dateLayout, s, loc)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Apply 返回全部匹配的文章（不截断），保持输入顺序
func (q Query) Apply(articles []processor.Article) []processor.Article {
	var term, text *processor.Filter
	if q.Term != "" {
		term = processor.NewFilter([]string{q.Term})
	}
	if q.Q != "" {
		text = processor.NewFilter([]string{q.Q})
	}
	out := make([]processor.Article, 0, len(articles))
	for _, a := range articles {
		if q.match(a, term, text) {
			out = append(out, a)
		}
	}
	return out
}

// match 按日期区间（含两端）、城市、来源、关键词与标题文本筛选
func (q Query) match(a processor.Article, term, text *processor.Filter) bool {
	if !q.From.IsZero() && dayKey(a.Date) < dayKey(q.From) {
		return false
	}
	if !q.To.IsZero() && dayKey(a.Date) > dayKey(q.To) {
		return false
	}
	if len(q.Cities) > 0 && !contains(q.Cities, a.City) {
		return false
	}
	if len(q.Sources) > 0 && !contains(q.Sources, a.Source) {
		return false
	}
	if term != nil && !term.IsRelevant(a.Title) && !term.IsRelevant(a.Summary) {
		return false
	}
	if text != nil && !text.IsRelevant(a.Title) {
		return false
	}
	return true
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if strings.EqualFold(s, v) {
			return true
		}
	}
	return false
}

// dayKey 只比较日历日，忽略时区偏移带来的差异
func dayKey(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dateLayout)
}

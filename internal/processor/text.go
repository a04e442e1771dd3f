package processor

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

const (
	// DefaultSummaryChars 摘要默认最大字符数（按 rune 计）
	DefaultSummaryChars = 250
	// Ellipsis 摘要被截断时追加的标记
	Ellipsis = "..."
)

// DefaultTerms 青少年/儿童相关的关键词，标题或摘要命中任意一个即视为相关
var DefaultTerms = []string{
	"juventud",
	"jóvenes",
	"jovenes",
	"adolescentes",
	"adolescencia",
	"menor de edad",
	"menores de edad",
	"pandillas",
	"idipron",
	"plataformas juveniles",
	"primera infancia",
	"niños",
	"niñas",
	"infancia",
	"juvenil",
	"juveniles",
	"estudiantes",
	"colegios",
	"escolar",
}

// Filter 判断文本相关性并生成规范化摘要
type Filter struct {
	terms []string
	// folded 与 terms 一一对应，预先做过 NFC + 小写
	folded []string
}

func NewFilter(terms []string) *Filter {
	f := &Filter{
		terms:  make([]string, 0, len(terms)),
		folded: make([]string, 0, len(terms)),
	}
	for _, t := range terms {
		ft := fold(t)
		if strings.TrimSpace(ft) == "" {
			continue
		}
		f.terms = append(f.terms, t)
		f.folded = append(f.folded, ft)
	}
	return f
}

// Terms 返回配置的关键词（声明顺序）
func (f *Filter) Terms() []string {
	out := make([]string, len(f.terms))
	copy(out, f.terms)
	return out
}

// IsRelevant 文本中包含任一关键词（大小写不敏感的子串匹配，不要求整词）
func (f *Filter) IsRelevant(text string) bool {
	if text == "" {
		return false
	}
	lower := fold(text)
	for _, t := range f.folded {
		if strings.Contains(lower, t) {
			return true
		}
	}
	return false
}

// MatchedTerms 返回文本命中的全部关键词，按声明顺序
func (f *Filter) MatchedTerms(text string) []string {
	if text == "" {
		return nil
	}
	lower := fold(text)
	var out []string
	for i, t := range f.folded {
		if strings.Contains(lower, t) {
			out = append(out, f.terms[i])
		}
	}
	return out
}

// Normalize 将连续空白（含换行、制表符、不间断空格）压缩成单个空格并去掉首尾空白
func Normalize(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// Summarize 规范化后按 rune 截断到 maxChars，回退到最后一个空格并追加省略号。
// maxChars <= 0 时使用 DefaultSummaryChars。
func Summarize(text string, maxChars int) string {
	if maxChars <= 0 {
		maxChars = DefaultSummaryChars
	}
	text = Normalize(text)
	rs := []rune(text)
	if len(rs) <= maxChars {
		return text
	}
	cut := string(rs[:maxChars])
	if i := strings.LastIndex(cut, " "); i >= 0 {
		cut = cut[:i]
	}
	return cut + Ellipsis
}

// fold 统一做 NFC 规范化再转小写，避免组合字符形式的 "ñ"、"á" 匹配不上
func fold(s string) string {
	return strings.ToLower(norm.NFC.String(s))
}

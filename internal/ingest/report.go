package ingest

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/LJTian/JuventudHub/internal/processor"
	"github.com/jedib0t/go-pretty/v6/table"
)

// Phase 一次运行经过的阶段，按顺序依次进入，不会跳过
type Phase string

const (
	PhaseLoading    Phase = "loading"
	PhaseExtracting Phase = "extracting"
	PhaseFiltering  Phase = "filtering"
	PhaseMerging    Phase = "merging"
	PhasePersisting Phase = "persisting"
	PhaseDone       Phase = "done"
)

// SourceReport 单个源本轮的统计；Err 非空表示抓取或解析失败，该源被跳过
type SourceReport struct {
	Name     string `json:"name"`
	Found    int    `json:"found"`
	Relevant int    `json:"relevant"`
	Added    int    `json:"added"`
	Skipped  int    `json:"skipped"`
	Err      string `json:"error,omitempty"`
}

type CityCount struct {
	City  string `json:"city"`
	Count int    `json:"count"`
}

// Report 一次运行的结果
type Report struct {
	Total   int            `json:"total"`
	Added   int            `json:"added"`
	ByCity  []CityCount    `json:"byCity"`
	Sources []SourceReport `json:"sources"`
	// LoadErr 已有数据不可读、本轮按空库处理时的原因；文件不存在时为空
	LoadErr    string    `json:"loadError,omitempty"`
	PersistErr string    `json:"persistError,omitempty"`
	Phases     []Phase   `json:"phases"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
}

// CountByCity 按数量降序、同数量按城市名升序
func CountByCity(articles []processor.Article) []CityCount {
	counts := make(map[string]int)
	for _, a := range articles {
		counts[a.City]++
	}
	out := make([]CityCount, 0, len(counts))
	for city, n := range counts {
		out = append(out, CityCount{City: city, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].City < out[j].City
	})
	return out
}

// Render 以表格形式输出，供命令行使用
func (r *Report) Render(w io.Writer) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.SetTitle("Sources")
	t.AppendHeader(table.Row{"Source", "Found", "Relevant", "Added", "Skipped", "Error"})
	for _, s := range r.Sources {
		t.AppendRow(table.Row{s.Name, s.Found, s.Relevant, s.Added, s.Skipped, s.Err})
	}
	t.AppendFooter(table.Row{"Total", "", "", r.Added, "", ""})
	t.Render()

	c := table.NewWriter()
	c.SetOutputMirror(w)
	c.SetStyle(table.StyleLight)
	c.SetTitle("Cities")
	c.AppendHeader(table.Row{"City", "Articles"})
	for _, cc := range r.ByCity {
		c.AppendRow(table.Row{cc.City, cc.Count})
	}
	c.AppendFooter(table.Row{"Total", r.Total})
	c.Render()

	if r.LoadErr != "" {
		fmt.Fprintf(w, "warning: existing store unreadable, started from empty: %s\n", r.LoadErr)
	}
	if r.PersistErr != "" {
		fmt.Fprintf(w, "error: %s\n", r.PersistErr)
	}
	fmt.Fprintf(w, "added %d, total %d, took %s\n", r.Added, r.Total, r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond))
}

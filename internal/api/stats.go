package api

import (
	"sort"
	"time"

	"github.com/LJTian/JuventudHub/internal/processor"
)

const topTermsN = 10

type Count struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

type Stats struct {
	Total    int     `json:"total"`
	Sources  int     `json:"sources"`
	Cities   int     `json:"cities"`
	Today    int     `json:"today"`
	Last7    int     `json:"last7Days"`
	BySource []Count `json:"bySource"`
	ByCity   []Count `json:"byCity"`
	// ByDay 按日期升序，便于画折线
	ByDay    []Count `json:"byDay"`
	TopTerms []Count `json:"topTerms"`
}

type Filters struct {
	Cities  []string `json:"cities"`
	Sources []string `json:"sources"`
	Terms   []string `json:"terms"`
	MinDate string   `json:"minDate,omitempty"`
	MaxDate string   `json:"maxDate,omitempty"`
}

func computeStats(articles []processor.Article, filter *processor.Filter, now time.Time) Stats {
	today := dayKey(now)
	weekStart := dayKey(now.AddDate(0, 0, -6))

	bySource := map[string]int{}
	byCity := map[string]int{}
	byDay := map[string]int{}
	byTerm := map[string]int{}

	st := Stats{Total: len(articles)}
	for _, a := range articles {
		bySource[a.Source]++
		byCity[a.City]++
		d := dayKey(a.Date)
		if d != "" {
			byDay[d]++
		}
		if d == today {
			st.Today++
		}
		if d != "" && d >= weekStart && d <= today {
			st.Last7++
		}
		// 一篇文章对同一关键词只计一次
		seen := map[string]struct{}{}
		for _, t := range append(filter.MatchedTerms(a.Title), filter.MatchedTerms(a.Summary)...) {
			if _, ok := seen[t]; ok {
				continue
			}
			seen[t] = struct{}{}
			byTerm[t]++
		}
	}

	st.Sources = len(bySource)
	st.Cities = len(byCity)
	st.BySource = sortedCounts(bySource)
	st.ByCity = sortedCounts(byCity)
	st.TopTerms = sortedCounts(byTerm)
	if len(st.TopTerms) > topTermsN {
		st.TopTerms = st.TopTerms[:topTermsN]
	}

	st.ByDay = make([]Count, 0, len(byDay))
	for d, n := range byDay {
		st.ByDay = append(st.ByDay, Count{Key: d, Count: n})
	}
	sort.Slice(st.ByDay, func(i, j int) bool { return st.ByDay[i].Key < st.ByDay[j].Key })
	return st
}

// sortedCounts 按数量降序，同数量按键升序
func sortedCounts(m map[string]int) []Count {
	out := make([]Count, 0, len(m))
	for k, n := range m {
		out = append(out, Count{Key: k, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Key < out[j].Key
	})
	return out
}

func computeFilters(articles []processor.Article, filter *processor.Filter) Filters {
	cities := map[string]struct{}{}
	sources := map[string]struct{}{}
	f := Filters{Terms: filter.Terms()}
	for _, a := range articles {
		cities[a.City] = struct{}{}
		sources[a.Source] = struct{}{}
		d := dayKey(a.Date)
		if d == "" {
			continue
		}
		if f.MinDate == "" || d < f.MinDate {
			f.MinDate = d
		}
		if d > f.MaxDate {
			f.MaxDate = d
		}
	}
	f.Cities = sortedKeys(cities)
	f.Sources = sortedKeys(sources)
	return f
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

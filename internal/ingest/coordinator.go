// Package ingest 编排一次完整的采集：读取已有数据、逐源抽取、过滤分类、按 URL 去重合并、整体保存
package ingest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/LJTian/JuventudHub/internal/collector"
	"github.com/LJTian/JuventudHub/internal/logger"
	"github.com/LJTian/JuventudHub/internal/metrics"
	"github.com/LJTian/JuventudHub/internal/processor"
	"github.com/LJTian/JuventudHub/internal/storage"
)

// Options 运行参数；零值可用：串行、无间隔、本地时间
type Options struct {
	// Delay 每个源处理完后的等待时间，礼貌性限速
	Delay time.Duration
	// Concurrency 同时抓取的源数量上限
	Concurrency int
	Now         func() time.Time
	Metrics     *metrics.Metrics
}

// Coordinator 持有唯一的已知 URL 集合；各源只产出候选条目，不接触去重状态
type Coordinator struct {
	sources     []collector.Source
	fetcher     collector.Fetcher
	proc        *processor.Processor
	repo        storage.Repository
	log         logger.Logger
	metrics     *metrics.Metrics
	delay       time.Duration
	concurrency int
	now         func() time.Time
}

func New(sources []collector.Source, f collector.Fetcher, p *processor.Processor, repo storage.Repository, log logger.Logger, opts Options) *Coordinator {
	if log == nil {
		log = logger.NewNop()
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Coordinator{
		sources:     sources,
		fetcher:     f,
		proc:        p,
		repo:        repo,
		log:         log,
		metrics:     opts.Metrics,
		delay:       opts.Delay,
		concurrency: opts.Concurrency,
		now:         opts.Now,
	}
}

// sourceResult 单个源的抽取结果，按声明顺序放在对应槽位
type sourceResult struct {
	candidates []collector.Candidate
	skipped    int
	err        error
}

// Run 执行一轮采集。单个源或单个条目的失败不会中断本轮；
// 只有保存失败会返回错误（ErrPersist），此时报告仍然返回。
func (c *Coordinator) Run(ctx context.Context) (*Report, error) {
	r := &Report{StartedAt: c.now()}

	c.enter(r, PhaseLoading)
	existing, err := c.repo.Load(ctx)
	if err != nil {
		// 不可读的旧数据按空库处理，但与“文件不存在”区分上报
		r.LoadErr = err.Error()
		existing = nil
		c.log.Warn("existing store unreadable, starting from empty set", logger.Err(err))
	} else {
		c.log.Info("existing store loaded", logger.Int("articles", len(existing)))
	}

	c.enter(r, PhaseExtracting)
	results := c.extractAll(ctx)

	c.enter(r, PhaseFiltering)
	capturedAt := c.now()
	admitted := make([][]processor.Article, len(c.sources))
	r.Sources = make([]SourceReport, len(c.sources))
	for i := range c.sources {
		src := &c.sources[i]
		res := results[i]
		sr := &r.Sources[i]
		sr.Name = src.Name
		sr.Found = len(res.candidates) + res.skipped
		sr.Skipped = res.skipped
		if res.err != nil {
			sr.Err = res.err.Error()
			continue
		}
		for _, cand := range res.candidates {
			art, err := c.proc.Process(cand, capturedAt)
			if err != nil {
				c.metrics.ObserveCandidate(src.Name, metrics.OutcomeIrrelevant)
				c.log.Debug("candidate discarded",
					logger.String("source", src.Name),
					logger.String("url", cand.URL),
					logger.String("reason", err.Error()))
				continue
			}
			sr.Relevant++
			admitted[i] = append(admitted[i], art)
		}
	}

	c.enter(r, PhaseMerging)
	known := make(map[string]struct{}, len(existing))
	for _, a := range existing {
		known[a.URL] = struct{}{}
	}
	var fresh []processor.Article
	for i := range c.sources {
		name := c.sources[i].Name
		for _, art := range admitted[i] {
			if _, dup := known[art.URL]; dup {
				c.metrics.ObserveCandidate(name, metrics.OutcomeDuplicate)
				continue
			}
			known[art.URL] = struct{}{}
			fresh = append(fresh, art)
			r.Sources[i].Added++
			c.metrics.ObserveCandidate(name, metrics.OutcomeAdded)
		}
	}
	final := Merge(existing, fresh)
	r.Added = len(fresh)
	r.Total = len(final)
	r.ByCity = CountByCity(final)

	c.enter(r, PhasePersisting)
	persistErr := c.repo.Save(ctx, final)
	if persistErr != nil {
		if !errors.Is(persistErr, storage.ErrPersist) {
			persistErr = fmt.Errorf("%w: %v", storage.ErrPersist, persistErr)
		}
		r.PersistErr = persistErr.Error()
		c.log.Error("persist articles failed", logger.Err(persistErr))
	}

	c.enter(r, PhaseDone)
	r.FinishedAt = c.now()
	c.metrics.ObserveRun(r.FinishedAt.Sub(r.StartedAt), r.Added, r.Total, r.FinishedAt, persistErr)
	c.log.Info("collect run finished",
		logger.Int("added", r.Added),
		logger.Int("total", r.Total),
		logger.Duration("took", r.FinishedAt.Sub(r.StartedAt)))
	return r, persistErr
}

// Merge 已有记录在前、新记录在后拼接；同一 URL 只保留第一次出现的记录，再按日期倒序稳定排序
func Merge(existing, fresh []processor.Article) []processor.Article {
	seen := make(map[string]struct{}, len(existing)+len(fresh))
	out := make([]processor.Article, 0, len(existing)+len(fresh))
	for _, list := range [][]processor.Article{existing, fresh} {
		for _, a := range list {
			if _, ok := seen[a.URL]; ok {
				continue
			}
			seen[a.URL] = struct{}{}
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date.After(out[j].Date)
	})
	return out
}

func (c *Coordinator) enter(r *Report, p Phase) {
	r.Phases = append(r.Phases, p)
	c.log.Debug("phase", logger.String("phase", string(p)))
}

// extractAll 并发抓取，并发度由信号量限制；结果写入按源顺序排列的槽位
func (c *Coordinator) extractAll(ctx context.Context) []sourceResult {
	results := make([]sourceResult, len(c.sources))
	sem := make(chan struct{}, c.concurrency)
	var wg sync.WaitGroup

	for i := range c.sources {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()

			results[i] = c.extractSource(ctx, &c.sources[i])
			if i < len(c.sources)-1 {
				c.pause(ctx)
			}
		}(i)
	}
	wg.Wait()
	return results
}

func (c *Coordinator) extractSource(ctx context.Context, src *collector.Source) (res sourceResult) {
	log := c.log.With(logger.String("source", src.Name))
	defer func() {
		if p := recover(); p != nil {
			res = sourceResult{err: fmt.Errorf("%w: %v", collector.ErrMalformed, p)}
			log.Error("source extraction panicked", logger.Err(res.err))
		}
	}()

	start := time.Now()
	body, err := c.fetcher.Fetch(ctx, src.URL)
	c.metrics.ObserveFetch(src.Name, time.Since(start), err)
	if err != nil {
		log.Warn("source fetch failed, skipped this run", logger.Err(err))
		return sourceResult{err: err}
	}

	doc, err := collector.ParseDocument(body)
	if err != nil {
		log.Warn("source document unparsable", logger.Err(err))
		return sourceResult{err: err}
	}

	for ex := range src.Extract(doc) {
		if ex.Err != nil {
			res.skipped++
			c.metrics.ObserveCandidate(src.Name, metrics.OutcomeSkipped)
			log.Debug("container skipped", logger.Int("index", ex.Index), logger.String("reason", ex.Err.Error()))
			continue
		}
		res.candidates = append(res.candidates, ex.Candidate)
	}
	log.Info("source extracted",
		logger.Int("candidates", len(res.candidates)),
		logger.Int("skipped", res.skipped))
	return res
}

// pause 源之间的礼貌等待，ctx 结束时立即返回
func (c *Coordinator) pause(ctx context.Context) {
	if c.delay <= 0 {
		return
	}
	t := time.NewTimer(c.delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/LJTian/JuventudHub/internal/ingest"
	"github.com/LJTian/JuventudHub/internal/logger"
	"github.com/robfig/cron/v3"
)

// DefaultStartupDelay 服务启动后延迟执行首轮采集，避免与首次打开看板的请求争抢资源
const DefaultStartupDelay = 15 * time.Second

// Runner 执行一轮采集，由 ingest.Coordinator 实现
type Runner interface {
	Run(ctx context.Context) (*ingest.Report, error)
}

type Scheduler struct {
	cron   *cron.Cron
	runner Runner
	log    logger.Logger
	// StartupDelay 为 0 时不做首轮延迟执行，只按 cron 表达式触发
	StartupDelay time.Duration

	mu      sync.Mutex
	running sync.Mutex
	last    *ingest.Report
	lastErr error
	timer   *time.Timer
	stopped bool
	// inflight 跟踪由定时器与 cron 触发的采集
	inflight sync.WaitGroup

	ctx    context.Context
	cancel context.CancelFunc
}

func New(spec string, runner Runner, log logger.Logger) (*Scheduler, error) {
	if log == nil {
		log = logger.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		runner:       runner,
		log:          log,
		StartupDelay: DefaultStartupDelay,
		ctx:          ctx,
		cancel:       cancel,
	}

	// 上一轮未结束时跳过本次触发
	cl := cronLogger{log: log}
	s.cron = cron.New(cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)), cron.WithLogger(cl))

	if _, err := s.cron.AddFunc(spec, s.runOnce); err != nil {
		cancel()
		return nil, fmt.Errorf("invalid cron spec %q: %w", spec, err)
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	if s.StartupDelay > 0 {
		s.mu.Lock()
		s.timer = time.AfterFunc(s.StartupDelay, s.runOnce)
		s.mu.Unlock()
	}
}

// Stop 停止调度并等待正在执行的采集结束
func (s *Scheduler) Stop(ctx context.Context) {
	s.mu.Lock()
	s.stopped = true
	if s.timer != nil {
		s.timer.Stop()
	}
	s.mu.Unlock()

	cronDone := s.cron.Stop().Done()
	done := make(chan struct{})
	go func() {
		<-cronDone
		s.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		// 超时后取消正在进行的抓取
		s.cancel()
		<-done
	}
	s.cancel()
}

// RunOnce 对外暴露的单次执行入口，方便手动触发采集
func (s *Scheduler) RunOnce(ctx context.Context) (*ingest.Report, error) {
	s.running.Lock()
	defer s.running.Unlock()

	s.log.Info("start collect job")
	report, err := s.runner.Run(ctx)

	s.mu.Lock()
	s.last, s.lastErr = report, err
	s.mu.Unlock()

	if err != nil {
		s.log.Error("collect job failed", logger.Err(err))
	} else {
		s.log.Info("collect job done", logger.Int("added", report.Added), logger.Int("total", report.Total))
	}
	return report, err
}

// LastReport 返回最近一轮的报告；尚未运行过时返回 nil
func (s *Scheduler) LastReport() (*ingest.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last, s.lastErr
}

func (s *Scheduler) runOnce() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.inflight.Add(1)
	s.mu.Unlock()
	defer s.inflight.Done()

	_, _ = s.RunOnce(s.ctx)
}

// cronLogger 把 cron 内部日志转到 zap
type cronLogger struct {
	log logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug("cron: "+msg, kvFields(keysAndValues)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error("cron: "+msg, append(kvFields(keysAndValues), logger.Err(err))...)
}

func kvFields(kv []interface{}) []logger.Field {
	fields := make([]logger.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			key = fmt.Sprint(kv[i])
		}
		fields = append(fields, logger.Any(key, kv[i+1]))
	}
	return fields
}

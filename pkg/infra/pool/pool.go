// Package pool 基于 ants 封装业务 worker 池.
package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kart-io/logger"
	"github.com/panjf2000/ants/v2"
)

// Type defines the type of worker pool.
type Type string

const (
	// DefaultPool 默认通用池
	DefaultPool Type = "default"
	// IngestPool 文档入库专用池
	IngestPool Type = "ingest"
	// TablePool 表格单元格生成专用池
	TablePool Type = "table"
	// EvalPool 离线评估专用池
	EvalPool Type = "eval"
)

var (
	// ErrPoolClosed 池已关闭.
	ErrPoolClosed = errors.New("pool: closed")
	// ErrPoolOverload 池已满且配置为非阻塞.
	ErrPoolOverload = errors.New("pool: overloaded")
)

// Config defines the configuration for the worker pool.
type Config struct {
	// Capacity 池容量 (最大并发 goroutine 数)
	Capacity int
	// ExpiryDuration goroutine 空闲过期时间
	ExpiryDuration time.Duration
	// PreAlloc 是否预分配内存
	PreAlloc bool
	// Nonblocking 提交任务是否非阻塞 (池满则返回错误)
	Nonblocking bool
	// MaxBlockingTasks 当 Nonblocking=false 时最大等待任务数 (0 表示无限制)
	MaxBlockingTasks int
	// PanicHandler 恐慌处理函数
	PanicHandler func(any)
}

// DefaultPoolConfig 返回默认池配置.
func DefaultPoolConfig() *Config {
	return &Config{
		Capacity:       100,
		ExpiryDuration: 10 * time.Second,
	}
}

// IngestPoolConfig 返回入库池配置.
func IngestPoolConfig(workers int) *Config {
	return &Config{
		Capacity:         workers,
		ExpiryDuration:   30 * time.Second,
		MaxBlockingTasks: 0, // 批量入库允许排队
	}
}

// TablePoolConfig 返回表格生成池配置.
func TablePoolConfig(workers int) *Config {
	return &Config{
		Capacity:         workers,
		ExpiryDuration:   10 * time.Second,
		MaxBlockingTasks: 0,
	}
}

// Stats contains statistics about the worker pool.
type Stats struct {
	SubmittedTasks int64 `json:"submitted_tasks"`
	CompletedTasks int64 `json:"completed_tasks"`
	RejectedTasks  int64 `json:"rejected_tasks"`
	PanicRecovered int64 `json:"panic_recovered"`
	Running        int   `json:"running"`
	Capacity       int   `json:"capacity"`
}

// Pool represents a worker pool.
type Pool struct {
	name   string
	typ    Type
	pool   *ants.Pool
	config *Config

	submitted atomic.Int64
	completed atomic.Int64
	rejected  atomic.Int64
	panics    atomic.Int64

	closed   atomic.Bool
	closedMu sync.Mutex
}

// NewPool creates a new worker pool with the given configuration.
func NewPool(name string, typ Type, config *Config) (*Pool, error) {
	if config == nil {
		config = DefaultPoolConfig()
	}

	p := &Pool{
		name:   name,
		typ:    typ,
		config: config,
	}

	opts := []ants.Option{
		ants.WithExpiryDuration(config.ExpiryDuration),
		ants.WithPreAlloc(config.PreAlloc),
		ants.WithNonblocking(config.Nonblocking),
		ants.WithMaxBlockingTasks(config.MaxBlockingTasks),
	}
	if config.PanicHandler != nil {
		opts = append(opts, ants.WithPanicHandler(config.PanicHandler))
	} else {
		opts = append(opts, ants.WithPanicHandler(func(r any) {
			logger.Errorw("Worker panic recovered", "pool", name, "panic", r)
		}))
	}

	antsPool, err := ants.NewPool(config.Capacity, opts...)
	if err != nil {
		return nil, fmt.Errorf("创建 ants 池失败: %w", err)
	}
	p.pool = antsPool

	logger.Infow("Worker pool created",
		"name", name,
		"type", string(typ),
		"capacity", config.Capacity,
	)
	return p, nil
}

// Name 返回池名称.
func (p *Pool) Name() string { return p.name }

// Type 返回池类型.
func (p *Pool) Type() Type { return p.typ }

// Cap 返回池容量.
func (p *Pool) Cap() int { return p.pool.Cap() }

// Running 返回正在运行的 goroutine 数量.
func (p *Pool) Running() int { return p.pool.Running() }

// Free 返回可用 goroutine 数量.
func (p *Pool) Free() int { return p.pool.Free() }

// Submit 提交任务到池中执行.
func (p *Pool) Submit(task func()) error {
	if p.closed.Load() {
		return ErrPoolClosed
	}

	err := p.pool.Submit(func() {
		p.submitted.Add(1)
		defer func() {
			if r := recover(); r != nil {
				p.panics.Add(1)
				panic(r) // 交给 ants PanicHandler
			}
			p.completed.Add(1)
		}()
		task()
	})
	if err != nil {
		if errors.Is(err, ants.ErrPoolOverload) {
			p.rejected.Add(1)
			return ErrPoolOverload
		}
		return err
	}
	return nil
}

// SubmitWithContext 提交带上下文的任务.
// 上下文取消后, 尚未开始的任务不再执行.
func (p *Pool) SubmitWithContext(ctx context.Context, task func()) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return p.Submit(func() {
		select {
		case <-ctx.Done():
			return
		default:
			task()
		}
	})
}

// Release 关闭池并释放资源.
func (p *Pool) Release() {
	p.closedMu.Lock()
	defer p.closedMu.Unlock()

	if p.closed.Load() {
		return
	}
	p.closed.Store(true)
	p.pool.Release()
	logger.Infow("Worker pool released", "name", p.name)
}

// ReleaseTimeout 等待任务完成后关闭池, 直到超时.
func (p *Pool) ReleaseTimeout(timeout time.Duration) error {
	p.closedMu.Lock()
	defer p.closedMu.Unlock()

	if p.closed.Load() {
		return nil
	}
	p.closed.Store(true)
	return p.pool.ReleaseTimeout(timeout)
}

// Tune 动态调整池容量.
func (p *Pool) Tune(size int) {
	p.pool.Tune(size)
	p.config.Capacity = size
}

// Stats 返回池统计信息快照.
func (p *Pool) Stats() Stats {
	return Stats{
		SubmittedTasks: p.submitted.Load(),
		CompletedTasks: p.completed.Load(),
		RejectedTasks:  p.rejected.Load(),
		PanicRecovered: p.panics.Load(),
		Running:        p.pool.Running(),
		Capacity:       p.pool.Cap(),
	}
}

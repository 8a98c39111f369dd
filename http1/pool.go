package http1

import (
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/mirodin/httpengine/httpmetrics"
)

// PoolStrategy selects how a Parser/Serializer pool distributes reuse
// across goroutines.
type PoolStrategy int

const (
	// PoolStrategyStandard wraps a single sync.Pool, the fastest
	// choice for typical request/response workloads.
	PoolStrategyStandard PoolStrategy = iota
	// PoolStrategyPerCPU shards across GOMAXPROCS sync.Pools to cut
	// lock contention under sustained high-concurrency load with
	// longer object hold times.
	PoolStrategyPerCPU
)

// String renders the strategy as the metric label value used to tag
// pool counters.
func (s PoolStrategy) String() string {
	if s == PoolStrategyPerCPU {
		return "percpu"
	}
	return "standard"
}

// perCPUPool is a generic per-CPU sync.Pool shard set.
type perCPUPool[T any] struct {
	pools      []*sync.Pool
	roundRobin atomic.Uint64
	newFunc    func() T
}

func newPerCPUPool[T any](newFunc func() T) *perCPUPool[T] {
	n := runtime.GOMAXPROCS(0)
	if n < 1 {
		n = 1
	}
	pools := make([]*sync.Pool, n)
	for i := range pools {
		pools[i] = &sync.Pool{New: func() any { return newFunc() }}
	}
	return &perCPUPool[T]{pools: pools, newFunc: newFunc}
}

func (p *perCPUPool[T]) get() T {
	idx := p.roundRobin.Add(1) % uint64(len(p.pools))
	if obj := p.pools[idx].Get(); obj != nil {
		return obj.(T)
	}
	return p.newFunc()
}

func (p *perCPUPool[T]) put(obj T) {
	idx := p.roundRobin.Load() % uint64(len(p.pools))
	p.pools[idx].Put(obj)
}

// ParserPool recycles Parser instances (and their Workspaces) across
// connections. A pooled Parser is owned by exactly one goroutine
// between Get and Put.
type ParserPool struct {
	cfg      Config
	strategy PoolStrategy
	std      sync.Pool
	percpu   *perCPUPool[*Parser]
	metrics  *httpmetrics.Metrics
}

// NewParserPool constructs a pool that hands out Parsers built from
// cfg. strategy chooses PoolStrategyStandard (default) or
// PoolStrategyPerCPU. metrics may be nil to disable instrumentation.
func NewParserPool(cfg Config, strategy PoolStrategy, metrics *httpmetrics.Metrics) *ParserPool {
	pp := &ParserPool{cfg: cfg, strategy: strategy, metrics: metrics}
	newFn := func() *Parser {
		if metrics != nil {
			metrics.ParserPoolMisses.WithLabelValues(strategy.String()).Inc()
		}
		return NewParser(cfg)
	}
	pp.std.New = func() any { return newFn() }
	if strategy == PoolStrategyPerCPU {
		pp.percpu = newPerCPUPool(newFn)
	}
	return pp
}

// Get returns a Parser ready for a new message (Reset has already been
// called on it). A miss (a fresh Parser allocated by cfg's New func)
// is counted separately from a hit inside newFn/std.New; Get only adds
// the per-call total so the configured Metrics's gets/misses counters
// stay consistent with each other.
func (pp *ParserPool) Get() *Parser {
	var p *Parser
	if pp.strategy == PoolStrategyPerCPU {
		p = pp.percpu.get()
	} else {
		p = pp.std.Get().(*Parser)
	}
	if pp.metrics != nil {
		pp.metrics.ParserPoolGets.WithLabelValues(pp.strategy.String()).Inc()
	}
	p.Reset()
	return p
}

// Put returns p to the pool for reuse. Callers must not touch p again
// afterward.
func (pp *ParserPool) Put(p *Parser) {
	if pp.metrics != nil {
		pp.metrics.ParserPoolPuts.WithLabelValues(pp.strategy.String()).Inc()
	}
	if pp.strategy == PoolStrategyPerCPU {
		pp.percpu.put(p)
		return
	}
	pp.std.Put(p)
}

// SerializerPool recycles Serializer instances the same way ParserPool
// recycles Parsers.
type SerializerPool struct {
	cfg      SerializerConfig
	strategy PoolStrategy
	std      sync.Pool
	percpu   *perCPUPool[*Serializer]
	metrics  *httpmetrics.Metrics
}

// NewSerializerPool constructs a pool that hands out Serializers built
// from cfg. metrics may be nil to disable instrumentation.
func NewSerializerPool(cfg SerializerConfig, strategy PoolStrategy, metrics *httpmetrics.Metrics) *SerializerPool {
	sp := &SerializerPool{cfg: cfg, strategy: strategy, metrics: metrics}
	newFn := func() *Serializer {
		if metrics != nil {
			metrics.SerializerPoolMisses.WithLabelValues(strategy.String()).Inc()
		}
		return NewSerializer(cfg)
	}
	sp.std.New = func() any { return newFn() }
	if strategy == PoolStrategyPerCPU {
		sp.percpu = newPerCPUPool(newFn)
	}
	return sp
}

// Get returns a Serializer reset and ready for a new message.
func (sp *SerializerPool) Get() *Serializer {
	var s *Serializer
	if sp.strategy == PoolStrategyPerCPU {
		s = sp.percpu.get()
	} else {
		s = sp.std.Get().(*Serializer)
	}
	if sp.metrics != nil {
		sp.metrics.SerializerPoolGets.WithLabelValues(sp.strategy.String()).Inc()
	}
	s.Reset()
	return s
}

// Put returns s to the pool for reuse.
func (sp *SerializerPool) Put(s *Serializer) {
	if sp.metrics != nil {
		sp.metrics.SerializerPoolPuts.WithLabelValues(sp.strategy.String()).Inc()
	}
	if sp.strategy == PoolStrategyPerCPU {
		sp.percpu.put(s)
		return
	}
	sp.std.Put(s)
}

package sender

import (
	"context"
	"errors"
	"hash/fnv"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/m3rciful/leihbot/core/logger"
	"github.com/m3rciful/leihbot/core/telegram/netutil"
)

const component = "tg.sender"

var (
	// ErrQueueClosed is returned when enqueue is attempted after dispatcher stop.
	ErrQueueClosed = errors.New("telegram sender: queue closed")
	// ErrQueueFull indicates the queue is saturated and the job was not accepted.
	ErrQueueFull = errors.New("telegram sender: queue full")
)

// Options controls the behaviour of the outbound dispatcher.
type Options struct {
	// QueueSize is the buffer of each worker queue.
	QueueSize int
	// Workers is the number of queues. Jobs with the same key always share a queue.
	Workers      int
	MaxRetries   int
	RetryBackoff time.Duration
	// MaxDuration bounds the time spent retrying a single job.
	MaxDuration time.Duration
}

func (o Options) withDefaults() Options {
	if o.QueueSize <= 0 {
		o.QueueSize = 256
	}
	if o.Workers <= 0 {
		o.Workers = 4
	}
	o.MaxRetries = max(o.MaxRetries, 0)
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = 2 * time.Second
	}
	if o.MaxDuration <= 0 {
		o.MaxDuration = 12 * time.Second
	}
	return o
}

type job struct {
	ctx      context.Context
	action   string
	endpoint string
	run      func() error
}

func (j job) attrs() []slog.Attr {
	attrs := []slog.Attr{slog.String("action", j.action)}
	if j.endpoint != "" {
		attrs = append(attrs, slog.String("endpoint", j.endpoint))
	}
	return attrs
}

// Dispatcher executes outbound Telegram calls asynchronously with retries.
// Jobs sharing a key, usually a chat, run in submission order so replies of
// one conversation never overtake each other.
type Dispatcher struct {
	opts   Options
	queues []chan job
	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
	failed atomic.Uint64
}

// NewDispatcher starts Options.Workers workers.
func NewDispatcher(opts Options) *Dispatcher {
	opts = opts.withDefaults()
	d := &Dispatcher{opts: opts, queues: make([]chan job, opts.Workers)}
	for i := range d.queues {
		q := make(chan job, opts.QueueSize)
		d.queues[i] = q
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			for j := range q {
				d.process(j)
			}
		}()
	}
	return d
}

// Enqueue schedules run on the queue owning key. It never blocks: a full queue
// rejects the job with ErrQueueFull. run must be safe to repeat when retries are enabled.
func (d *Dispatcher) Enqueue(ctx context.Context, key, action, endpoint string, run func() error) error {
	if run == nil {
		return errors.New("telegram sender: nil run function")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrQueueClosed
	}
	select {
	case d.queues[d.shard(key)] <- job{ctx: ctx, action: action, endpoint: endpoint, run: run}:
		return nil
	default:
		return ErrQueueFull
	}
}

func (d *Dispatcher) shard(key string) int {
	if len(d.queues) == 1 || key == "" {
		return 0
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(len(d.queues)))
}

// ErrorCount returns the number of jobs that failed for good.
func (d *Dispatcher) ErrorCount() uint64 {
	return d.failed.Load()
}

// Close stops accepting jobs and waits until the queued ones are done.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		for _, q := range d.queues {
			close(q)
		}
	}
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *Dispatcher) process(j job) {
	start := time.Now()
	attempts, err := d.attempt(j)
	attrs := append(j.attrs(),
		slog.Int("attempts", attempts),
		slog.Duration("duration", logger.Took(start)),
	)
	if err != nil {
		d.failed.Add(1)
		attrs = append(attrs,
			slog.String("status", "fail"),
			slog.String("err", redact(err)),
			slog.String("cause", classifyError(err)),
		)
		logger.Error(j.ctx, component, "send.fail", attrs...)
		return
	}
	if attempts > 1 {
		logger.Info(j.ctx, component, "send.retry.success", attrs...)
		return
	}
	logger.Debug(j.ctx, component, "send.ok", attrs...)
}

// attempt runs j until it succeeds, fails permanently or runs out of budget.
// The backoff grows linearly with the attempt number.
func (d *Dispatcher) attempt(j job) (int, error) {
	ctx, cancel := context.WithTimeout(j.ctx, d.opts.MaxDuration)
	defer cancel()

	limit := d.opts.MaxRetries + 1
	for n := 1; ; n++ {
		if err := ctx.Err(); err != nil {
			return n - 1, err
		}
		err := j.run()
		if err == nil {
			return n, nil
		}
		if n == limit || !netutil.ShouldRetry(err) {
			return n, err
		}
		delay := d.opts.RetryBackoff * time.Duration(n)
		logger.Debug(j.ctx, component, "send.retry.backoff",
			append(j.attrs(), slog.Int("attempt", n), slog.Duration("backoff", delay))...)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return n, errors.Join(err, ctx.Err())
		case <-timer.C:
		}
	}
}

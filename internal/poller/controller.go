package poller

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/NordCoder/hbgate/internal/domain/notification"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

type Config struct {
	InitialDelay time.Duration
	VisibleDelay time.Duration
	Baseline     time.Duration
	FailureCap   time.Duration
	RateLimitCap time.Duration
	FetchTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		InitialDelay: 1500 * time.Millisecond,
		VisibleDelay: time.Second,
		Baseline:     2 * time.Minute,
		FailureCap:   5 * time.Minute,
		RateLimitCap: 15 * time.Minute,
		FetchTimeout: 15 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.InitialDelay <= 0 {
		c.InitialDelay = d.InitialDelay
	}
	if c.VisibleDelay <= 0 {
		c.VisibleDelay = d.VisibleDelay
	}
	if c.Baseline <= 0 {
		c.Baseline = d.Baseline
	}
	if c.FailureCap <= 0 {
		c.FailureCap = d.FailureCap
	}
	if c.RateLimitCap <= 0 {
		c.RateLimitCap = d.RateLimitCap
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = d.FetchTimeout
	}
	if c.FailureCap < c.Baseline {
		c.FailureCap = c.Baseline
	}
	if c.RateLimitCap < c.FailureCap {
		c.RateLimitCap = c.FailureCap
	}
	return c
}

type Indicator interface {
	SetUnread(n int)
}

type IndicatorFunc func(n int)

func (f IndicatorFunc) SetUnread(n int) { f(n) }

type Timer interface {
	Stop() bool
}

type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type realScheduler struct{}

func (realScheduler) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

type State string

const (
	StateIdle      State = "idle"
	StateScheduled State = "scheduled"
	StatePolling   State = "polling"
	StateClosed    State = "closed"
)

type Outcome string

const (
	OutcomeSuccess     Outcome = "success"
	OutcomeRateLimited Outcome = "rate_limited"
	OutcomeFailed      Outcome = "failed"
	OutcomeSkipped     Outcome = "skipped"
)

type Snapshot struct {
	State       State
	Delay       time.Duration
	Unread      int
	Known       bool
	Visible     bool
	LastOutcome Outcome
}

var (
	mPolls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "poller_cycles_total",
		Help: "Poll cycles by outcome.",
	}, []string{"outcome"})
	mDelay = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "poller_delay_seconds",
		Help: "Delay before the next scheduled poll.",
	})
)

type Option func(*Controller)

func WithScheduler(s Scheduler) Option { return func(c *Controller) { c.sched = s } }

func WithLogger(l *zap.Logger) Option { return func(c *Controller) { c.log = l } }

// Controller keeps one notification indicator fresh for every mounted widget.
// One instance serves a whole process: widgets share its timer and its single
// in-flight fetch. State changes only inside the timer callback and the fetch
// completion, serialized by mu.
type Controller struct {
	source notification.Source
	cfg    Config
	sched  Scheduler
	log    *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	credential string
	started    bool
	closed     bool
	hidden     bool
	inFlight   bool
	timer      Timer
	gen        uint64
	delay      time.Duration
	unread     int
	known      bool
	last       Outcome
	nextWidget int
	widgets    map[int]Indicator
}

func New(source notification.Source, cfg Config, opts ...Option) *Controller {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		source:  source,
		cfg:     cfg.withDefaults(),
		sched:   realScheduler{},
		log:     zap.NewNop(),
		ctx:     ctx,
		cancel:  cancel,
		widgets: make(map[int]Indicator),
	}
	for _, o := range opts {
		o(c)
	}
	c.delay = c.cfg.Baseline
	return c
}

// Mount registers a widget. It immediately receives the last known count, if any.
func (c *Controller) Mount(w Indicator) (unmount func()) {
	c.mu.Lock()
	id := c.nextWidget
	c.nextWidget++
	c.widgets[id] = w
	known, unread := c.known, c.unread
	c.mu.Unlock()

	if known {
		w.SetUnread(unread)
	}
	return func() {
		c.mu.Lock()
		delete(c.widgets, id)
		c.mu.Unlock()
	}
}

// SetCredential starts polling on the first non-empty credential and swaps the
// credential afterwards. An empty credential stops polling.
func (c *Controller) SetCredential(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.credential = token
	switch {
	case token == "" && c.started:
		c.started = false
		c.stopTimerLocked()
	case token != "" && !c.started:
		c.started = true
		c.delay = c.cfg.Baseline
		c.scheduleLocked(c.cfg.InitialDelay)
	}
}

func (c *Controller) SetVisible(visible bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	wasHidden := c.hidden
	c.hidden = !visible
	if visible && wasHidden && c.started && !c.closed {
		c.scheduleLocked(c.cfg.VisibleDelay)
	}
}

// Close tears the controller down; an in-flight fetch is cancelled and its result dropped.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	c.started = false
	c.stopTimerLocked()
	c.widgets = make(map[int]Indicator)
	c.mu.Unlock()
	c.cancel()
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := StateIdle
	switch {
	case c.closed:
		st = StateClosed
	case c.inFlight:
		st = StatePolling
	case c.started:
		st = StateScheduled
	}
	return Snapshot{
		State:       st,
		Delay:       c.delay,
		Unread:      c.unread,
		Known:       c.known,
		Visible:     !c.hidden,
		LastOutcome: c.last,
	}
}

func (c *Controller) scheduleLocked(d time.Duration) {
	c.stopTimerLocked()
	c.gen++
	gen := c.gen
	c.timer = c.sched.AfterFunc(d, func() { c.fire(gen) })
	mDelay.Set(d.Seconds())
}

func (c *Controller) stopTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *Controller) fire(gen uint64) {
	c.mu.Lock()
	if gen != c.gen || c.closed || !c.started {
		c.mu.Unlock()
		return
	}
	if c.hidden || c.inFlight {
		mPolls.WithLabelValues(string(OutcomeSkipped)).Inc()
		c.scheduleLocked(c.delay)
		c.mu.Unlock()
		return
	}
	c.inFlight = true
	token := c.credential
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(c.ctx, c.cfg.FetchTimeout)
	items, err := c.source.Fetch(ctx, token)
	cancel()
	c.complete(items, err)
}

func (c *Controller) complete(items []notification.Notification, err error) {
	c.mu.Lock()
	c.inFlight = false
	if c.closed {
		c.mu.Unlock()
		return
	}

	var notify []Indicator
	var se *StatusError
	switch {
	case err == nil:
		c.last = OutcomeSuccess
		c.unread = notification.CountUnread(items)
		c.known = true
		c.delay = c.cfg.Baseline
		for _, w := range c.widgets {
			notify = append(notify, w)
		}
	case errors.As(err, &se) && se.Status == http.StatusTooManyRequests:
		c.last = OutcomeRateLimited
		next := c.delay * 2
		if se.RetryAfter > 0 {
			next = se.RetryAfter
		}
		c.delay = clamp(next, c.cfg.Baseline, c.cfg.RateLimitCap)
		c.log.Info("notifications throttled", zap.Duration("next", c.delay), zap.Duration("retry_after", se.RetryAfter))
	default:
		c.last = OutcomeFailed
		c.delay = clamp(c.delay, c.cfg.Baseline, c.cfg.FailureCap)
		c.log.Warn("notifications poll failed", zap.Duration("next", c.delay), zap.Error(err))
	}
	mPolls.WithLabelValues(string(c.last)).Inc()
	if c.started {
		c.scheduleLocked(c.delay)
	}
	unread := c.unread
	c.mu.Unlock()

	for _, w := range notify {
		w.SetUnread(unread)
	}
}

func clamp(d, lo, hi time.Duration) time.Duration {
	if d < lo {
		return lo
	}
	if d > hi {
		return hi
	}
	return d
}

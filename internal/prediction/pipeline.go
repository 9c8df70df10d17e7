package prediction

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Snapshot is the state the UI renders. Outcome is set only in StateSucceeded,
// Err only in StateFailed.
type Snapshot struct {
	State      State    `json:"state"`
	Generation uint64   `json:"generation"`
	Outcome    *Outcome `json:"outcome,omitempty"`
	Err        error    `json:"-"`
}

// Ticket tracks one submission.
type Ticket struct {
	Generation uint64

	done    chan struct{}
	outcome Outcome
	err     error
}

// Wait blocks until this submission resolves. A submission replaced by a newer one
// resolves with ErrSuperseded.
func (t *Ticket) Wait(ctx context.Context) (Outcome, error) {
	select {
	case <-t.done:
		return t.outcome, t.err
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}

// SuccessHook runs after a current-generation success has been applied.
type SuccessHook func(ctx context.Context, in Input, out Outcome)

type Option func(*Pipeline)

func WithLogger(logger *zap.Logger) Option {
	return func(p *Pipeline) { p.logger = logger }
}

func WithSuccessHook(hook SuccessHook) Option {
	return func(p *Pipeline) { p.onSuccess = hook }
}

// Pipeline is the single writer of the prediction state. Every submission bumps the
// generation; a resolution is applied only while its generation is still current,
// so the last submission wins regardless of network completion order.
type Pipeline struct {
	predictor Predictor
	logger    *zap.Logger
	onSuccess SuccessHook

	ctx  context.Context
	stop context.CancelFunc
	wg   sync.WaitGroup

	mu          sync.Mutex
	generation  uint64
	state       State
	outcome     *Outcome
	err         error
	cancel      context.CancelFunc
	subscribers map[int]chan Snapshot
	nextSubID   int
	closed      bool
}

func NewPipeline(predictor Predictor, opts ...Option) *Pipeline {
	ctx, stop := context.WithCancel(context.Background())
	p := &Pipeline{
		predictor:   predictor,
		logger:      zap.NewNop(),
		ctx:         ctx,
		stop:        stop,
		state:       StateIdle,
		subscribers: make(map[int]chan Snapshot),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Submit validates synchronously. A validation failure is returned directly, moves the
// pipeline to StateFailed and never reaches the transport. Otherwise exactly one remote
// call starts and any in-flight call is abandoned.
func (p *Pipeline) Submit(in Input) (*Ticket, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, ErrClosed
	}

	p.supersedeLocked()
	p.state = StateValidating

	if err := Validate(in); err != nil {
		p.state = StateFailed
		p.err = err
		p.publishLocked()
		return nil, err
	}

	ctx, cancel := context.WithCancel(p.ctx)
	p.cancel = cancel
	p.state = StateSubmitting
	ticket := &Ticket{Generation: p.generation, done: make(chan struct{})}
	p.publishLocked()

	p.wg.Add(1)
	go p.run(ctx, cancel, in, ticket)

	return ticket, nil
}

// Reset abandons any in-flight call and returns to StateIdle.
func (p *Pipeline) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.supersedeLocked()
	p.state = StateIdle
	p.publishLocked()
}

func (p *Pipeline) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshotLocked()
}

// Subscribe delivers the current snapshot immediately and then every change.
// Slow readers only ever miss intermediate snapshots, never the latest one.
func (p *Pipeline) Subscribe() (<-chan Snapshot, func()) {
	p.mu.Lock()
	defer p.mu.Unlock()

	ch := make(chan Snapshot, 1)
	if p.closed {
		close(ch)
		return ch, func() {}
	}
	id := p.nextSubID
	p.nextSubID++
	p.subscribers[id] = ch
	ch <- p.snapshotLocked()

	return ch, func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		if sub, ok := p.subscribers[id]; ok {
			delete(p.subscribers, id)
			close(sub)
		}
	}
}

// Close abandons the in-flight call, waits for its goroutine and closes subscriptions.
func (p *Pipeline) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.generation++
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	for id, ch := range p.subscribers {
		delete(p.subscribers, id)
		close(ch)
	}
	p.mu.Unlock()

	p.stop()
	p.wg.Wait()
}

func (p *Pipeline) run(ctx context.Context, cancel context.CancelFunc, in Input, ticket *Ticket) {
	defer p.wg.Done()
	defer cancel()

	outcome, err := p.predictor.Predict(ctx, in)

	p.mu.Lock()
	if ticket.Generation != p.generation {
		p.mu.Unlock()
		p.logger.Debug("discarding stale prediction",
			zap.Uint64("generation", ticket.Generation),
			zap.Error(err))
		ticket.err = ErrSuperseded
		close(ticket.done)
		return
	}

	p.cancel = nil
	if err != nil {
		p.state = StateFailed
		p.err = err
		ticket.err = err
		p.logger.Warn("prediction failed", zap.String("drug", in.DrugName), zap.Error(err))
	} else {
		p.state = StateSucceeded
		p.outcome = &outcome
		ticket.outcome = outcome
	}
	p.publishLocked()
	hook := p.onSuccess
	p.mu.Unlock()

	if err == nil && hook != nil {
		hook(context.WithoutCancel(ctx), in, outcome)
	}
	close(ticket.done)
}

// supersedeLocked invalidates the current generation and clears the visible result.
func (p *Pipeline) supersedeLocked() {
	p.generation++
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	p.outcome = nil
	p.err = nil
}

func (p *Pipeline) snapshotLocked() Snapshot {
	s := Snapshot{State: p.state, Generation: p.generation, Err: p.err}
	if p.outcome != nil {
		o := *p.outcome
		s.Outcome = &o
	}
	return s
}

func (p *Pipeline) publishLocked() {
	s := p.snapshotLocked()
	for _, ch := range p.subscribers {
		select {
		case ch <- s:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- s
		}
	}
}

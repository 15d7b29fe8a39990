// Package pipeline polls the intake backend, drops repeated deliveries,
// normalizes new ones and hands them to observers.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"vocacare-intake-go/internal/detector"
	"vocacare-intake-go/internal/envelope"
	"vocacare-intake-go/internal/extractor"
	"vocacare-intake-go/internal/logger"
	"vocacare-intake-go/internal/metrics"
	"vocacare-intake-go/internal/scheduler"
	"vocacare-intake-go/internal/types"
)

const DefaultInterval = 2 * time.Second

// Source fetches the latest delivery. webhook.Client is the production one.
type Source interface {
	FetchLatest(ctx context.Context) (*envelope.Envelope, error)
}

// Update is what observers receive for every accepted delivery.
type Update struct {
	Record types.PatientRecord `json:"record"`
	// Conversation is the delivery's body.data, untouched.
	Conversation json.RawMessage `json:"conversation"`
	Delivery     envelope.Stamp  `json:"delivery"`
}

// Observer is called synchronously, in subscription order, with the
// pipeline lock held. It must not call back into the pipeline.
type Observer interface {
	Publish(Update)
}

type ObserverFunc func(Update)

func (f ObserverFunc) Publish(u Update) { f(u) }

type Options struct {
	Interval  time.Duration
	Extractor *extractor.Extractor
	Logger    *logger.Logger
}

type Pipeline struct {
	source    Source
	extractor *extractor.Extractor
	interval  time.Duration
	log       *logger.Logger
	sched     *scheduler.Scheduler

	mu        sync.Mutex
	state     detector.PollState
	observers []Observer
	stopped   []*scheduler.Task
}

func New(src Source, opts Options) *Pipeline {
	p := &Pipeline{
		source:    src,
		extractor: opts.Extractor,
		interval:  opts.Interval,
		log:       opts.Logger,
	}
	if p.interval <= 0 {
		p.interval = DefaultInterval
	}
	if p.extractor == nil {
		p.extractor = extractor.New()
	}
	if p.log == nil {
		p.log = logger.New()
	}
	p.log = p.log.With("component", "pipeline")
	p.sched = scheduler.New(p.tick)
	return p
}

func (p *Pipeline) Subscribe(o Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observers = append(p.observers, o)
}

// State returns a snapshot of the poll state.
func (p *Pipeline) State() detector.PollState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// SetEnabled starts or stops polling. Once it returns with enabled=false,
// no earlier tick can touch the poll state or publish.
func (p *Pipeline) SetEnabled(enabled bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.setEnabledLocked(enabled)
}

// Toggle flips polling and returns the new setting.
func (p *Pipeline) Toggle() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.setEnabledLocked(!p.state.Enabled)
	return p.state.Enabled
}

func (p *Pipeline) setEnabledLocked(enabled bool) {
	if enabled == p.state.Enabled {
		return
	}
	p.state.Enabled = enabled
	if enabled {
		p.sched.Start(context.Background(), p.interval)
		metrics.PollingEnabled.Set(1)
		p.log.WithField("interval_ms", p.interval.Milliseconds()).Info("polling enabled")
		return
	}
	if t := p.sched.Stop(); t != nil {
		p.stopped = append(pending(p.stopped), t)
	}
	metrics.PollingEnabled.Set(0)
	p.log.Info("polling disabled")
}

// Close disables polling and waits for in-flight ticks to return.
func (p *Pipeline) Close() {
	p.mu.Lock()
	p.setEnabledLocked(false)
	tasks := p.stopped
	p.stopped = nil
	p.mu.Unlock()
	for _, t := range tasks {
		t.Wait()
	}
}

// pending drops tasks whose calls have all returned.
func pending(tasks []*scheduler.Task) []*scheduler.Task {
	kept := tasks[:0]
	for _, t := range tasks {
		select {
		case <-t.Done():
		default:
			kept = append(kept, t)
		}
	}
	clear(tasks[len(kept):])
	return kept
}

func (p *Pipeline) tick(ctx context.Context) {
	metrics.PollTicks.Inc()
	log := p.log.WithTick()

	start := time.Now()
	env, err := p.source.FetchLatest(ctx)
	metrics.FetchDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		if ctx.Err() != nil {
			metrics.PollOutcomes.WithLabelValues(metrics.OutcomeDiscarded).Inc()
			log.Debug("tick cancelled during fetch")
			return
		}
		if errors.Is(err, envelope.ErrEmpty) {
			metrics.PollOutcomes.WithLabelValues(metrics.OutcomeNoData).Inc()
			log.Debug("backend returned an empty body")
			return
		}
		metrics.PollOutcomes.WithLabelValues(metrics.OutcomeFetchFailed).Inc()
		log.WithError(err).Warn("poll fetch failed")
		return
	}
	metrics.PollOutcomes.WithLabelValues(p.handle(ctx, env, log)).Inc()
}

func (p *Pipeline) handle(ctx context.Context, env *envelope.Envelope, log *logrus.Entry) string {
	p.mu.Lock()
	defer p.mu.Unlock()

	if ctx.Err() != nil {
		log.Debug("discarding result of stopped tick")
		return metrics.OutcomeDiscarded
	}
	if env.Timestamp.IsZero() {
		log.Debug("delivery has no timestamp")
		return metrics.OutcomeNoData
	}
	if !detector.ShouldAccept(env.Timestamp, &p.state) {
		return metrics.OutcomeDuplicate
	}
	log = log.WithField("delivery", env.Timestamp.String())

	rec := p.extractor.Extract(env)
	if rec == nil {
		log.WithField("reasons", env.Rejection).Info("delivery not recognized")
		return metrics.OutcomeRejected
	}

	u := Update{Record: *rec, Conversation: env.Data, Delivery: env.Timestamp}
	for _, o := range p.observers {
		o.Publish(u)
	}
	fields := logrus.Fields{"observers": len(p.observers)}
	if rec.ConversationID != nil {
		fields["conversation_id"] = *rec.ConversationID
	}
	log.WithFields(fields).Info("patient record published")
	return metrics.OutcomePublished
}

package runtime

import (
	"time"

	"github.com/jabolina/go-sigmap/pkg/sigmap/expr/eval"
	"github.com/jabolina/go-sigmap/pkg/sigmap/transport"
	"github.com/jabolina/go-sigmap/pkg/sigmap/types"
)

// Pipeline owns one map's execution: evaluating its expression as sibling
// sources arrive and handing the result to transport, optionally inside a
// caller-opened queue window (spec.md §4.I steps 1-4).
type Pipeline struct {
	spec *types.MapSpec
	eval *eval.Evaluator
	link *transport.Link

	fresh    []bool // which sources have been updated since the last fire
	received int

	metrics *Metrics
}

// NewPipeline builds a Pipeline for spec, whose Program must already be
// compiled (the map must be in MapReady or later).
func NewPipeline(spec *types.MapSpec, link *transport.Link, metrics *Metrics) *Pipeline {
	return &Pipeline{
		spec:    spec,
		eval:    eval.NewEvaluator(spec.Program),
		link:    link,
		fresh:   make([]bool, len(spec.Sources)),
		metrics: metrics,
	}
}

// UpdateSource records a new value for source idx and, once every required
// source has a fresh value (spec.md §4.I's convergent-map fire condition),
// evaluates the expression and sends the result. window, if non-nil,
// receives the outgoing update instead of it being sent immediately
// (spec.md §5's queue_start/queue_send pairing).
func (p *Pipeline) UpdateSource(idx int, value []float64, t time.Time, window *transport.QueueWindow) error {
	if idx < 0 || idx >= len(p.fresh) {
		return types.NewError(types.KindSchemaMismatch, "Pipeline.UpdateSource: source index out of range", nil)
	}
	p.eval.UpdateSource(idx, value, t)
	if !p.fresh[idx] {
		p.fresh[idx] = true
		p.received++
	}

	if !p.ready() {
		return nil
	}
	p.resetFreshness()

	dest, destTime, muted, err := p.eval.Eval(idx, t)
	if err != nil {
		if p.metrics != nil {
			p.metrics.EvalErrors.WithLabelValues(p.mapLabel()).Inc()
		}
		if types.Is(err, types.KindComputation) {
			return nil // recoverable: drop the sample
		}
		return err
	}
	if muted {
		if p.metrics != nil {
			p.metrics.MutedTicks.WithLabelValues(p.mapLabel()).Inc()
		}
		return nil
	}

	if p.metrics != nil {
		p.metrics.Evaluations.WithLabelValues(p.mapLabel()).Inc()
	}
	return p.emit(dest, destTime, window)
}

// ready reports whether every source required to fire has been updated at
// least once since the last fire.
func (p *Pipeline) ready() bool {
	return p.received == len(p.fresh)
}

func (p *Pipeline) resetFreshness() {
	for i := range p.fresh {
		p.fresh[i] = false
	}
	p.received = 0
}

func (p *Pipeline) emit(value []float64, t time.Time, window *transport.QueueWindow) error {
	msg := BuildSet(p.spec.Dest, value, t)
	if window != nil {
		window.SetValue(msg)
		return nil
	}
	return p.link.Send(msg)
}

func (p *Pipeline) mapLabel() string {
	return p.spec.Dest.String()
}

package query

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/msageha/contentbook/internal/container"
)

const (
	DefaultStepTimeout = 30 * time.Second
	DefaultMaxSteps    = 1024
)

// Scheduler is the main loop the runner lives on.
type Scheduler interface {
	Post(fn func()) bool
	AfterFunc(d time.Duration, fn func()) func() bool
}

type RunnerOptions struct {
	StepTimeout time.Duration
	MaxSteps    int
	Logger      *zap.Logger
}

// Runner executes scripts against one transport. All script state is touched
// only on the scheduler, and scripts run one at a time in submission order.
type Runner struct {
	sched     Scheduler
	transport container.Transport
	timeout   time.Duration
	maxSteps  int
	logger    *zap.Logger

	gate   container.Gate
	active *execution
}

func NewRunner(sched Scheduler, transport container.Transport, opts RunnerOptions) *Runner {
	if opts.StepTimeout <= 0 {
		opts.StepTimeout = DefaultStepTimeout
	}
	if opts.MaxSteps <= 0 {
		opts.MaxSteps = DefaultMaxSteps
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Runner{
		sched:     sched,
		transport: transport,
		timeout:   opts.StepTimeout,
		maxSteps:  opts.MaxSteps,
		logger:    opts.Logger,
	}
}

// Execute schedules s. It may be called from any goroutine and returns false
// only if the scheduler has stopped. A script may be executed once.
func (r *Runner) Execute(s *Script) bool {
	return r.sched.Post(func() { r.start(s) })
}

// Abort fails the active script if it is waiting on a click in container
// containerID, as when the player closes that container or disconnects. A
// close of any other container, or one that lands while the script is still
// opening its own, is ignored. It must run on the scheduler.
func (r *Runner) Abort(containerID int, reason error) {
	x := r.active
	if x == nil || x.finished || x.pending == 0 {
		return
	}
	if x.action.Kind != container.ActionClickSlot || x.action.ContainerID != containerID {
		x.log.Debug("ignoring close of unrelated container",
			zap.Int("container_id", containerID), zap.Stringer("pending", x.action))
		return
	}
	x.fail(&Error{Kind: KindTransport, Msg: fmt.Sprintf("aborted: %v", reason), Err: reason})
}

// Busy reports whether a script is running. It must run on the scheduler.
func (r *Runner) Busy() bool {
	return r.gate.Busy()
}

// Queued returns the number of scripts waiting for the transport.
func (r *Runner) Queued() int {
	return r.gate.Pending()
}

func (r *Runner) start(s *Script) {
	log := r.logger.With(zap.String("script", s.name), zap.String("script_id", s.id))
	if s.used {
		log.Warn("script submitted twice")
		notify(log, s.onError, &Error{Kind: KindProtocol, Msg: ErrAlreadyExecuted.Error(), Err: ErrAlreadyExecuted})
		return
	}
	s.used = true

	if r.gate.Busy() {
		log.Debug("container busy, script queued", zap.Int("queued", r.gate.Pending()+1))
	}
	r.gate.Acquire(func(release func()) {
		x := &execution{r: r, s: s, log: log, release: release}
		r.active = x
		x.begin()
	})
}

// execution is the per-run state machine of one script.
type execution struct {
	r       *Runner
	s       *Script
	log     *zap.Logger
	release func()

	idx        int
	current    container.Snapshot
	hasCurrent bool
	steps      int

	seq       uint64
	pending   uint64
	action    container.Action
	stopTimer func() bool

	finished bool
}

func (x *execution) begin() {
	x.log.Debug("script started", zap.Int("stages", len(x.s.stages)))
	for _, fn := range x.s.preExecute {
		if err := guard("pre-execute", func() error { fn(); return nil }); err != nil {
			x.fail(err)
			return
		}
	}
	x.advance()
}

// advance runs stages until one suspends on the transport or the script ends.
func (x *execution) advance() {
	for !x.finished {
		if x.idx >= len(x.s.stages) {
			x.succeed()
			return
		}
		st := &x.s.stages[x.idx]

		switch st.kind {
		case StageExecute:
			if err := guard("execute", func() error { st.effect(); return nil }); err != nil {
				x.fail(err)
				return
			}
			x.idx++

		case StageReprocess:
			if !x.requireSnapshot(st.kind) {
				return
			}
			if err := guard("reprocess", func() error { return st.observer(x.current) }); err != nil {
				x.fail(err)
				return
			}
			x.idx++

		case StageThen:
			x.idx++
			if x.perform(st.step, KindTransport) {
				return
			}

		case StageRepeat:
			if !x.requireSnapshot(st.kind) {
				return
			}
			var again bool
			err := guard("repeat predicate", func() (err error) {
				again, err = st.predicate(x.current)
				return err
			})
			if err != nil {
				x.fail(err)
				return
			}
			if !again {
				x.idx++
				continue
			}
			if x.perform(st.step, KindTransport) {
				return
			}

		case StageSearchAndAct:
			if !x.requireSnapshot(st.kind) {
				return
			}
			var slot int
			var found bool
			err := guard("search", func() (err error) {
				slot, found, err = st.search(x.current)
				return err
			})
			if err != nil {
				x.fail(err)
				return
			}
			if found {
				x.idx++
				if x.perform(ClickSlot(slot), KindTransport) {
					return
				}
				continue
			}
			if x.perform(st.step, KindNotFound) {
				return
			}

		default:
			x.fail(Errorf(KindProtocol, "unknown stage kind %d", st.kind))
			return
		}
	}
}

func (x *execution) requireSnapshot(kind StageKind) bool {
	if x.hasCurrent {
		return true
	}
	x.fail(&Error{Kind: KindProtocol, Msg: fmt.Sprintf("%s stage has no container to work on", kind), Err: ErrNoSnapshot})
	return false
}

// perform runs step and reports whether the execution is now suspended on the
// transport. guardKind is the error kind used when a slot guard fails.
func (x *execution) perform(step QueryStep, guardKind ErrorKind) bool {
	x.steps++
	if x.steps > x.r.maxSteps {
		x.fail(&Error{Kind: KindRunaway, Msg: fmt.Sprintf("script exceeded %d steps", x.r.maxSteps), Err: ErrStepLimit})
		return false
	}

	if step.Kind == StepInspect {
		if step.Inspect == nil {
			return false
		}
		if !x.requireSnapshot(StageThen) {
			return false
		}
		if err := guard("inspect", func() error { return step.Inspect(x.current) }); err != nil {
			x.fail(err)
		}
		return false
	}

	var action container.Action
	switch step.Kind {
	case StepUseHotbarItem:
		action = container.Action{Kind: container.ActionUseHotbarItem, Slot: step.Slot, Button: container.ButtonRight}
	case StepClickSlot, StepClickSlotMatching:
		if !x.hasCurrent {
			x.fail(&Error{Kind: KindTransport, Msg: fmt.Sprintf("%s: %v", step, container.ErrNoContainer), Err: container.ErrNoContainer})
			return false
		}
		if step.Kind == StepClickSlotMatching && !ContainerHasSlot(x.current, step.Slot, step.ItemKind, step.NameFragment) {
			x.fail(&Error{Kind: guardKind, Msg: fmt.Sprintf("%s: %v", step, ErrPredicateFail), Err: ErrPredicateFail})
			return false
		}
		action = container.Action{Kind: container.ActionClickSlot, ContainerID: x.current.ID, Slot: step.Slot, Button: container.ButtonLeft}
	default:
		x.fail(Errorf(KindProtocol, "unknown step kind %d", step.Kind))
		return false
	}

	x.seq++
	gen := x.seq
	x.pending = gen
	x.action = action
	x.log.Debug("sending action", zap.Stringer("action", action), zap.Int("stage", x.idx), zap.Int("step", x.steps))

	x.stopTimer = x.r.sched.AfterFunc(x.r.timeout, func() { x.onTimeout(gen, step) })
	x.r.transport.Do(action, func(snap container.Snapshot, err error) {
		x.r.sched.Post(func() { x.onReply(gen, step, action, snap, err) })
	})
	return true
}

func (x *execution) onReply(gen uint64, step QueryStep, action container.Action, snap container.Snapshot, err error) {
	if x.finished || x.pending != gen {
		x.log.Debug("dropping late container reply", zap.Stringer("action", action))
		return
	}
	x.clearPending()

	if err != nil {
		x.fail(&Error{Kind: KindTransport, Msg: fmt.Sprintf("%s: %v", step, err), Err: err})
		return
	}
	if step.ExpectedTitle != "" && !snap.Title.Equal(step.ExpectedTitle) {
		x.fail(&Error{
			Kind: KindTransport,
			Msg:  fmt.Sprintf("%s: expected container title %q, got %q", step, step.ExpectedTitle, snap.Title),
			Err:  ErrTitleMismatch,
		})
		return
	}
	if action.Kind == container.ActionClickSlot && snap.ID != action.ContainerID {
		x.fail(&Error{
			Kind: KindTransport,
			Msg:  fmt.Sprintf("%s: container %d replaced by %d", step, action.ContainerID, snap.ID),
			Err:  ErrContainerChanged,
		})
		return
	}

	x.current = snap
	x.hasCurrent = true

	if step.OnIncoming != nil {
		if err := guard("incoming", func() error { return step.OnIncoming(snap) }); err != nil {
			x.fail(err)
			return
		}
	}
	x.advance()
}

func (x *execution) onTimeout(gen uint64, step QueryStep) {
	if x.finished || x.pending != gen {
		return
	}
	x.pending = 0
	x.action = container.Action{}
	x.stopTimer = nil
	x.fail(&Error{Kind: KindTransport, Msg: fmt.Sprintf("%s: %v after %s", step, ErrTimeout, x.r.timeout), Err: ErrTimeout})
}

func (x *execution) clearPending() {
	x.pending = 0
	x.action = container.Action{}
	if x.stopTimer != nil {
		x.stopTimer()
		x.stopTimer = nil
	}
}

func (x *execution) succeed() {
	x.finished = true
	x.log.Debug("script finished", zap.Int("steps", x.steps))
	x.done()
}

func (x *execution) fail(err error) {
	if x.finished {
		return
	}
	x.finished = true
	x.clearPending()

	qe := asQueryError(err)
	x.log.Warn("container query failed",
		zap.String("kind", string(qe.Kind)),
		zap.Int("stage", x.idx),
		zap.Int("steps", x.steps),
		zap.Error(qe))
	notify(x.log, x.s.onError, qe)
	x.done()
}

func (x *execution) done() {
	if x.r.active == x {
		x.r.active = nil
	}
	x.release()
}

func notify(log *zap.Logger, onError func(error), err *Error) {
	if onError == nil {
		return
	}
	if perr := guard("error handler", func() error { onError(err); return nil }); perr != nil {
		log.Error("script error handler failed", zap.Error(perr))
	}
}

// guard runs fn and turns a panic into a protocol error.
func guard(what string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				var qe *Error
				if errors.As(e, &qe) {
					err = qe
					return
				}
			}
			err = Errorf(KindProtocol, "%s panicked: %v", what, r)
		}
	}()
	return fn()
}

package query

import (
	"github.com/google/uuid"

	"github.com/msageha/contentbook/internal/container"
)

// StageKind tags the variant of a script stage.
type StageKind int

const (
	StageExecute StageKind = iota
	StageThen
	StageRepeat
	StageReprocess
	StageSearchAndAct
)

func (k StageKind) String() string {
	switch k {
	case StageExecute:
		return "execute"
	case StageThen:
		return "then"
	case StageRepeat:
		return "repeat"
	case StageReprocess:
		return "reprocess"
	case StageSearchAndAct:
		return "search_and_act"
	default:
		return "unknown"
	}
}

// Predicate decides whether a Repeat stage runs its body again.
type Predicate func(container.Snapshot) (bool, error)

// Search looks for a slot to click. found=false runs the fallback step.
type Search func(container.Snapshot) (slot int, found bool, err error)

type stage struct {
	kind      StageKind
	effect    func()
	step      QueryStep
	predicate Predicate
	observer  Observer
	search    Search
}

// Script is a single-use, linear sequence of stages.
type Script struct {
	name       string
	id         string
	preExecute []func()
	stages     []stage
	onError    func(error)
	used       bool
}

func (s *Script) Name() string { return s.name }
func (s *Script) ID() string   { return s.id }

// Len returns the number of stages.
func (s *Script) Len() int { return len(s.stages) }

// Kinds lists the stage kinds in order.
func (s *Script) Kinds() []StageKind {
	kinds := make([]StageKind, len(s.stages))
	for i, st := range s.stages {
		kinds[i] = st.kind
	}
	return kinds
}

// Builder assembles a Script in declaration order.
type Builder struct {
	script *Script
}

func NewBuilder(name string) *Builder {
	return &Builder{script: &Script{name: name, id: uuid.NewString()}}
}

// OnError installs the failure handler. It receives a *Error whose message
// is the reason. A later call replaces an earlier one.
func (b *Builder) OnError(fn func(error)) *Builder {
	b.script.onError = fn
	return b
}

// PreExecute registers setup that runs once before the first stage.
func (b *Builder) PreExecute(fn func()) *Builder {
	b.script.preExecute = append(b.script.preExecute, fn)
	return b
}

// Execute runs a side effect without touching the transport.
func (b *Builder) Execute(fn func()) *Builder {
	return b.add(stage{kind: StageExecute, effect: fn})
}

// Then runs one step against the transport.
func (b *Builder) Then(step QueryStep) *Builder {
	return b.add(stage{kind: StageThen, step: step})
}

// Repeat runs step while pred holds for the current snapshot. Each response
// becomes the current snapshot before pred is evaluated again.
func (b *Builder) Repeat(pred Predicate, step QueryStep) *Builder {
	return b.add(stage{kind: StageRepeat, predicate: pred, step: step})
}

// Reprocess runs fn on the current snapshot again, without a round-trip.
func (b *Builder) Reprocess(fn Observer) *Builder {
	return b.add(stage{kind: StageReprocess, observer: fn})
}

// SearchAndAct runs search on the current snapshot. When it finds a slot the
// slot is clicked and the stage ends; otherwise fallback runs and the search
// repeats on its response. A fallback that fails its slot guard ends the
// script with a not-found error.
func (b *Builder) SearchAndAct(search Search, fallback QueryStep) *Builder {
	return b.add(stage{kind: StageSearchAndAct, search: search, step: fallback})
}

func (b *Builder) Build() *Script {
	return b.script
}

func (b *Builder) add(st stage) *Builder {
	b.script.stages = append(b.script.stages, st)
	return b
}

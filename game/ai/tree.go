package ai

// Status is the result of a behavior tree node tick.
type Status int

const (
	StatusSuccess Status = iota
	StatusFailure
	StatusRunning
)

// Node is a single node in a behavior tree. Trees are immutable and shared
// by every entity of an archetype; all mutable state lives on the Context's
// entity, so evaluation is deterministic for identical (entity state, now).
type Node interface {
	Tick(ctx *Context) Status
}

// ---- Composite nodes ----

// Selector succeeds as soon as one child succeeds (logical OR). Children are
// evaluated in declared order; the first success short-circuits the rest.
type Selector struct {
	Children []Node
}

func (s *Selector) Tick(ctx *Context) Status {
	for _, c := range s.Children {
		switch c.Tick(ctx) {
		case StatusSuccess:
			return StatusSuccess
		case StatusRunning:
			return StatusRunning
		}
	}
	return StatusFailure
}

// Sequence succeeds only when all children succeed (logical AND). The first
// failing child aborts the chain.
type Sequence struct {
	Children []Node
}

func (s *Sequence) Tick(ctx *Context) Status {
	for _, c := range s.Children {
		switch c.Tick(ctx) {
		case StatusFailure:
			return StatusFailure
		case StatusRunning:
			return StatusRunning
		}
	}
	return StatusSuccess
}

// ---- Leaf nodes ----

// Condition evaluates a named boolean predicate. Predicates must not mutate
// entity state; all side effects belong to actions.
type Condition struct {
	Name string
	Fn   func(*Context) bool
}

func (c *Condition) Tick(ctx *Context) Status {
	if c.Fn(ctx) {
		return StatusSuccess
	}
	return StatusFailure
}

// Action executes a named effect and returns its status.
type Action struct {
	Name string
	Fn   func(*Context) Status
}

func (a *Action) Tick(ctx *Context) Status {
	ctx.lastAction = a.Name
	return a.Fn(ctx)
}

// ---- Decorator nodes ----

// Inverter negates the result of its child.
type Inverter struct {
	Child Node
}

func (i *Inverter) Tick(ctx *Context) Status {
	switch i.Child.Tick(ctx) {
	case StatusSuccess:
		return StatusFailure
	case StatusFailure:
		return StatusSuccess
	default:
		return StatusRunning
	}
}

// ---- BehaviorTree root ----

// BehaviorTree wraps the root node.
type BehaviorTree struct {
	Root Node
}

// Tick runs one evaluation of the tree. Returns the root status and records
// the last action reached on the context.
func (bt *BehaviorTree) Tick(ctx *Context) Status {
	if bt.Root == nil {
		return StatusFailure
	}
	return bt.Root.Tick(ctx)
}

package pipeline

// Handler processes a passable value.
type Handler[T any] func(T) error

// Stage wraps the next handler in the chain.
type Stage[T any] func(next Handler[T]) Handler[T]

// Pipeline composes stages around a destination handler.
// The first stage is the outermost layer of the onion.
type Pipeline[T any] struct {
	stages []Stage[T]
}

// New creates a pipeline through the given stages.
func New[T any](stages ...Stage[T]) *Pipeline[T] {
	p := &Pipeline[T]{}
	return p.Through(stages...)
}

// Through appends stages. Nil stages are skipped.
func (p *Pipeline[T]) Through(stages ...Stage[T]) *Pipeline[T] {
	for _, s := range stages {
		if s != nil {
			p.stages = append(p.stages, s)
		}
	}
	return p
}

// Prepend inserts stages before the existing ones.
func (p *Pipeline[T]) Prepend(stages ...Stage[T]) *Pipeline[T] {
	head := New(stages...)
	p.stages = append(head.stages, p.stages...)
	return p
}

// Len returns the number of stages.
func (p *Pipeline[T]) Len() int {
	return len(p.stages)
}

// Then returns a handler that runs every stage and finally dest.
// The composition is computed once; the result may be called concurrently
// if the stages are safe for concurrent use.
func (p *Pipeline[T]) Then(dest Handler[T]) Handler[T] {
	h := dest
	for i := len(p.stages) - 1; i >= 0; i-- {
		h = p.stages[i](h)
	}
	return h
}

// Send runs passable through the pipeline into dest.
func (p *Pipeline[T]) Send(passable T, dest Handler[T]) error {
	return p.Then(dest)(passable)
}

package dump

import "context"

// task processes the table at index UID of a dump.
type task struct {
	UID     int
	RunFunc func(ctx context.Context, t *task) error
}

func (t task) ID() int {
	return t.UID
}

func (t *task) Run(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return t.RunFunc(ctx, t)
	}
}

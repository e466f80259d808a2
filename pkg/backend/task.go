package backend

import "context"

// Task is an in-flight backend request.
type Task struct {
	cancel context.CancelFunc
	done   chan struct{}
	result map[string]any
	err    error
}

// Cancel aborts the request. It is safe to call more than once and after completion.
func (t *Task) Cancel() {
	t.cancel()
}

func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the task settles or ctx is done. Giving up on ctx does
// not cancel the task.
func (t *Task) Wait(ctx context.Context) (map[string]any, error) {
	select {
	case <-t.done:
		return t.result, t.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

package capture

import (
	"context"

	"github.com/teslashibe/go-yolocapture/pkg/upload"
)

// Attempt is the future for one capture. It resolves exactly once, after the
// callback (if any) has returned.
type Attempt struct {
	seq    uint64
	done   chan struct{}
	result upload.Result
	err    error
}

func newAttempt(seq uint64) *Attempt {
	return &Attempt{seq: seq, done: make(chan struct{})}
}

func (a *Attempt) resolve(result upload.Result, err error) {
	a.result, a.err = result, err
	close(a.done)
}

// Seq is the capture count this attempt was assigned; 0 for disabled attempts.
func (a *Attempt) Seq() uint64 {
	return a.seq
}

// Done is closed when the attempt resolves.
func (a *Attempt) Done() <-chan struct{} {
	return a.done
}

// Wait blocks until the attempt resolves or ctx ends.
func (a *Attempt) Wait(ctx context.Context) (upload.Result, error) {
	select {
	case <-a.done:
		return a.result, a.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Result returns the upload result; valid after Done.
func (a *Attempt) Result() upload.Result {
	<-a.done
	return a.result
}

// Err returns the terminal error; valid after Done. A nil error with a nil
// result means the endpoint answered with a non-success status.
func (a *Attempt) Err() error {
	<-a.done
	return a.err
}

package touch

import (
	"bufio"
	"context"
	"io"
)

// ReadLines emits a tap (began, then ended) for every line read from r.
// It returns when r is exhausted, on read error, or when ctx is done.
func ReadLines(ctx context.Context, r io.Reader, h Handler) error {
	scanner := bufio.NewScanner(r)
	id := 0
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		id++
		ev := Tap(id)
		h(ev)
		ev.Phase = Ended
		h(ev)
	}
	return scanner.Err()
}

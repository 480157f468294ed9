package fetch

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Persist downloads every target concurrently and hands each non-empty body to write,
// prefixed with an "# update at <time>" line. Empty downloads are skipped. Write
// failures are logged and do not stop the other targets. It returns how many
// targets were written.
func (f *Fetcher) Persist(ctx context.Context, targets map[string]string, write func(name string, body []byte) error) int {
	f.log.Info("start downloading rule providers", zap.Int("count", len(targets)))
	stamp := []byte("# update at " + f.now().Format("2006-01-02 15:04:05.000000") + "\n")

	var written atomic.Int64
	var g errgroup.Group
	for name, u := range targets {
		g.Go(func() error {
			f.log.Debug("downloading rule provider", zap.String("name", name))
			body := f.Content(ctx, KindProvider, u)
			if len(body) == 0 {
				return nil
			}
			out := make([]byte, 0, len(stamp)+len(body))
			out = append(append(out, stamp...), body...)
			if err := write(name, out); err != nil {
				f.log.Error("write rule provider", zap.String("name", name), zap.Error(err))
				return nil
			}
			written.Add(1)
			return nil
		})
	}
	_ = g.Wait()
	return int(written.Load())
}

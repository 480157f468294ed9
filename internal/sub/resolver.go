// Package sub turns configured subscriptions into proxies and usage counters.
package sub

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Well2333/clashprofile/internal/config"
	"github.com/Well2333/clashprofile/internal/fetch"
	"github.com/Well2333/clashprofile/internal/model"
	"github.com/Well2333/clashprofile/internal/sub/clash"
	"github.com/Well2333/clashprofile/internal/sub/jms"
)

// Fetcher is the part of *fetch.Fetcher the resolver needs.
type Fetcher interface {
	Content(ctx context.Context, kind fetch.Kind, rawURL string) []byte
	Header(ctx context.Context, rawURL, key string) string
}

type Resolver struct {
	fetcher Fetcher
	subs    model.Ordered[config.Subscribe]
	log     *zap.Logger
	now     func() time.Time
}

func NewResolver(f Fetcher, subs model.Ordered[config.Subscribe], log *zap.Logger) *Resolver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Resolver{fetcher: f, subs: subs, log: log.Named("sub"), now: time.Now}
}

// Resolve concatenates the proxies of names in the given order.
func (r *Resolver) Resolve(ctx context.Context, names []string) ([]model.Proxy, error) {
	var out []model.Proxy
	for _, name := range names {
		proxies, err := r.resolveOne(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("subscribe %s: %w", name, err)
		}
		r.log.Debug("subscription resolved", zap.String("subscribe", name), zap.Int("proxies", len(proxies)))
		out = append(out, proxies...)
	}
	return out, nil
}

func (r *Resolver) resolveOne(ctx context.Context, name string) ([]model.Proxy, error) {
	s, ok := r.subs.Get(name)
	if !ok {
		return nil, fmt.Errorf("subscribe %s is not configured", name)
	}
	switch s.Type {
	case config.TypeJMS:
		body := r.fetcher.Content(ctx, fetch.KindSubscription, s.URL)
		if len(body) == 0 {
			r.log.Warn("subscription download returned nothing", zap.String("subscribe", name))
		}
		proxies, skipped, err := jms.Parse(s.URL, body)
		for _, e := range skipped {
			r.log.Debug("skip subscription line", zap.String("subscribe", name), zap.Error(e))
		}
		return proxies, err
	case config.TypeClashSub:
		body := r.fetcher.Content(ctx, fetch.KindSubscription, s.URL)
		if len(body) == 0 {
			r.log.Warn("subscription download returned nothing", zap.String("subscribe", name))
		}
		return clash.Parse(s.URL, body)
	case config.TypeClashFile:
		return clash.ReadFile(s.File)
	default:
		return nil, fmt.Errorf("unsupported subscribe type %q", s.Type)
	}
}

// Counter returns the subscription-userinfo value for a profile's subscriptions. It
// is only defined for exactly one subscription with counter support; otherwise "".
func (r *Resolver) Counter(ctx context.Context, names []string) string {
	if len(names) > 1 {
		r.log.Warn("more than one subscription, counter disabled", zap.Strings("subs", names))
		return ""
	}
	if len(names) == 0 {
		return ""
	}
	s, ok := r.subs.Get(names[0])
	if !ok {
		return ""
	}
	switch s.Type {
	case config.TypeJMS:
		if s.Counter == "" {
			return ""
		}
		body := r.fetcher.Content(ctx, fetch.KindCounter, s.Counter)
		if len(body) == 0 {
			return ""
		}
		info, err := jms.Counter(body, s.SubTZ, r.now())
		if err != nil {
			r.log.Error("decode counter", zap.String("subscribe", names[0]), zap.Error(err))
			return ""
		}
		return info
	case config.TypeClashSub:
		return clash.Counter(r.fetcher.Header(ctx, s.URL, "subscription-userinfo"))
	default:
		return ""
	}
}

// Package updater runs update cycles: every configured profile is resolved,
// rendered and written, then the referenced rule-provider files are mirrored.
package updater

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/Well2333/clashprofile/internal/config"
	"github.com/Well2333/clashprofile/internal/profile"
	"github.com/Well2333/clashprofile/internal/render"
	"github.com/Well2333/clashprofile/internal/store"
	"github.com/Well2333/clashprofile/internal/sub"
)

// ErrBusy is returned when a cycle is requested while another one runs.
var ErrBusy = errors.New("update already running")

// Fetcher downloads subscriptions, counters and rule-provider files.
type Fetcher interface {
	sub.Fetcher
	Persist(ctx context.Context, targets map[string]string, write func(name string, body []byte) error) int
}

// Templates loads validated templates by name.
type Templates interface {
	Load(name string) (*profile.Template, error)
}

// ProfileError wraps the failure of one profile within a cycle.
type ProfileError struct {
	Profile string
	Err     error
}

func (e *ProfileError) Error() string { return fmt.Sprintf("profile %s: %v", e.Profile, e.Err) }

func (e *ProfileError) Unwrap() error { return e.Err }

// Status describes the last finished cycle.
type Status struct {
	Started  time.Time `json:"started"`
	Finished time.Time `json:"finished"`
	Profiles int       `json:"profiles"`
	Failed   []string  `json:"failed,omitempty"`
}

type Updater struct {
	cfg       *config.Config
	fetcher   Fetcher
	resolver  *sub.Resolver
	templates Templates
	layout    store.Layout
	log       *zap.Logger
	now       func() time.Time

	mu sync.Mutex // held for a whole cycle

	statusMu sync.RWMutex
	status   Status
}

func New(cfg *config.Config, f Fetcher, templates Templates, layout store.Layout, log *zap.Logger) *Updater {
	if log == nil {
		log = zap.NewNop()
	}
	return &Updater{
		cfg:       cfg,
		fetcher:   f,
		resolver:  sub.NewResolver(f, cfg.Subscribes, log),
		templates: templates,
		layout:    layout,
		log:       log.Named("updater"),
		now:       time.Now,
	}
}

// Update runs one cycle. Profiles are processed in configuration order and a
// failing profile does not stop the others; their errors are combined. Rule
// providers of the profiles that were written are downloaded at the end.
func (u *Updater) Update(ctx context.Context) error {
	if !u.mu.TryLock() {
		return ErrBusy
	}
	defer u.mu.Unlock()

	started := u.now()
	u.log.Info("update started", zap.Int("profiles", u.cfg.Profiles.Len()))
	cycles.Inc()

	providers := make(map[string]string)
	var (
		errs   error
		failed []string
	)
	for _, name := range u.cfg.Profiles.Keys {
		targets, err := u.updateProfile(ctx, name, u.cfg.Profiles.Values[name])
		if err != nil {
			u.log.Error("profile update failed", zap.String("profile", name), zap.Error(err))
			profileFailures.WithLabelValues(name).Inc()
			failed = append(failed, name)
			errs = multierr.Append(errs, &ProfileError{Profile: name, Err: err})
			continue
		}
		// A file name shared across profiles keeps the URL of the later profile.
		maps.Copy(providers, targets)
		u.log.Info("profile updated", zap.String("profile", name))
	}

	if len(providers) > 0 {
		n := u.fetcher.Persist(ctx, providers, u.layout.WriteProvider)
		u.log.Info("rule providers downloaded", zap.Int("written", n), zap.Int("total", len(providers)))
	}

	finished := u.now()
	cycleDuration.Observe(finished.Sub(started).Seconds())
	if errs == nil {
		lastSuccess.Set(float64(finished.Unix()))
	}
	u.statusMu.Lock()
	u.status = Status{Started: started, Finished: finished, Profiles: u.cfg.Profiles.Len(), Failed: failed}
	u.statusMu.Unlock()

	u.log.Info("update finished", zap.Duration("took", finished.Sub(started)), zap.Int("failed", len(failed)))
	return errs
}

func (u *Updater) updateProfile(ctx context.Context, name string, p config.Profile) (map[string]string, error) {
	proxies, err := u.resolver.Resolve(ctx, p.Subs)
	if err != nil {
		return nil, err
	}
	tpl, err := u.templates.Load(p.Template)
	if err != nil {
		return nil, err
	}
	out, err := render.Render(tpl, proxies)
	if err != nil {
		return nil, err
	}
	targets := render.RewriteProviders(out, u.cfg.ProviderBase())
	body, err := out.Marshal()
	if err != nil {
		return nil, err
	}
	if err := u.layout.WriteProfile(name, body); err != nil {
		return nil, err
	}
	u.log.Debug("profile written", zap.String("profile", name), zap.Int("proxies", len(proxies)), zap.Int("providers", len(targets)))
	return targets, nil
}

// Counter returns the subscription-userinfo value for a profile, or "".
func (u *Updater) Counter(ctx context.Context, profileName string) string {
	p, ok := u.cfg.Profiles.Get(profileName)
	if !ok {
		return ""
	}
	return u.resolver.Counter(ctx, p.Subs)
}

// Status returns the last finished cycle; the zero value before the first one.
func (u *Updater) Status() Status {
	u.statusMu.RLock()
	defer u.statusMu.RUnlock()
	s := u.status
	s.Failed = append([]string(nil), s.Failed...)
	return s
}

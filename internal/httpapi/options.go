package httpapi

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Well2333/clashprofile/internal/store"
	"github.com/Well2333/clashprofile/internal/updater"
)

// Updater is the part of *updater.Updater the HTTP layer drives.
type Updater interface {
	Update(ctx context.Context) error
	Counter(ctx context.Context, profile string) string
	Status() updater.Status
}

// Options wires the handler to its collaborators.
type Options struct {
	// Prefix is the secret path segment every data route lives under; "" serves
	// them at the root.
	Prefix string

	// Headers are added to every profile response.
	Headers map[string]string

	Layout  store.Layout
	Updater Updater
	Logger  *zap.Logger

	// UpdateTimeout bounds a cycle triggered over HTTP.
	UpdateTimeout time.Duration
}

func (o Options) withDefaults() Options {
	o.Prefix = strings.Trim(o.Prefix, "/")
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.UpdateTimeout <= 0 {
		o.UpdateTimeout = 10 * time.Minute
	}
	return o
}

// route joins the prefix and path into a ServeMux pattern path.
func (o Options) route(path string) string {
	if o.Prefix == "" {
		return path
	}
	return "/" + o.Prefix + path
}

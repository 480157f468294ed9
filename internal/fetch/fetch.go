package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/Well2333/clashprofile/internal/model"
)

type Kind int

const (
	KindSubscription Kind = iota
	KindCounter
	KindProvider
)

func (k Kind) stage() string {
	switch k {
	case KindSubscription:
		return "fetch_sub"
	case KindCounter:
		return "fetch_counter"
	case KindProvider:
		return "fetch_provider"
	default:
		return "fetch"
	}
}

func (k Kind) String() string { return k.stage() }

func (k Kind) defaultMaxBytes() int64 {
	switch k {
	case KindSubscription:
		return 5 * 1024 * 1024
	case KindCounter:
		return 64 * 1024
	case KindProvider:
		return 10 * 1024 * 1024
	default:
		return 1 * 1024 * 1024
	}
}

type Options struct {
	Concurrency  int64         // default 4
	Retries      int           // attempts per fetch, default 3
	Timeout      time.Duration // per attempt, default 60s
	MaxBytes     int64         // default per kind
	MaxRedirects int           // default 5

	Client *http.Client // CheckRedirect is replaced; Timeout is ignored
	Logger *zap.Logger
}

type FetchError struct {
	Status   int
	AppError model.AppError
	Cause    error
}

func (e *FetchError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.AppError.Code, e.AppError.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.AppError.Code, e.AppError.Message, e.Cause)
}

func (e *FetchError) Unwrap() error { return e.Cause }

var (
	errTooManyRedirects   = errors.New("too many redirects")
	errRedirectBadScheme  = errors.New("redirect target scheme is not http/https")
	errInvalidURLOrScheme = errors.New("invalid url or scheme")
)

// Fetcher downloads remote resources under a shared concurrency limit. Every caller
// holds one permit for the whole retry sequence of a single URL.
type Fetcher struct {
	sem    *semaphore.Weighted
	client *http.Client
	opt    Options
	log    *zap.Logger
	now    func() time.Time
}

func New(opt Options) *Fetcher {
	if opt.Concurrency <= 0 {
		opt.Concurrency = 4
	}
	if opt.Retries <= 0 {
		opt.Retries = 3
	}
	if opt.Timeout <= 0 {
		opt.Timeout = 60 * time.Second
	}
	if opt.MaxRedirects == 0 {
		opt.MaxRedirects = 5
	}
	if opt.Logger == nil {
		opt.Logger = zap.NewNop()
	}

	var client http.Client
	if opt.Client != nil {
		client = *opt.Client
	}
	if client.Transport == nil {
		client.Transport = http.DefaultTransport
	}
	client.Timeout = 0
	maxRedirects := opt.MaxRedirects
	client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		// 1st redirect => len(via)==1.
		if len(via) > maxRedirects {
			return errTooManyRedirects
		}
		if req.URL.Scheme != "http" && req.URL.Scheme != "https" {
			return errRedirectBadScheme
		}
		return nil
	}

	return &Fetcher{
		sem:    semaphore.NewWeighted(opt.Concurrency),
		client: &client,
		opt:    opt,
		log:    opt.Logger.Named("fetch"),
		now:    time.Now,
	}
}

// Content returns the response body of url, or an empty slice once every attempt
// has failed. Failures are logged, never returned.
func (f *Fetcher) Content(ctx context.Context, kind Kind, rawURL string) []byte {
	body, _, ok := f.retry(ctx, kind, rawURL)
	if !ok {
		return []byte{}
	}
	return body
}

// Header returns the named response header of url, or "" when every attempt failed.
func (f *Fetcher) Header(ctx context.Context, rawURL, key string) string {
	_, hdr, ok := f.retry(ctx, KindSubscription, rawURL)
	if !ok {
		return ""
	}
	return hdr.Get(key)
}

func (f *Fetcher) retry(ctx context.Context, kind Kind, rawURL string) ([]byte, http.Header, bool) {
	if err := f.sem.Acquire(ctx, 1); err != nil {
		f.log.Error("acquire download slot", zap.String("url", rawURL), zap.Error(err))
		return nil, nil, false
	}
	defer f.sem.Release(1)
	inflight.Inc()
	defer inflight.Dec()

	attempt := 0
	for attempt < f.opt.Retries {
		attempt++
		body, hdr, err := f.once(ctx, kind, rawURL)
		if err == nil {
			attemptsTotal.WithLabelValues(kind.String(), "ok").Inc()
			return body, hdr, true
		}
		attemptsTotal.WithLabelValues(kind.String(), resultLabel(err)).Inc()
		f.log.Warn("fetch attempt failed",
			zap.Int("attempt", attempt),
			zap.String("url", rawURL),
			zap.Error(err),
		)
		if ctx.Err() != nil {
			break
		}
	}
	f.log.Error("reached the maximum retries, stop retrying",
		zap.Int("attempt", attempt),
		zap.String("url", rawURL),
	)
	return nil, nil, false
}

func resultLabel(err error) string {
	var fe *FetchError
	if !errors.As(err, &fe) {
		return "error"
	}
	switch fe.AppError.Code {
	case "FETCH_TIMEOUT":
		return "timeout"
	case "TOO_LARGE":
		return "too_large"
	case "INVALID_ARGUMENT":
		return "invalid"
	default:
		return "error"
	}
}

// once performs a single attempt bounded by the per-attempt timeout.
func (f *Fetcher) once(ctx context.Context, kind Kind, rawURL string) ([]byte, http.Header, error) {
	stage := kind.stage()
	maxBytes := f.opt.MaxBytes
	if maxBytes == 0 {
		maxBytes = kind.defaultMaxBytes()
	}

	u, err := url.Parse(rawURL)
	if err != nil || u == nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, nil, &FetchError{
			Status: http.StatusBadRequest,
			AppError: model.AppError{
				Code:    "INVALID_ARGUMENT",
				Message: "仅允许 http/https URL",
				Stage:   stage,
				URL:     rawURL,
			},
			Cause: errors.Join(errInvalidURLOrScheme, err),
		}
	}

	ctx, cancel := context.WithTimeout(ctx, f.opt.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, nil, &FetchError{
			Status: http.StatusBadRequest,
			AppError: model.AppError{
				Code:    "INVALID_ARGUMENT",
				Message: "请求 URL 不合法",
				Stage:   stage,
				URL:     rawURL,
			},
			Cause: err,
		}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}
		return nil, nil, classify(stage, rawURL, err, f.opt.MaxRedirects)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, nil, &FetchError{
			Status: http.StatusBadGateway,
			AppError: model.AppError{
				Code:    "FETCH_FAILED",
				Message: fmt.Sprintf("上游返回非 2xx 状态码：%d", resp.StatusCode),
				Stage:   stage,
				URL:     rawURL,
			},
		}
	}

	// Read at most maxBytes+1 to detect overflow deterministically.
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBytes+1))
	if err != nil {
		if isTimeout(err) {
			return nil, nil, timeoutError(stage, rawURL, err)
		}
		return nil, nil, &FetchError{
			Status: http.StatusBadGateway,
			AppError: model.AppError{
				Code:    "FETCH_FAILED",
				Message: "读取上游响应失败",
				Stage:   stage,
				URL:     rawURL,
			},
			Cause: err,
		}
	}
	if int64(len(body)) > maxBytes {
		return nil, nil, &FetchError{
			Status: http.StatusUnprocessableEntity,
			AppError: model.AppError{
				Code:    "TOO_LARGE",
				Message: fmt.Sprintf("远程资源过大（>%d bytes）", maxBytes),
				Stage:   stage,
				URL:     rawURL,
			},
		}
	}
	return body, resp.Header, nil
}

func classify(stage, rawURL string, err error, maxRedirects int) error {
	if errors.Is(err, errTooManyRedirects) {
		return &FetchError{
			Status: http.StatusBadGateway,
			AppError: model.AppError{
				Code:    "FETCH_FAILED",
				Message: fmt.Sprintf("重定向次数超过上限（>%d）", maxRedirects),
				Stage:   stage,
				URL:     rawURL,
			},
			Cause: err,
		}
	}
	if errors.Is(err, errRedirectBadScheme) {
		return &FetchError{
			Status: http.StatusBadRequest,
			AppError: model.AppError{
				Code:    "INVALID_ARGUMENT",
				Message: "重定向目标仅允许 http/https",
				Stage:   stage,
				URL:     rawURL,
			},
			Cause: err,
		}
	}
	if isTimeout(err) {
		return timeoutError(stage, rawURL, err)
	}
	return &FetchError{
		Status: http.StatusBadGateway,
		AppError: model.AppError{
			Code:    "FETCH_FAILED",
			Message: "拉取远程资源失败",
			Stage:   stage,
			URL:     rawURL,
		},
		Cause: err,
	}
}

// isTimeout sees through *url.Error wrapping.
func isTimeout(err error) bool {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

func timeoutError(stage, rawURL string, err error) *FetchError {
	return &FetchError{
		Status: http.StatusGatewayTimeout,
		AppError: model.AppError{
			Code:    "FETCH_TIMEOUT",
			Message: "拉取远程资源超时",
			Stage:   stage,
			URL:     rawURL,
		},
		Cause: err,
	}
}

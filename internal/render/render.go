// Package render turns a template plus resolved proxies into a validated profile.
package render

import (
	"errors"
	"fmt"
	"maps"

	"github.com/Well2333/clashprofile/internal/model"
	"github.com/Well2333/clashprofile/internal/profile"
)

type RenderError struct {
	AppError model.AppError
	Cause    error
}

func (e *RenderError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.AppError.Code, e.AppError.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.AppError.Code, e.AppError.Message, e.Cause)
}

func (e *RenderError) Unwrap() error { return e.Cause }

// Render builds a profile from tpl. Groups holding the name sentinel receive the
// proxy names in the order given; explicit lists are kept. The template is not
// modified. An invalid result is returned as a *model.ValidationError and no profile.
func Render(tpl *profile.Template, proxies []model.Proxy) (*profile.Profile, error) {
	if tpl == nil {
		return nil, &RenderError{
			AppError: model.AppError{
				Code:    "INVALID_ARGUMENT",
				Message: "render input 不能为空",
				Stage:   "render",
			},
		}
	}

	names := model.ProxyNames(proxies)
	groups := make([]model.ProxyGroup, len(tpl.ProxyGroups))
	for i, g := range tpl.ProxyGroups {
		members := g.Members.Names
		if g.Members.All {
			members = names
		}
		g.Members = model.GroupMembers{Names: append([]string{}, members...)}
		g.Extra = maps.Clone(g.Extra)
		groups[i] = g
	}

	p := &profile.Profile{
		Header:        tpl.Header,
		Proxies:       append(model.ProxyList{}, proxies...),
		ProxyGroups:   groups,
		RuleProviders: tpl.RuleProviders.Clone(),
		Rules:         append([]string{}, tpl.Rules...),
		Extra:         maps.Clone(tpl.Extra),
	}
	if err := p.Validate(); err != nil {
		var ve *model.ValidationError
		if errors.As(err, &ve) {
			ve.AppError.Stage = "render"
			return nil, ve
		}
		return nil, &RenderError{
			AppError: model.AppError{
				Code:    "RENDER_ERROR",
				Message: "渲染结果校验失败",
				Stage:   "render",
			},
			Cause: err,
		}
	}
	return p, nil
}

// Package clash extracts the proxy list of a clash document, fetched remotely or read
// from a local file.
package clash

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Well2333/clashprofile/internal/model"
)

type ParseError struct {
	AppError model.AppError
	Cause    error
}

func (e *ParseError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.AppError.Code, e.AppError.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.AppError.Code, e.AppError.Message, e.Cause)
}

func (e *ParseError) Unwrap() error { return e.Cause }

// Only proxies are read; every other key of the upstream document is ignored.
type document struct {
	Proxies *model.ProxyList `yaml:"proxies"`
}

// Parse decodes content and validates every proxy. Empty content (a failed download)
// yields no proxies and no error.
func Parse(source string, content []byte) ([]model.Proxy, error) {
	if len(bytes.TrimSpace(content)) == 0 {
		return nil, nil
	}

	var doc document
	if err := yaml.Unmarshal(content, &doc); err != nil {
		return nil, &ParseError{
			AppError: model.AppError{
				Code:    "SUB_PARSE_ERROR",
				Message: "clash 订阅 YAML 解析失败",
				Stage:   "parse_sub",
				URL:     source,
				Snippet: truncateSnippet(string(content), 200),
			},
			Cause: err,
		}
	}
	if doc.Proxies == nil {
		return nil, &ParseError{
			AppError: model.AppError{
				Code:    "SUB_PARSE_ERROR",
				Message: "clash 订阅缺少 proxies",
				Stage:   "parse_sub",
				URL:     source,
			},
		}
	}

	var vs []model.Violation
	for i, p := range *doc.Proxies {
		vs = append(vs, model.Nest(fmt.Sprintf("proxies.%d", i), model.Validate(p))...)
	}
	if len(vs) > 0 {
		verr := model.NewValidationError("parse_sub", source, vs)
		return nil, &ParseError{
			AppError: model.AppError{
				Code:    "SUB_PARSE_ERROR",
				Message: "clash 订阅包含不合法的节点",
				Stage:   "parse_sub",
				URL:     source,
				Hint:    vs[0].Field + ": " + vs[0].Message,
			},
			Cause: verr,
		}
	}
	return []model.Proxy(*doc.Proxies), nil
}

// ReadFile parses a local clash document.
func ReadFile(path string) ([]model.Proxy, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, &ParseError{
			AppError: model.AppError{
				Code:    "SUB_READ_ERROR",
				Message: "读取本地订阅文件失败",
				Stage:   "read_sub",
				URL:     path,
			},
			Cause: err,
		}
	}
	if len(bytes.TrimSpace(b)) == 0 {
		return nil, &ParseError{
			AppError: model.AppError{
				Code:    "SUB_PARSE_ERROR",
				Message: "本地订阅文件为空",
				Stage:   "parse_sub",
				URL:     path,
			},
			Cause: errors.New("empty file"),
		}
	}
	return Parse(path, b)
}

// Counter normalizes an upstream subscription-userinfo header value.
func Counter(header string) string {
	parts := strings.Split(header, ";")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		k, v, ok := strings.Cut(p, "=")
		k, v = strings.TrimSpace(k), strings.TrimSpace(v)
		if !ok || k == "" || v == "" {
			continue
		}
		out = append(out, strings.ToLower(k)+"="+v)
	}
	return strings.Join(out, "; ")
}

func truncateSnippet(s string, max int) string {
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.ReplaceAll(s, "\n", "")
	if max <= 0 {
		return ""
	}
	if len(s) <= max {
		return s
	}
	return s[:max]
}

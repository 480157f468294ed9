// Package jms decodes base64 line-list subscriptions (ss:// and vmess:// URIs) and
// their JSON traffic counters.
package jms

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/Well2333/clashprofile/internal/model"
)

const namePrefix = "JMS-"

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

// Parse decodes a subscription body. Lines with an unknown scheme are ignored; lines
// that fail to parse are skipped and returned in skipped. Only an undecodable body is
// an error. An empty body yields no proxies.
func Parse(sourceURL string, content []byte) (proxies []model.Proxy, skipped []error, err error) {
	s := strings.TrimSpace(stripUTF8BOM(string(content)))
	if s == "" {
		return nil, nil, nil
	}

	// Raw URI lists are accepted as-is.
	if !strings.Contains(s, "ss://") && !strings.Contains(s, "vmess://") {
		b, err := decodeLenient(removeSpaceTabCRLF(s))
		if err != nil {
			return nil, nil, newParseError(sourceURL, 0, truncateSnippet(s, 200), "SUB_BASE64_DECODE_ERROR", "订阅 base64 解码失败", err)
		}
		if !utf8.Valid(b) {
			return nil, nil, newParseError(sourceURL, 0, "", "SUB_BASE64_DECODE_ERROR", "订阅解码结果不是合法 UTF-8", nil)
		}
		s = stripUTF8BOM(string(b))
	}

	lines := strings.Split(s, "\n")
	out := make([]model.Proxy, 0, len(lines))
	for i, line := range lines {
		line = strings.TrimSpace(line)
		var (
			p   model.Proxy
			err error
		)
		switch {
		case strings.HasPrefix(line, "ss://"):
			p, err = ParseSS(line)
		case strings.HasPrefix(line, "vmess://"):
			p, err = ParseVMess(line)
		default:
			continue
		}
		if err != nil {
			skipped = append(skipped, newParseError(sourceURL, i+1, truncateSnippet(line, 200), "SUB_PARSE_ERROR", "节点解析失败，已跳过", err))
			continue
		}
		out = append(out, p)
	}
	return out, skipped, nil
}

// ParseSS parses ss://<b64(cipher:password)>@<server>:<port>#<tag>. The legacy
// ss://<b64(cipher:password)>#<tag>@<server>:<port> and
// ss://<b64(cipher:password@server:port)>#<tag> shapes are accepted too.
func ParseSS(line string) (model.Proxy, error) {
	rest := strings.TrimPrefix(strings.TrimSpace(line), "ss://")
	body, frag, _ := strings.Cut(rest, "#")
	body, _, _ = strings.Cut(body, "?")
	if body == "" {
		return nil, errors.New("ss:// 后缺少内容")
	}

	var cred, hostPort string
	if userB64, hp, ok := strings.Cut(body, "@"); ok {
		b, err := decodeLenient(userB64)
		if err != nil {
			return nil, fmt.Errorf("userinfo base64: %w", err)
		}
		cred, hostPort = string(b), strings.TrimSuffix(hp, "/")
	} else if at := strings.LastIndex(frag, "@"); at >= 0 {
		b, err := decodeLenient(body)
		if err != nil {
			return nil, fmt.Errorf("userinfo base64: %w", err)
		}
		cred, _, _ = strings.Cut(string(b), "@")
		hostPort = frag[at+1:]
	} else {
		b, err := decodeLenient(body)
		if err != nil {
			return nil, fmt.Errorf("base64: %w", err)
		}
		decoded := string(b)
		at := strings.LastIndex(decoded, "@")
		if at < 0 {
			return nil, errors.New("缺少 @ 分隔符")
		}
		cred, hostPort = decoded[:at], decoded[at+1:]
	}

	cipher, password, ok := strings.Cut(cred, ":")
	cipher, password = strings.TrimSpace(cipher), strings.TrimSpace(password)
	if !ok || cipher == "" || password == "" {
		return nil, errors.New("缺少 cipher:password")
	}
	server, port, err := parseHostPort(hostPort)
	if err != nil {
		return nil, fmt.Errorf("服务器地址或端口不合法: %w", err)
	}

	p := &model.ShadowSocks{
		ProxyBase: model.ProxyBase{
			Name:   displayName(server),
			Type:   model.TypeShadowSocks,
			Server: server,
			Port:   port,
		},
		Cipher:   cipher,
		Password: password,
		UDP:      true,
	}
	if err := checkProxy(p); err != nil {
		return nil, err
	}
	return p, nil
}

type vmessLink struct {
	PS   string  `json:"ps"`
	Add  string  `json:"add"`
	Port flexInt `json:"port"`
	ID   string  `json:"id"`
	Aid  flexInt `json:"aid"`
	Net  string  `json:"net"`
	Host string  `json:"host"`
	Path string  `json:"path"`
	TLS  string  `json:"tls"`
}

// ParseVMess parses vmess://<b64(JSON)>. Cipher is always "auto" and certificate
// verification is always skipped.
func ParseVMess(line string) (model.Proxy, error) {
	raw := strings.TrimPrefix(strings.TrimSpace(line), "vmess://")
	b, err := decodeLenient(raw)
	if err != nil {
		return nil, fmt.Errorf("base64: %w", err)
	}
	var v vmessLink
	if err := json.Unmarshal(b, &v); err != nil {
		return nil, fmt.Errorf("json: %w", err)
	}

	// ps is "<label>@<host>:<port>"; its host wins over add, which may be an IP.
	var server string
	if _, hp, ok := strings.Cut(v.PS, "@"); ok {
		host, _, _ := strings.Cut(hp, ":")
		server = strings.TrimSpace(host)
	}
	if server == "" {
		server = strings.TrimSpace(v.Add)
	}
	if server == "" {
		return nil, errors.New("缺少服务器地址")
	}

	p := &model.VMess{
		ProxyBase: model.ProxyBase{
			Name:   displayName(server),
			Type:   model.TypeVMess,
			Server: server,
			Port:   int(v.Port),
		},
		UUID:           v.ID,
		AlterID:        int(v.Aid),
		Cipher:         "auto",
		UDP:            true,
		TLS:            v.TLS != "none",
		SkipCertVerify: true,
	}
	if v.Net == "ws" {
		p.Network = "ws"
		opts := map[string]any{}
		if v.Path != "" {
			opts["path"] = v.Path
		}
		if v.Host != "" {
			opts["headers"] = map[string]any{"Host": v.Host}
		}
		if len(opts) > 0 {
			p.WSOpts = opts
		}
	}
	if err := checkProxy(p); err != nil {
		return nil, err
	}
	return p, nil
}

// flexInt accepts both 443 and "443".
type flexInt int

func (n *flexInt) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		*n = 0
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	*n = flexInt(v)
	return nil
}

func displayName(server string) string {
	label, _, _ := strings.Cut(server, ".")
	return namePrefix + label
}

func checkProxy(p model.Proxy) error {
	if vs := model.Validate(p); len(vs) > 0 {
		return model.NewValidationError("parse_sub", "", vs)
	}
	return nil
}

func parseHostPort(s string) (string, int, error) {
	host, portStr, err := net.SplitHostPort(strings.TrimSpace(s))
	if err != nil {
		return "", 0, err
	}
	host = strings.TrimSpace(host)
	if host == "" {
		return "", 0, errors.New("empty host")
	}
	portInt, err := strconv.Atoi(strings.TrimSpace(portStr))
	if err != nil {
		return "", 0, err
	}
	if portInt < 1 || portInt > 65535 {
		return "", 0, errors.New("port out of range")
	}
	return host, portInt, nil
}

// decodeLenient ignores missing or surplus padding, standard alphabet first.
func decodeLenient(s string) ([]byte, error) {
	s = strings.TrimRight(strings.TrimSpace(s), "=")
	var lastErr error
	for _, enc := range []*base64.Encoding{base64.RawStdEncoding, base64.RawURLEncoding} {
		b, err := enc.DecodeString(s)
		if err == nil {
			return b, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

func removeSpaceTabCRLF(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case ' ', '\t', '\r', '\n':
			continue
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

func stripUTF8BOM(s string) string {
	return strings.TrimPrefix(s, "\uFEFF")
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

func newParseError(sourceURL string, lineNo int, snippet, code, message string, cause error) error {
	return &ParseError{
		AppError: model.AppError{
			Code:    code,
			Message: message,
			Stage:   "parse_sub",
			URL:     sourceURL,
			Line:    lineNo,
			Snippet: snippet,
		},
		Cause: cause,
	}
}

package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/Well2333/clashprofile/internal/model"
)

//go:embed config.example.yaml
var exampleConfig []byte

// Subscription kinds.
const (
	TypeJMS       = "jms"       // base64 ss:// / vmess:// list
	TypeClashSub  = "ClashSub"  // remote clash document
	TypeClashFile = "ClashFile" // local clash document
)

// ErrCreated is returned by Load when the config file did not exist and the example
// was written in its place.
var ErrCreated = errors.New("config file created from example, edit it and restart")

type Subscribe struct {
	Type    string `yaml:"type"`
	URL     string `yaml:"url,omitempty"`
	File    string `yaml:"file,omitempty"`
	Counter string `yaml:"counter,omitempty"` // jms usage endpoint
	SubTZ   string `yaml:"subtz,omitempty"`   // zone of the counter's reset day
}

type Profile struct {
	Template string   `yaml:"template"`
	Subs     []string `yaml:"subs"`
}

type Config struct {
	LogLevel string `yaml:"log_level"`
	LogFile  string `yaml:"log_file,omitempty"`

	DownloadSem     int           `yaml:"download_sem"`
	DownloadRetry   int           `yaml:"download_retry"`
	DownloadTimeout time.Duration `yaml:"download_timeout"`
	UpdateCron      string        `yaml:"update_cron"`
	UpdateTZ        string        `yaml:"update_tz"`

	Domain    string            `yaml:"domain"`
	Domian    string            `yaml:"domian,omitempty"` // legacy spelling of domain
	Host      string            `yaml:"host"`
	Port      int               `yaml:"port"`
	URLPrefix string            `yaml:"urlprefix"`
	Headers   map[string]string `yaml:"headers"`

	Subscribes model.Ordered[Subscribe] `yaml:"subscribes"`
	Profiles   model.Ordered[Profile]   `yaml:"profiles"`
}

const (
	defaultDomain = "http://0.0.0.0:46199"
	defaultSubTZ  = "Asia/Shanghai"
)

func Default() *Config {
	return &Config{
		LogLevel:        "INFO",
		DownloadSem:     4,
		DownloadRetry:   3,
		DownloadTimeout: 60 * time.Second,
		UpdateCron:      "35 6 * * *",
		UpdateTZ:        "Asia/Shanghai",
		Domain:          defaultDomain,
		Host:            "0.0.0.0",
		Port:            46199,
		URLPrefix:       "path/to/mess/url",
		Headers:         map[string]string{"profile-update-interval": "24"},
	}
}

// Load reads path over the defaults. A missing file is replaced by the bundled
// example and ErrCreated is returned.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		if dir := filepath.Dir(path); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create config dir: %w", err)
			}
		}
		if err := os.WriteFile(path, exampleConfig, 0o644); err != nil {
			return nil, fmt.Errorf("failed to create config file: %w", err)
		}
		return nil, fmt.Errorf("%s: %w", path, ErrCreated)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a config document and normalizes it.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	cfg.Domain = ""
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	cfg.normalize()
	return cfg, nil
}

func (c *Config) normalize() {
	if c.Domain == "" {
		c.Domain = c.Domian
	}
	if c.Domain == "" {
		c.Domain = defaultDomain
	}
	c.Domain = strings.TrimRight(c.Domain, "/")
	c.Domian = ""
	c.URLPrefix = strings.Trim(c.URLPrefix, "/")
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	for name, s := range c.Subscribes.Values {
		if strings.TrimSpace(s.SubTZ) == "" {
			s.SubTZ = defaultSubTZ
			c.Subscribes.Values[name] = s
		}
	}
}

// ProviderBase is the public URL prefix rule-provider files are served under.
func (c *Config) ProviderBase() string {
	parts := []string{c.Domain}
	if c.URLPrefix != "" {
		parts = append(parts, c.URLPrefix)
	}
	return strings.Join(append(parts, "provider"), "/")
}

// Addr is the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Validate reports every invalid field as a dotted path. templateExists reports
// whether a template name can be loaded.
func (c *Config) Validate(templateExists func(name string) bool) error {
	var vs []model.Violation
	add := func(field, format string, args ...any) {
		vs = append(vs, model.Violation{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if c.Port < 1 || c.Port > 65535 {
		add("port", "端口必须在 1-65535 之间，当前为 %d", c.Port)
	}
	if c.DownloadSem < 1 {
		add("download_sem", "download_sem 必须大于 0")
	}
	if c.DownloadRetry < 1 {
		add("download_retry", "download_retry 必须大于 0")
	}
	if c.DownloadTimeout <= 0 {
		add("download_timeout", "download_timeout 必须大于 0")
	}
	if _, err := cron.ParseStandard(c.UpdateCron); err != nil {
		add("update_cron", "cron 表达式不合法：%v", err)
	}
	if _, err := time.LoadLocation(c.UpdateTZ); err != nil || c.UpdateTZ == "" {
		add("update_tz", "未知时区：%q", c.UpdateTZ)
	}
	if err := checkHTTPURL(c.Domain); err != nil {
		add("domain", "domain 必须是 http/https 绝对地址：%v", err)
	}
	switch c.LogLevel {
	case "debug", "info", "warning", "warn", "error", "critical", "success", "trace":
	default:
		add("log_level", "未知日志级别：%q", c.LogLevel)
	}

	for _, name := range c.Subscribes.Keys {
		s := c.Subscribes.Values[name]
		field := "subscribes." + name
		if !safeName(name) {
			add(field, "名称不能包含路径分隔符")
		}
		switch s.Type {
		case TypeJMS, TypeClashSub:
			if err := checkHTTPURL(s.URL); err != nil {
				add(field+".url", "url 必须是 http/https 绝对地址：%v", err)
			}
		case TypeClashFile:
			if strings.TrimSpace(s.File) == "" {
				add(field+".file", "ClashFile 订阅必须设置 file")
			}
		default:
			add(field+".type", "不支持的订阅类型：%q（仅支持 jms/ClashSub/ClashFile）", s.Type)
		}
		if s.Counter != "" {
			if err := checkHTTPURL(s.Counter); err != nil {
				add(field+".counter", "counter 必须是 http/https 绝对地址：%v", err)
			}
		}
		if s.SubTZ != "" {
			if _, err := time.LoadLocation(s.SubTZ); err != nil {
				add(field+".subtz", "未知时区：%q", s.SubTZ)
			}
		}
	}

	for _, name := range c.Profiles.Keys {
		p := c.Profiles.Values[name]
		field := "profiles." + name
		if !safeName(name) {
			add(field, "名称不能包含路径分隔符")
		}
		if strings.TrimSpace(p.Template) == "" {
			add(field+".template", "template 不能为空")
		} else if templateExists != nil && !templateExists(p.Template) {
			add(field+".template", "模板 %s.yaml 不存在", p.Template)
		}
		for i, sub := range p.Subs {
			if _, ok := c.Subscribes.Get(sub); !ok {
				add(fmt.Sprintf("%s.subs.%d", field, i), "订阅 %s 不存在", sub)
			}
		}
	}

	if len(vs) > 0 {
		return model.NewValidationError("load_config", "", vs)
	}
	return nil
}

// Warnings lists settings that are legal but unusual.
func (c *Config) Warnings() []string {
	var out []string
	if c.Port <= 1023 && c.Port != 80 && c.Port != 443 {
		out = append(out, fmt.Sprintf("port %d is a privileged port, prefer a port above 1023", c.Port))
	}
	for _, name := range c.Profiles.Keys {
		if len(c.Profiles.Values[name].Subs) == 0 {
			out = append(out, fmt.Sprintf("profile %s has no subscriptions", name))
		}
	}
	return out
}

func checkHTTPURL(s string) error {
	u, err := url.Parse(strings.TrimSpace(s))
	if err != nil {
		return err
	}
	if u == nil || !u.IsAbs() {
		return errors.New("url must be absolute")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.New("scheme must be http/https")
	}
	return nil
}

func safeName(name string) bool {
	return name != "" && name != "." && name != ".." && !strings.ContainsAny(name, `/\`)
}

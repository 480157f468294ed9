package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDeriveHealthzURL_FromListenAddr(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"127.0.0.1:46199", "http://127.0.0.1:46199/healthz"},
		{"0.0.0.0:25500", "http://127.0.0.1:25500/healthz"},
		{":25500", "http://127.0.0.1:25500/healthz"},
		{"25500", "http://127.0.0.1:25500/healthz"},
		{"http://127.0.0.1:25500", "http://127.0.0.1:25500/healthz"},
	}
	for _, tt := range tests {
		got, err := deriveHealthzURL(tt.in)
		if err != nil {
			t.Fatalf("deriveHealthzURL(%q) unexpected err: %v", tt.in, err)
		}
		if got != tt.want {
			t.Fatalf("deriveHealthzURL(%q)=%q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRunHealthcheck_OK(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/healthz" {
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	}))
	defer ts.Close()

	if err := runHealthcheck(ts.URL+"/healthz", 200*time.Millisecond); err != nil {
		t.Fatalf("runHealthcheck unexpected err: %v", err)
	}
}

func TestRunHealthcheck_StatusNotOK(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	err := runHealthcheck(ts.URL, 200*time.Millisecond)
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "unexpected status") {
		t.Fatalf("err=%q, want contains %q", err.Error(), "unexpected status")
	}
}


func TestDeriveHealthzURL_Invalid(t *testing.T) {
	for _, in := range []string{"", "a:b:c"} {
		if _, err := deriveHealthzURL(in); err == nil {
			t.Fatalf("deriveHealthzURL(%q) expected error", in)
		}
	}
}

func TestRun_CreatesConfigThenRejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yml")
	dataDir := filepath.Join(dir, "data")

	var stderr bytes.Buffer
	if code := run([]string{"-config", cfgPath, "-data", dataDir}, &stderr); code != 0 {
		t.Fatalf("first run exit=%d stderr=%q", code, stderr.String())
	}
	if _, err := os.Stat(cfgPath); err != nil {
		t.Fatalf("config not created: %v", err)
	}

	bad := "port: 0\nupdate_tz: Mars/Base\nsubscribes: {}\nprofiles:\n  home:\n    template: nope\n    subs: [ghost]\n"
	if err := os.WriteFile(cfgPath, []byte(bad), 0o644); err != nil {
		t.Fatal(err)
	}
	stderr.Reset()
	if code := run([]string{"-config", cfgPath, "-data", dataDir}, &stderr); code != 1 {
		t.Fatalf("invalid config exit=%d, want=1", code)
	}
	out := stderr.String()
	for _, want := range []string{"port: ", "update_tz: ", "profiles.home.template: ", "profiles.home.subs.0: "} {
		if !strings.Contains(out, want) {
			t.Fatalf("stderr missing %q:\n%s", want, out)
		}
	}
	if _, err := os.Stat(filepath.Join(dataDir, "template", "default.yaml")); err != nil {
		t.Fatalf("default template not seeded: %v", err)
	}
}

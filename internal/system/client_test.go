package system

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestCheckConfig_Valid(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/config/core/check_config" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("Authorization = %q", got)
		}
		w.Write([]byte(`{"result":"valid","errors":null}`))
	}))
	defer srv.Close()

	result, err := NewClient(srv.URL, "tok", time.Second).CheckConfig(context.Background())
	if err != nil {
		t.Fatalf("CheckConfig() error = %v", err)
	}
	if !result.Valid || result.Errors != "" {
		t.Errorf("result = %+v", result)
	}
}

func TestCheckConfig_Invalid(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"result":"invalid","errors":"bad yaml in packages/generated_alexa.yaml"}`))
	}))
	defer srv.Close()

	result, err := NewClient(srv.URL, "tok", time.Second).CheckConfig(context.Background())
	if !errors.Is(err, ErrConfigInvalid) {
		t.Fatalf("CheckConfig() = %v, want ErrConfigInvalid", err)
	}
	if result == nil || result.Valid || result.Errors == "" {
		t.Errorf("result = %+v, want invalid with diagnostics", result)
	}
}

func TestRestart(t *testing.T) {
	var called bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/services/homeassistant/restart" {
			called = true
		}
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	if err := NewClient(srv.URL, "tok", time.Second).Restart(context.Background()); err != nil {
		t.Fatalf("Restart() error = %v", err)
	}
	if !called {
		t.Error("restart endpoint not called")
	}
}

func TestPost_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	if err := NewClient(srv.URL, "bad", time.Second).Restart(context.Background()); !errors.Is(err, ErrPlatformUnavailable) {
		t.Errorf("Restart() = %v, want ErrPlatformUnavailable", err)
	}
}

func TestPost_Unreachable(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", "tok", 200*time.Millisecond)
	if _, err := c.CheckConfig(context.Background()); !errors.Is(err, ErrPlatformUnavailable) {
		t.Errorf("CheckConfig() = %v, want ErrPlatformUnavailable", err)
	}
}

package dynamic

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"
	"time"
)

func TestSessionCloseWithoutStart(t *testing.T) {
	s := NewSession(SessionOptions{Headless: true})
	if s.Started() {
		t.Error("session should not start before the first render")
	}
	if err := s.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}
}

func TestSessionRenderAfterClose(t *testing.T) {
	s := NewSession(SessionOptions{Headless: true})
	s.Close()

	_, err := s.Render(t.Context(), RenderRequest{URL: "https://shop.example/"})
	if !errors.Is(err, ErrSessionClosed) {
		t.Errorf("expected ErrSessionClosed, got %v", err)
	}
}

func openSession() Releasable {
	return NewSession(SessionOptions{Headless: true})
}

func TestWithSessionReleases(t *testing.T) {
	var got Releasable
	wantErr := errors.New("boom")

	err := WithSession(t.Context(), openSession, func(b Releasable) error {
		got = b
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Errorf("expected callback error, got %v", err)
	}
	if _, err := got.Render(t.Context(), RenderRequest{}); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("session should be closed after WithSession, got %v", err)
	}
}

func TestWithSessionReleasesOnPanic(t *testing.T) {
	var got Releasable
	func() {
		defer func() { _ = recover() }()
		_ = WithSession(t.Context(), openSession, func(b Releasable) error {
			got = b
			panic("extraction bug")
		})
	}()
	if _, err := got.Render(t.Context(), RenderRequest{}); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("session should be closed after a panic, got %v", err)
	}
}

func TestRenderHonoursContextDuringLaunch(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses a shell script as the browser")
	}
	// A "browser" that never prints its DevTools URL
	hung := filepath.Join(t.TempDir(), "chrome")
	if err := os.WriteFile(hung, []byte("#!/bin/sh\nexec sleep 30\n"), 0o755); err != nil {
		t.Fatal(err)
	}

	s := NewSession(SessionOptions{Headless: true, ChromePath: hung})
	defer s.Close()

	ctx, cancel := context.WithTimeout(t.Context(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := s.Render(ctx, RenderRequest{URL: "https://shop.example/"})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline error, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("launch ignored the deadline, took %v", elapsed)
	}
	if s.Started() {
		t.Error("abandoned launch must not mark the session started")
	}
}

func TestLaunchError(t *testing.T) {
	missing := &exec.Error{Name: "google-chrome", Err: exec.ErrNotFound}
	if err := launchError(missing); !errors.Is(err, ErrBrowserNotFound) {
		t.Errorf("expected ErrBrowserNotFound, got %v", err)
	}
	if err := launchError(errors.New("chrome failed to start")); errors.Is(err, ErrBrowserNotFound) {
		t.Errorf("crash must not read as missing browser, got %v", err)
	}
}

func TestFindChromeConfigured(t *testing.T) {
	if got := FindChrome("/definitely/not/chrome"); got == "/definitely/not/chrome" {
		t.Error("non-executable configured path should be ignored")
	}
}

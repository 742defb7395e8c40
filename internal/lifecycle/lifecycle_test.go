package lifecycle

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestDefaultsAllTrue(t *testing.T) {
	s := New()
	if !s.IsOnline() || !s.IsVisible() || !s.IsLoaded() {
		t.Fatal("expected all flags true by default")
	}
}

func TestApplyTransitions(t *testing.T) {
	s := New()
	s.Apply(Offline)
	s.Apply(NotVisible)
	s.Apply(Unload)
	if s.IsOnline() || s.IsVisible() || s.IsLoaded() {
		t.Fatal("expected all flags false after transitions")
	}
	s.Apply(Online)
	if !s.IsOnline() {
		t.Fatal("expected online after Online message")
	}
}

func TestWaitReturnsOnlyWhenHiddenAndUnloaded(t *testing.T) {
	s := New()
	done := make(chan struct{})
	go func() {
		s.Wait()
		close(done)
	}()

	// Visible but unloaded: should not settle.
	s.Apply(Unload)
	select {
	case <-done:
		t.Fatal("wait returned while still visible")
	case <-time.After(200 * time.Millisecond):
	}

	s.Apply(NotVisible)
	select {
	case <-done:
	case <-time.After(6 * time.Second):
		t.Fatal("wait did not return after settling hidden+unloaded")
	}
}

func TestServeAppDecodesMessage(t *testing.T) {
	s := New()
	req := httptest.NewRequest("POST", "/app", strings.NewReader(`"Offline"`))
	w := httptest.NewRecorder()
	s.ServeApp(w, req)

	if w.Result().StatusCode != 204 {
		t.Fatalf("status = %d", w.Result().StatusCode)
	}
	if s.IsOnline() {
		t.Fatal("expected offline after ServeApp")
	}
}

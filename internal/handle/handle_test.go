package handle

import (
	"strings"
	"testing"
)

func TestCreateResolveRevoke(t *testing.T) {
	r := NewRegistry()
	h := r.Create([]byte("img"), "image/png")

	if !strings.HasPrefix(string(h), "blob:zclover/") {
		t.Errorf("handle: got %q", h)
	}
	data, mime, ok := r.Resolve(h)
	if !ok || string(data) != "img" || mime != "image/png" {
		t.Errorf("resolve: got %q %q %v", data, mime, ok)
	}

	r.Revoke(h)
	if _, _, ok := r.Resolve(h); ok {
		t.Error("revoked handle should not resolve")
	}
	if r.Live() != 0 {
		t.Errorf("live: got %d, want 0", r.Live())
	}

	// double revoke is harmless
	r.Revoke(h)
	r.Revoke("")
}

func TestHandlesAreUnique(t *testing.T) {
	r := NewRegistry()
	a := r.Create(nil, "")
	b := r.Create(nil, "")
	if a == b {
		t.Error("handles should be unique")
	}
}

func TestSlotNeverHoldsTwoLiveHandles(t *testing.T) {
	r := NewRegistry()
	s := NewSlot(r)

	for range 5 {
		s.Replace(r.Create([]byte("x"), "image/png"))
		if r.Live() != 1 {
			t.Fatalf("live after replace: got %d, want 1", r.Live())
		}
	}

	s.Release()
	if r.Live() != 0 {
		t.Errorf("live after release: got %d, want 0", r.Live())
	}
	if !s.Current().IsZero() {
		t.Error("slot should be empty after release")
	}
}

func TestSlotReplaceSameHandleKeepsIt(t *testing.T) {
	r := NewRegistry()
	s := NewSlot(r)
	h := r.Create([]byte("x"), "image/png")

	s.Replace(h)
	s.Replace(h)
	if _, _, ok := r.Resolve(h); !ok {
		t.Error("re-setting the same handle must not revoke it")
	}
}

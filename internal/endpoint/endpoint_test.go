package endpoint

import (
	"strings"
	"testing"
)

func TestURLDefaultBase(t *testing.T) {
	r := New("")
	got := r.URL(GetUserInfo)
	want := "https://clover-network-app-rok7a.ondigitalocean.app/api/user/get-user-info"
	if got != want {
		t.Errorf("url: got %q, want %q", got, want)
	}
}

func TestURLCustomBaseTrimsSlash(t *testing.T) {
	r := New("http://localhost:8080/")
	if got, want := r.URL(Login), "http://localhost:8080/api/authenticate/login-by-email"; got != want {
		t.Errorf("url: got %q, want %q", got, want)
	}
	if got, want := r.URL(ConnectUser), "http://localhost:8080/api/connection/connect-user"; got != want {
		t.Errorf("url: got %q, want %q", got, want)
	}
}

func TestZeroRegistryUsesDefault(t *testing.T) {
	var r Registry
	if !strings.HasPrefix(r.URL(LikeFeed), DefaultBaseURL+"/api/") {
		t.Errorf("zero registry should resolve against default base, got %q", r.URL(LikeFeed))
	}
}

func TestEveryKeyResolves(t *testing.T) {
	r := New("https://example.test")
	seen := make(map[string]Key)
	for _, k := range Keys() {
		u := r.URL(k)
		if !strings.HasPrefix(u, "https://example.test/api/") {
			t.Errorf("%s: unexpected url %q", k, u)
		}
		if DomainOf(k) == "" {
			t.Errorf("%s: no domain", k)
		}
		if other, dup := seen[u]; dup {
			t.Errorf("%s and %s share url %q", k, other, u)
		}
		seen[u] = k
	}
	if len(seen) != 31 {
		t.Errorf("key count: got %d, want 31", len(seen))
	}
}

func TestKeysSortedByDomain(t *testing.T) {
	keys := Keys()
	for i := 1; i < len(keys); i++ {
		if DomainOf(keys[i-1]) > DomainOf(keys[i]) {
			t.Fatalf("keys not grouped by domain at %d: %s before %s", i, keys[i-1], keys[i])
		}
	}
}

func TestUnknownKeyPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("unknown key should panic")
		}
	}()
	New("").URL(Key("nope"))
}

package identity_test

import (
	"testing"

	"github.com/texlify/texlify/domain/identity"
)

func TestKey_NamespacesAreDisjoint(t *testing.T) {
	user := identity.Authenticated("abc")
	anon := identity.Anonymous("abc")

	if user.Key() == anon.Key() {
		t.Fatalf("user and session keys collide: %q", user.Key())
	}
	if user.Key() != "user:abc" {
		t.Fatalf("unexpected user key %q", user.Key())
	}
	if anon.Key() != "anon:abc" {
		t.Fatalf("unexpected session key %q", anon.Key())
	}
}

func TestIsAuthenticated(t *testing.T) {
	if !identity.Authenticated("u1").IsAuthenticated() {
		t.Fatal("authenticated identity not recognized")
	}
	if identity.Anonymous("s1").IsAuthenticated() {
		t.Fatal("anonymous identity reported as authenticated")
	}
}

func TestIsZero(t *testing.T) {
	var zero identity.Identity
	if !zero.IsZero() {
		t.Fatal("zero identity not recognized")
	}
	if identity.Anonymous("s1").IsZero() {
		t.Fatal("anonymous identity reported as zero")
	}
}

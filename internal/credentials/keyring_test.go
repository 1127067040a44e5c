package credentials

import (
	"testing"
)

// Compile-time checks that both keyring implementations satisfy the interface
var (
	_ Keyring = (*MockKeyring)(nil)
	_ Keyring = (*systemKeyring)(nil)
)

// TestMockKeyringRoundTrip verifies basic set/get/delete behavior.
func TestMockKeyringRoundTrip(t *testing.T) {
	ring := NewMockKeyring()

	if _, err := ring.Get("svc", "acct"); err == nil {
		t.Error("expected error for missing entry")
	}

	if err := ring.Set("svc", "acct", "password"); err != nil {
		t.Fatalf("Set error: %v", err)
	}
	got, err := ring.Get("svc", "acct")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if got != "password" {
		t.Errorf("got %q", got)
	}

	if err := ring.Delete("svc", "acct"); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if _, err := ring.Get("svc", "acct"); err == nil {
		t.Error("entry survived Delete")
	}
}

// TestMockKeyringIsolatesAccounts verifies entries do not bleed across
// service or account names.
func TestMockKeyringIsolatesAccounts(t *testing.T) {
	ring := NewMockKeyring()

	if err := ring.Set("svc-a", "acct", "pa"); err != nil {
		t.Fatalf("Set error: %v", err)
	}
	if err := ring.Set("svc-b", "acct", "pb"); err != nil {
		t.Fatalf("Set error: %v", err)
	}

	if got, _ := ring.Get("svc-a", "acct"); got != "pa" {
		t.Errorf("svc-a got %q", got)
	}
	if got, _ := ring.Get("svc-b", "acct"); got != "pb" {
		t.Errorf("svc-b got %q", got)
	}
	if _, err := ring.Get("svc-a", "other"); err == nil {
		t.Error("unexpected hit for unknown account")
	}
}

// TestMockKeyringFailAll verifies the unavailable-keyring simulation.
func TestMockKeyringFailAll(t *testing.T) {
	ring := NewMockKeyring()
	ring.FailAll(true)

	if err := ring.Set("svc", "acct", "p"); err == nil {
		t.Error("Set should fail")
	}
	if _, err := ring.Get("svc", "acct"); err == nil {
		t.Error("Get should fail")
	}
	if err := ring.Delete("svc", "acct"); err == nil {
		t.Error("Delete should fail")
	}

	// Recovery after the keyring comes back
	ring.FailAll(false)
	if err := ring.Set("svc", "acct", "p"); err != nil {
		t.Errorf("Set after recovery: %v", err)
	}
}

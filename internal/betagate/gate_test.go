package betagate

import (
	"errors"
	"testing"
)

func TestValidateAgainstAllowList(t *testing.T) {
	g := New("FOO,BAR", "")

	tests := []struct {
		code string
		want bool
	}{
		{"FOO", true},
		{"bar", true},
		{" Bar ", true},
		{"baz", false},
		{"", false},
		{"FO O", false},
	}
	for _, tt := range tests {
		ok, err := g.Validate(tt.code)
		if err != nil {
			t.Fatalf("Validate(%q): %v", tt.code, err)
		}
		if ok != tt.want {
			t.Errorf("Validate(%q)=%v, want %v", tt.code, ok, tt.want)
		}
	}
}

func TestCaseInsensitiveTrimmedEquivalence(t *testing.T) {
	g := New("ab12", "")
	for _, code := range []string{" ab12 ", "AB12", "Ab12", "ab12"} {
		ok, err := g.Validate(code)
		if err != nil || !ok {
			t.Errorf("Validate(%q)=(%v,%v), want (true,nil)", code, ok, err)
		}
	}
}

func TestMasterCode(t *testing.T) {
	g := New("", "letmein")
	if ok, err := g.Validate("LETMEIN"); err != nil || !ok {
		t.Fatalf("master code should validate, got (%v,%v)", ok, err)
	}
	if ok, _ := g.Validate("other"); ok {
		t.Fatal("non-master code should not validate")
	}

	// Master code works alongside an allow-list.
	g = New("FOO", "master")
	if ok, _ := g.Validate("foo"); !ok {
		t.Fatal("allow-list code should validate")
	}
	if ok, _ := g.Validate("master"); !ok {
		t.Fatal("master code should validate")
	}
}

func TestUnconfiguredGate(t *testing.T) {
	for _, g := range []*Gate{New("", ""), New(" , ,", "  ")} {
		if g.Configured() {
			t.Error("gate should report unconfigured")
		}
		if _, err := g.Validate("anything"); !errors.Is(err, ErrNotConfigured) {
			t.Errorf("Validate err=%v, want ErrNotConfigured", err)
		}
	}
}

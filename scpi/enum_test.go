package scpi

import (
	"errors"
	"testing"
)

func TestEnumMnemonic(t *testing.T) {
	e := NewEnum("source", "INT", "EXT", "CH1", "CH2")

	for i, want := range e.Mnemonics {
		got, err := e.Mnemonic(i)
		if err != nil {
			t.Fatalf("Mnemonic(%d) failed: %v", i, err)
		}
		if got != want {
			t.Errorf("Mnemonic(%d) = %q, want %q", i, got, want)
		}
	}

	for _, i := range []int{-1, 4, 100} {
		if _, err := e.Mnemonic(i); !errors.Is(err, ErrInvalidEnumIndex) {
			t.Errorf("Mnemonic(%d) error = %v, want ErrInvalidEnumIndex", i, err)
		}
	}
}

func TestEnumIndex(t *testing.T) {
	e := NewEnum("slope", "POS", "NEG")

	if i, ok := e.Index("neg"); !ok || i != 1 {
		t.Errorf("Index(neg) = %d, %t", i, ok)
	}
	if _, ok := e.Index("EITHER"); ok {
		t.Error("Index(EITHER) should not match")
	}
	if e.Len() != 2 {
		t.Errorf("Len = %d", e.Len())
	}
}

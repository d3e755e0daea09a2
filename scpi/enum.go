package scpi

import (
	"fmt"
	"strings"
)

// Enum is a closed, ordered set of mnemonics selected by integer index.
type Enum struct {
	Name      string
	Mnemonics []string
}

// NewEnum returns an Enum over the given mnemonics in order.
func NewEnum(name string, mnemonics ...string) Enum {
	return Enum{Name: name, Mnemonics: mnemonics}
}

// Mnemonic returns the mnemonic at index i.
func (e Enum) Mnemonic(i int) (string, error) {
	if i < 0 || i >= len(e.Mnemonics) {
		return "", fmt.Errorf("%w: %s index %d (valid 0-%d)", ErrInvalidEnumIndex, e.Name, i, len(e.Mnemonics)-1)
	}
	return e.Mnemonics[i], nil
}

// Index looks up a mnemonic, ignoring case.
func (e Enum) Index(mnemonic string) (int, bool) {
	for i, m := range e.Mnemonics {
		if strings.EqualFold(m, mnemonic) {
			return i, true
		}
	}
	return -1, false
}

// Len returns the number of mnemonics.
func (e Enum) Len() int { return len(e.Mnemonics) }

package scpi

import "strings"

// Separator chains clauses into one program message.
const Separator = ";:"

// Clause is one mnemonic path with its argument list.
type Clause struct {
	Header string
	Args   []string
}

// NewClause returns a clause with the given header and arguments.
func NewClause(header string, args ...string) Clause {
	return Clause{Header: header, Args: args}
}

// String renders the clause as "HEADER ARG1,ARG2".
func (c Clause) String() string {
	if len(c.Args) == 0 {
		return c.Header
	}
	return c.Header + " " + strings.Join(c.Args, ",")
}

// Message is an ordered sequence of clauses sent as a single write.
type Message []Clause

// String joins the clauses with Separator. Order is preserved.
func (m Message) String() string {
	parts := make([]string, len(m))
	for i, c := range m {
		parts[i] = c.String()
	}
	return strings.Join(parts, Separator)
}

package refactor

import (
	"fmt"

	"github.com/gnolang/tinvert/internal/program"
)

// Conflict is a single reason why an element cannot be inverted safely.
type Conflict struct {
	Element program.Element
	Message string
}

// Conflicts maps elements to conflict descriptions, in insertion order.
type Conflicts struct {
	order    []program.Key
	elements map[program.Key]program.Element
	messages map[program.Key][]string
}

func NewConflicts() *Conflicts {
	return &Conflicts{
		elements: make(map[program.Key]program.Element),
		messages: make(map[program.Key][]string),
	}
}

// Add records msg for e. The same message is recorded once per element.
func (c *Conflicts) Add(e program.Element, msg string) {
	key := program.KeyOf(e)
	if _, ok := c.elements[key]; !ok {
		c.order = append(c.order, key)
		c.elements[key] = e
	}
	for _, m := range c.messages[key] {
		if m == msg {
			return
		}
	}
	c.messages[key] = append(c.messages[key], msg)
}

// Addf is Add with formatting.
func (c *Conflicts) Addf(e program.Element, format string, args ...any) {
	c.Add(e, fmt.Sprintf(format, args...))
}

func (c *Conflicts) IsEmpty() bool { return c == nil || len(c.order) == 0 }

// Len returns the number of messages.
func (c *Conflicts) Len() int {
	if c == nil {
		return 0
	}
	n := 0
	for _, msgs := range c.messages {
		n += len(msgs)
	}
	return n
}

// Has reports whether any conflict is recorded for e.
func (c *Conflicts) Has(e program.Element) bool {
	if c == nil {
		return false
	}
	_, ok := c.elements[program.KeyOf(e)]
	return ok
}

// Messages returns the messages recorded for e.
func (c *Conflicts) Messages(e program.Element) []string {
	if c == nil {
		return nil
	}
	return c.messages[program.KeyOf(e)]
}

// Elements returns the conflicting elements in insertion order.
func (c *Conflicts) Elements() []program.Element {
	if c == nil {
		return nil
	}
	out := make([]program.Element, 0, len(c.order))
	for _, key := range c.order {
		out = append(out, c.elements[key])
	}
	return out
}

// All flattens the report.
func (c *Conflicts) All() []Conflict {
	if c == nil {
		return nil
	}
	var out []Conflict
	for _, key := range c.order {
		for _, msg := range c.messages[key] {
			out = append(out, Conflict{Element: c.elements[key], Message: msg})
		}
	}
	return out
}

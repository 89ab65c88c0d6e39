package refactor

import "github.com/gnolang/tinvert/internal/program"

// ResolveForeign translates an occurrence of named found in a language other
// than ownerLang. The occurrence's own delegate decides whether it is a
// usage; a nil element means it must be skipped.
func ResolveForeign(reg *Registry, named, occurrence program.Element, ownerLang program.Language) (program.Element, Delegate) {
	if occurrence == nil || occurrence.Language().Is(ownerLang) {
		return nil, nil
	}
	d := reg.FindOwner(occurrence)
	if d == nil {
		return nil, nil
	}
	expr := d.ElementToInvert(named, occurrence)
	if expr == nil || !d.Accepts(expr.Language()) {
		return nil, nil
	}
	return expr, d
}

//go:build go1.18

package domain

import (
	"testing"
	"unicode/utf8"
)

// FuzzParsePrincipal checks that parsing never panics and never admits a
// reserved or non-UTF8 principal.
func FuzzParsePrincipal(f *testing.F) {
	f.Add("")
	f.Add("alice")
	f.Add("escrow:marketplace")
	f.Add("'; DROP TABLE roles;--")
	f.Add(string([]byte{0x00, 0x01, 0x02}))

	f.Fuzz(func(t *testing.T, input string) {
		p, err := ParsePrincipal(input)
		if err != nil {
			return
		}
		if p.IsReserved() {
			t.Errorf("reserved principal accepted: %q", input)
		}
		if !utf8.ValidString(input) {
			t.Errorf("non-UTF8 principal accepted: %q", input)
		}
		if _, err := ParsePrincipal(p.String()); err != nil {
			t.Errorf("accepted principal failed round-trip: %v", err)
		}
	})
}

// FuzzParsePropertyID checks that accepted ids always round-trip.
func FuzzParsePropertyID(f *testing.F) {
	f.Add("prop-1")
	f.Add("")
	f.Add("../x")

	f.Fuzz(func(t *testing.T, input string) {
		id, err := ParsePropertyID(input)
		if err != nil {
			return
		}
		if id.String() != input {
			t.Errorf("round-trip changed id: %q -> %q", input, id)
		}
	})
}

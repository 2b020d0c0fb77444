package input

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Edit is the keyboard activity needed to turn one text field value into another.
type Edit struct {
	Backspaces int    // Characters to delete from the end
	Text       string // Characters to type afterwards
}

// IsEmpty reports whether the edit changes nothing.
func (e Edit) IsEmpty() bool {
	return e.Backspaces == 0 && e.Text == ""
}

// TextDelta computes the edit that turns prev into next, assuming the remote
// cursor sits at the end of the text. Both strings are NFC normalized first so
// an IME emitting decomposed characters does not produce spurious deletes.
func TextDelta(prev, next string) Edit {
	p := []rune(norm.NFC.String(prev))
	n := []rune(norm.NFC.String(next))

	common := 0
	for common < len(p) && common < len(n) && p[common] == n[common] {
		common++
	}

	var b strings.Builder
	for _, r := range n[common:] {
		b.WriteRune(r)
	}

	return Edit{
		Backspaces: len(p) - common,
		Text:       b.String(),
	}
}

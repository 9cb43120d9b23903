// Package cipher implementa o "jumble": um deslocamento de César sobre letras
// ASCII que descarta pontuação.
package cipher

import "strings"

const (
	MinShift = 1
	MaxShift = 1000

	alphabet = 26
)

// Transform desloca cada letra ASCII de message em shift posições, com volta
// no alfabeto e preservando maiúsculas/minúsculas.
//
// Fora de [MinShift, MaxShift] (inclusive 0 e negativos) as letras são copiadas
// sem deslocamento. Em qualquer caso, o que não for letra, dígito ou espaço é
// descartado. Dígitos e espaços passam intactos.
func Transform(message string, shift int) string {
	canShift := shift >= MinShift && shift <= MaxShift

	var b strings.Builder
	b.Grow(len(message))

	for _, c := range message {
		switch {
		case isLetter(c):
			if canShift {
				c = shiftLetter(c, shift)
			}
			b.WriteRune(c)
		case c >= '0' && c <= '9', c == ' ':
			b.WriteRune(c)
		}
	}
	return b.String()
}

func isLetter(c rune) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func shiftLetter(c rune, shift int) rune {
	base := 'a'
	if c <= 'Z' {
		base = 'A'
	}
	return base + rune((int(c-base)+shift)%alphabet)
}

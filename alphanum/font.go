package alphanum

import "unicode"

// font maps printable ASCII to 14 segment masks. Bit k drives segment k in
// the HT16K33 backpack numbering: A B C D E F G1 G2 H J K L M N (bit 0 to 13).
// Lowercase letters are folded before lookup so the table only holds the
// uppercase set.
var font = map[rune]uint16{
	' ':  0b0000000000000000,
	'!':  0b0000000000000110,
	'"':  0b0000001000100000,
	'#':  0b0001001011001110,
	'$':  0b0001001011101101,
	'%':  0b0000110000100100,
	'&':  0b0010001101011101,
	'\'': 0b0000010000000000,
	'(':  0b0010010000000000,
	')':  0b0000100100000000,
	'*':  0b0011111111000000,
	'+':  0b0001001011000000,
	',':  0b0000100000000000,
	'-':  0b0000000011000000,
	'.':  0b0000000000000000,
	'/':  0b0000110000000000,
	'0':  0b0000110000111111,
	'1':  0b0000000000000110,
	'2':  0b0000000011011011,
	'3':  0b0000000010001111,
	'4':  0b0000000011100110,
	'5':  0b0010000001101001,
	'6':  0b0000000011111101,
	'7':  0b0000000000000111,
	'8':  0b0000000011111111,
	'9':  0b0000000011101111,
	':':  0b0001001000000000,
	';':  0b0000101000000000,
	'<':  0b0010010000000000,
	'=':  0b0000000011001000,
	'>':  0b0000100100000000,
	'?':  0b0001000010000011,
	'@':  0b0000001010111011,
	'A':  0b0000000011110111,
	'B':  0b0001001010001111,
	'C':  0b0000000000111001,
	'D':  0b0001001000001111,
	'E':  0b0000000011111001,
	'F':  0b0000000001110001,
	'G':  0b0000000010111101,
	'H':  0b0000000011110110,
	'I':  0b0001001000000000,
	'J':  0b0000000000011110,
	'K':  0b0010010001110000,
	'L':  0b0000000000111000,
	'M':  0b0000010100110110,
	'N':  0b0010000100110110,
	'O':  0b0000000000111111,
	'P':  0b0000000011110011,
	'Q':  0b0010000000111111,
	'R':  0b0010000011110011,
	'S':  0b0000000011101101,
	'T':  0b0001001000000001,
	'U':  0b0000000000111110,
	'V':  0b0000110000110000,
	'W':  0b0010100000110110,
	'X':  0b0010110100000000,
	'Y':  0b0001010100000000,
	'Z':  0b0000110000001001,
	'[':  0b0000000000111001,
	'\\': 0b0010000100000000,
	']':  0b0000000000001111,
	'^':  0b0000110000000011,
	'_':  0b0000000000001000,
	'`':  0b0000000100000000,
	'{':  0b0000100101001001,
	'|':  0b0001001000000000,
	'}':  0b0010010010001001,
	'~':  0b0000010100100000,
}

// Glyph returns the segment mask for r. Lowercase letters use their uppercase
// glyph; anything without a glyph is blank.
func Glyph(r rune) uint16 {
	if r >= 'a' && r <= 'z' {
		r = unicode.ToUpper(r)
	}
	return font[r]
}

var glyphRunes = func() map[uint16]rune {
	m := make(map[uint16]rune, len(font))
	add := func(lo, hi rune) {
		for r := lo; r <= hi; r++ {
			g, ok := font[r]
			if _, seen := m[g]; ok && !seen {
				m[g] = r
			}
		}
	}
	// Letters and digits win over punctuation that shares their strokes.
	add('0', '9')
	add('A', 'Z')
	add(' ', '~')
	return m
}()

// Rune is the inverse of Glyph. Masks shared by several characters give the
// letter or digit; masks outside the font report false.
func Rune(mask uint16) (rune, bool) {
	r, ok := glyphRunes[mask&segmentMask]
	return r, ok
}

// SPDX-License-Identifier: MIT
package phonetic

// NoCode is the code produced for an empty word. Two empty codes never
// count as a phonetic match.
const NoCode = "0000"

const codeLength = 4

// digitClass maps a lowercase consonant onto its Soundex digit. Vowels, h
// and w are absent and act as separators.
var digitClass = [26]byte{
	'b' - 'a': '1', 'f' - 'a': '1', 'p' - 'a': '1', 'v' - 'a': '1',
	'c' - 'a': '2', 'g' - 'a': '2', 'j' - 'a': '2', 'k' - 'a': '2',
	'q' - 'a': '2', 's' - 'a': '2', 'x' - 'a': '2', 'y' - 'a': '2',
	'z' - 'a': '2',
	'd' - 'a': '3', 't' - 'a': '3',
	'l' - 'a': '4',
	'm' - 'a': '5', 'n' - 'a': '5',
	'r' - 'a': '6',
}

func classOf(c byte) byte {
	if c < 'a' || c > 'z' {
		return 0
	}
	return digitClass[c-'a']
}

// Soundex encodes a normalized word as a four character code. The first
// letter is kept uppercased, following consonants become digit classes,
// runs of one class collapse and an unmapped letter between two equal
// classes keeps both. Input is normalized first.
//
// This differs from the classic American Soundex (and matchr.Soundex) in
// that y is a consonant of class 2 and h/w separate like vowels.
func Soundex(word string) string {
	word = Normalize(word)
	if word == "" {
		return NoCode
	}

	var code [codeLength]byte
	code[0] = word[0] - 'a' + 'A'
	n := 1

	prev := classOf(word[0])
	if prev == 0 {
		prev = '0'
	}
	for i := 1; i < len(word) && n < codeLength; i++ {
		c := classOf(word[i])
		switch {
		case c == 0:
			prev = '0'
		case c != prev:
			code[n] = c
			n++
			prev = c
		}
	}
	for ; n < codeLength; n++ {
		code[n] = '0'
	}
	return string(code[:])
}

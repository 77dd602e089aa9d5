// SPDX-License-Identifier: MIT
package override

// Seed returns a fresh copy of the built-in interference table, keyed by the
// misheard form. The pairs cover systematic substitutions made by Filipino
// first-language readers of English: p/f and b/v swaps, d for th, vowel
// shifts and regularized past tenses.
func Seed() map[string]string {
	return map[string]string{
		// f → p
		"pader":  "father",
		"pather": "father",
		"fader":  "father",
		"pater":  "father",
		"parm":   "farm",
		"pharm":  "farm",
		"apter":  "after",
		"apther": "after",

		// v → b
		"hab":   "have",
		"habe":  "have",
		"moob":  "move",
		"mob":   "move",
		"mobe":  "move",
		"heaby": "heavy",
		"heby":  "heavy",
		"hebby": "heavy",

		// th → d/t
		"de":     "the",
		"da":     "the",
		"dey":    "they",
		"tey":    "they",
		"wit":    "with",
		"wid":    "with",
		"anoder": "another",
		"anuder": "another",
		"anoter": "another",

		// vowels
		"snel":  "snail",
		"snal":  "snail",
		"wont":  "want",
		"sayd":  "said",
		"sayed": "said",

		// dropped final consonants
		"tol": "told",
		"wan": "want",
		"lef": "left",

		// tense
		"eat":   "ate",
		"eated": "eaten",
		"tryed": "tried",

		// spelling pronunciations
		"litle":     "little",
		"litol":     "little",
		"liddle":    "little",
		"enormus":   "enormous",
		"enourmous": "enormous",
		"gras":      "grass",
		"gress":     "grass",
	}
}

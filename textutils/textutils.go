// Package textutils provides small string/rune constants shared across the
// toolkit so call sites avoid scattering string and rune literals.
package textutils

const (
	EmptyStr      = ""
	WhiteSpaceStr = " "
	ColonStr      = ":"
	SemiColonStr  = ";"
	EqualStr      = "="
	PeriodStr     = "."
	ForwardSlashStr = "/"
	CloseBraceStr = "}"
	NewLineString = "\n"
)

const (
	ColonChar       rune = ':'
	EqualChar       rune = '='
	HashChar        rune = '#'
	DollarChar      rune = '$'
	BackSlashChar   rune = '\\'
	ForwardSlashChar rune = '/'
	OpenBraceChar   rune = '{'
	CloseBraceChar  rune = '}'
	AUpperChar      rune = 'A'
	ZUpperChar      rune = 'Z'
	ALowerChar      rune = 'a'
	ZLowerChar      rune = 'z'
)

package voice

import "strings"

// minDigits is the shortest destination accepted before any network call.
const minDigits = 10

// NormalizeNumber reduces a raw destination to an E.164-like form: digits
// only, leading "+". Formatting characters (spaces, dashes, parentheses,
// dots) are stripped; anything else, or too few digits, is rejected.
func NormalizeNumber(raw string) (string, error) {
	var digits strings.Builder
	for _, r := range strings.TrimSpace(raw) {
		switch {
		case r >= '0' && r <= '9':
			digits.WriteRune(r)
		case r == '+' || r == ' ' || r == '-' || r == '(' || r == ')' || r == '.':
			// formatting, ignored
		default:
			return "", ErrInvalidNumber
		}
	}
	if digits.Len() < minDigits {
		return "", ErrInvalidNumber
	}
	return "+" + digits.String(), nil
}

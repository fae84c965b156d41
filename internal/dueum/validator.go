package dueum

import "unicode/utf8"

// Result is the outcome of a chain-continuation check. Advisory only;
// the server's verdict on a submitted word always wins.
type Result struct {
	Valid        bool
	MatchedChars []rune
	Message      string
}

const (
	msgEmptyWord     = "단어를 입력하세요."
	msgEmptyRequired = "이어야 할 글자가 없습니다."
	msgMismatch      = "끝말이 맞지 않습니다."
)

// Applicable reports whether the first character of word participates in
// the initial-sound rule at all.
func Applicable(word string) bool {
	first, size := utf8.DecodeRuneInString(word)
	if size == 0 || first == utf8.RuneError {
		return false
	}
	_, ok := alternatives[first]
	return ok
}

// CheckValidity decides whether word may legally continue a chain whose
// next word must lead with required. Valid when the first character
// matches directly, is an alternative of required (either direction), or
// the two alternative sets intersect. Never panics on empty input.
func CheckValidity(word string, required rune) Result {
	first, size := utf8.DecodeRuneInString(word)
	if size == 0 || first == utf8.RuneError {
		return Result{Message: msgEmptyWord}
	}
	if required == 0 {
		return Result{Message: msgEmptyRequired}
	}
	if first == required {
		return Result{Valid: true, MatchedChars: []rune{required}}
	}
	if hasAlternative(required, first) || hasAlternative(first, required) {
		return Result{Valid: true, MatchedChars: []rune{required, first}}
	}
	if alternativesIntersect(first, required) {
		return Result{Valid: true, MatchedChars: []rune{required, first}}
	}
	return Result{Message: msgMismatch}
}

// Variants substitutes the first character of word with each of its
// alternatives, for building dictionary search candidates. The original
// word is not included.
func Variants(word string) []string {
	first, size := utf8.DecodeRuneInString(word)
	if size == 0 || first == utf8.RuneError {
		return nil
	}
	alts := Alternatives(first)
	if len(alts) == 0 {
		return nil
	}
	rest := word[size:]
	out := make([]string, 0, len(alts))
	for _, alt := range alts {
		out = append(out, string(alt)+rest)
	}
	return out
}

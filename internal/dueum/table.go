package dueum

// 두음법칙 변환 표. forward는 표준 국어 두음 규칙의 "어두에서 바뀌는" 방향을
// 담고, 역방향은 init에서 자동 유도한다 (라→나 이면 나의 대안에 라 포함).
var forward = map[rune][]rune{
	// ㄹ → ㄴ (한자어 어두의 ㄹ이 ㄴ으로)
	'라': {'나'},
	'락': {'낙'},
	'란': {'난'},
	'람': {'남'},
	'랑': {'낭'},
	'래': {'내'},
	'랭': {'냉'},
	'로': {'노'},
	'록': {'녹'},
	'론': {'논'},
	'롱': {'농'},
	'뢰': {'뇌'},
	'루': {'누'},
	'름': {'늠'},
	'릉': {'능'},
	// ㄹ → ㅇ (ㄹ 뒤에 ㅣ나 반모음이 오는 경우)
	'랴': {'야'},
	'략': {'약'},
	'량': {'양'},
	'려': {'여'},
	'력': {'역'},
	'련': {'연'},
	'렬': {'열'},
	'렴': {'염'},
	'렵': {'엽'},
	'령': {'영'},
	'례': {'예'},
	'료': {'요'},
	'룡': {'용'},
	'류': {'유'},
	'륙': {'육'},
	'륜': {'윤'},
	'률': {'율'},
	'륭': {'융'},
	'리': {'이'},
	'린': {'인'},
	'림': {'임'},
	'립': {'입'},
	// ㄴ → ㅇ (ㄴ 뒤에 ㅣ나 반모음이 오는 경우)
	'녀': {'여'},
	'녁': {'역'},
	'년': {'연'},
	'념': {'염'},
	'녕': {'영'},
	'뇨': {'요'},
	'뉴': {'유'},
	'니': {'이'},
	'닉': {'익'},
	'닐': {'일'},
}

// alternatives holds the symmetric closure of forward: both directions,
// built once at package init and immutable afterwards.
var alternatives map[rune]map[rune]struct{}

func init() {
	alternatives = make(map[rune]map[rune]struct{}, len(forward)*2)
	add := func(from, to rune) {
		set, ok := alternatives[from]
		if !ok {
			set = make(map[rune]struct{})
			alternatives[from] = set
		}
		set[to] = struct{}{}
	}
	for from, tos := range forward {
		for _, to := range tos {
			add(from, to)
			add(to, from)
		}
	}
}

// Alternatives returns every syllable interchangeable with ch under the
// initial-sound rule. The returned slice is a copy; callers may mutate it.
func Alternatives(ch rune) []rune {
	set, ok := alternatives[ch]
	if !ok {
		return nil
	}
	out := make([]rune, 0, len(set))
	for alt := range set {
		out = append(out, alt)
	}
	return out
}

func hasAlternative(ch, alt rune) bool {
	set, ok := alternatives[ch]
	if !ok {
		return false
	}
	_, ok = set[alt]
	return ok
}

// alternativesIntersect reports whether the alternative sets of a and b
// share at least one syllable. Single hop only; the table is not chased
// recursively.
func alternativesIntersect(a, b rune) bool {
	sa, ok := alternatives[a]
	if !ok {
		return false
	}
	sb, ok := alternatives[b]
	if !ok {
		return false
	}
	for ch := range sa {
		if _, ok := sb[ch]; ok {
			return true
		}
	}
	return false
}

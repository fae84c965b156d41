package session

import (
	"strings"
	"unicode/utf8"

	"github.com/park285/kkeutmal-client/internal/dueum"
)

// Precheck is the advisory client-side verdict on a word before it is
// sent. The server's word_submission_failed always wins over this.
type Precheck struct {
	OK      bool
	Message string
}

const (
	msgEmptyWord = "단어를 입력하세요."
	msgTooShort  = "단어는 최소 2자 이상이어야 합니다."
	msgNotKorean = "한글 단어만 제출할 수 있습니다."
	msgDuplicate = "이미 사용된 단어입니다."
)

// ValidateWord runs the local pre-submit guard against the current
// snapshot, saving a round trip for obviously invalid words.
func (f *Facade) ValidateWord(word string) Precheck {
	return PrecheckWord(word, f.Snapshot())
}

// PrecheckWord is the pure form of the pre-submit guard.
func PrecheckWord(word string, snap Snapshot) Precheck {
	word = strings.TrimSpace(word)
	if word == "" {
		return Precheck{Message: msgEmptyWord}
	}
	if utf8.RuneCountInString(word) < 2 {
		return Precheck{Message: msgTooShort}
	}
	for _, r := range word {
		if r < 0xAC00 || r > 0xD7A3 {
			return Precheck{Message: msgNotKorean}
		}
	}
	for _, entry := range snap.WordChain {
		if entry.Word == word {
			return Precheck{Message: msgDuplicate}
		}
	}
	if snap.RequiredLeadChar != "" {
		required, _ := utf8.DecodeRuneInString(snap.RequiredLeadChar)
		if res := dueum.CheckValidity(word, required); !res.Valid {
			return Precheck{Message: res.Message}
		}
	}
	return Precheck{OK: true}
}

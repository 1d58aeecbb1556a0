package filter

import (
	"regexp"
	"strings"
	"time"

	"gewebridge/pkg/message"
)

// DefaultMaxAge is how old a message may be before it is dropped as history.
const DefaultMaxAge = 5 * time.Minute

var (
	// atUserListAll matches an at-user list that is empty or names "all".
	atUserListAll = regexp.MustCompile(`(?i)<atuserlist>(\s*|.*?all.*?)</atuserlist>`)
	// contentAtAll matches "@所有人" with optional blank or invisible spacing.
	contentAtAll = regexp.MustCompile(`@[\s\x{a0}\x{2000}-\x{200F}\x{3000}]*所有[\s\x{a0}\x{2000}-\x{200F}\x{3000}]*人`)
)

// Evaluate applies the drop rules in priority order and returns the first
// match. It never fails: absent optional fields behave as empty strings.
func Evaluate(m *message.Message, now time.Time) Verdict {
	return evaluate(m, now, DefaultMaxAge)
}

func evaluate(m *message.Message, now time.Time, maxAge time.Duration) Verdict {
	if m == nil {
		m = &message.Message{}
	}

	switch {
	case m.ContentType == message.ContentStatusSync:
		return DropStatusSync
	case m.ContentType == message.ContentNonUser:
		return DropNonUser
	case m.IsSelfEcho:
		return DropSelfEcho
	case m.IsGroup && IsAtAll(m.RawSourceMetadata, m.RawContentMarkup):
		return DropAtAll
	case m.CreateTime < now.Add(-maxAge).Unix():
		return DropExpired
	}
	return Forward
}

// IsAtAll reports whether a group message mentions everyone, either through
// the msgsource at-user list or through the literal text mention.
func IsAtAll(source, markup string) bool {
	if atUserListAll.MatchString(source) {
		return true
	}
	if strings.Contains(strings.ToLower(source), "@all") {
		return true
	}
	return contentAtAll.MatchString(markup)
}

// Package reqid encodes and decodes host escalation request identifiers.
//
// An identifier carries its creation time plus a random discriminator, so a
// host reply can be correlated back to the waiting request even when the
// notification channel has mangled the text. Format version 1 is
//
//	req_<13-digit unix milliseconds>_<9-char base36 random>
//
// Some channels render underscores as formatting and strip them, so Decode
// also accepts the collapsed form req<13 digits><9 chars> and restores the
// canonical spelling.
package reqid

import (
	"fmt"
	"math/rand/v2"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	prefix    = "req"
	tsDigits  = 13
	randChars = 9
	alphabet  = "0123456789abcdefghijklmnopqrstuvwxyz"
)

// markerPrefix labels the identifier line embedded in a notification.
const markerPrefix = "\U0001F517 ID: "

var (
	idPattern    = regexp.MustCompile(`req_?([0-9]{13})_?([a-z0-9]{9})`)
	stripPattern = regexp.MustCompile(`(?:` + regexp.QuoteMeta(markerPrefix) + `)?req_?[0-9]{13}_?[a-z0-9]{9}`)
)

// New returns a fresh identifier stamped with the given time.
func New(now time.Time) string {
	buf := make([]byte, randChars)
	for i := range buf {
		buf[i] = alphabet[rand.IntN(len(alphabet))]
	}
	return fmt.Sprintf("%s_%013d_%s", prefix, now.UnixMilli(), buf)
}

// Marker returns the identifier line to embed in an outbound notification.
// HandleReply scans quoted text for this line's identifier.
func Marker(id string) string {
	return markerPrefix + id
}

// Decode extracts the first request identifier found in text, restoring the
// canonical underscore form. It returns false when no identifier is present.
func Decode(text string) (string, bool) {
	m := idPattern.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return fmt.Sprintf("%s_%s_%s", prefix, m[1], m[2]), true
}

// Strip removes every identifier and marker line from host reply text, so
// the correlation plumbing never reaches a guest. Both the canonical and the
// collapsed spellings are removed.
func Strip(text string) string {
	return strings.TrimSpace(stripPattern.ReplaceAllString(text, ""))
}

// Timestamp returns the creation time embedded in a canonical identifier.
func Timestamp(id string) (time.Time, bool) {
	m := idPattern.FindStringSubmatch(id)
	if m == nil {
		return time.Time{}, false
	}
	ms, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.UnixMilli(ms), true
}

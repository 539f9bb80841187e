package billing

import (
	"strconv"
	"strings"
	"time"
)

const referenceDelimiter = ":"

// EncodeReference builds the correlation token round-tripped through the
// payment providers: userId:planId:epochMillis. userId and planId are
// provider-issued identifiers from a restricted character set, so they never
// contain the delimiter themselves.
func EncodeReference(userID, planID string, now time.Time) string {
	return strings.Join([]string{
		userID,
		planID,
		strconv.FormatInt(now.UnixMilli(), 10),
	}, referenceDelimiter)
}

// DecodeReference parses a reference back into (userId, planId). Decoding is
// deliberately lossy: providers may truncate or re-encode the token, so any
// token with two non-empty leading fields is accepted and the timestamp is
// ignored entirely.
func DecodeReference(token string) (userID, planID string, ok bool) {
	parts := strings.Split(token, referenceDelimiter)
	if len(parts) < 2 {
		return "", "", false
	}
	userID = strings.TrimSpace(parts[0])
	planID = strings.TrimSpace(parts[1])
	if userID == "" || planID == "" {
		return "", "", false
	}
	return userID, planID, true
}

package utils

// bytesPerToken approximates how much serialized JSON one model token covers.
const bytesPerToken = 4

// PayloadTokenWarn is the estimated size above which an insights payload is
// likely to exceed the remote model's context window.
const PayloadTokenWarn = 64000

// EstimateTokens gives a rough token count for a payload; any non-empty
// payload counts as at least one token.
func EstimateTokens(b []byte) int {
	if len(b) == 0 {
		return 0
	}
	return max(len(b)/bytesPerToken, 1)
}

// OversizedPayload reports whether b is likely too large for one request.
func OversizedPayload(b []byte) (int, bool) {
	n := EstimateTokens(b)
	return n, n > PayloadTokenWarn
}

package registration

import "strings"

// Outcome classifies the raw response text of a registration submission.
type Outcome string

// Submission outcomes.
const (
	OutcomeSuccess         Outcome = "success"
	OutcomeSessionFull     Outcome = "session_full"
	OutcomeCaptchaRejected Outcome = "captcha_rejected"
	OutcomeOtherFailure    Outcome = "other_failure"
)

// successMarker is the literal token the form embeds in a successful
// submission response. Part of the site contract, not ours to normalize.
const successMarker = "!!!True|~~|"

// sessionFullMarkers are the known "session is at capacity" phrases, matched
// case-insensitively. The site answers in Vietnamese with inconsistent
// diacritics, so both spellings are listed.
var sessionFullMarkers = []string{
	"đã đủ số lượng",
	"da du so luong",
	"hết chỗ",
	"het cho",
	"full",
}

// Classify maps a raw submit response to an Outcome. Ordering matters: the
// success marker wins outright, capacity phrases beat the captcha check, and
// anything unrecognized is a terminal OtherFailure so the attempt loop never
// hammers an endpoint returning an unknown error.
func Classify(response string) Outcome {
	if strings.Contains(response, successMarker) {
		return OutcomeSuccess
	}
	lower := strings.ToLower(response)
	for _, marker := range sessionFullMarkers {
		if strings.Contains(lower, marker) {
			return OutcomeSessionFull
		}
	}
	if strings.Contains(lower, "captcha") {
		return OutcomeCaptchaRejected
	}
	return OutcomeOtherFailure
}

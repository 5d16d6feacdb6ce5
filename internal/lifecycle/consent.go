package lifecycle

import (
	"regexp"
	"strings"
)

// Verdict is the tri-state outcome of consent classification. Ambiguous text
// never triggers a transition: optimization only runs on an unambiguous
// affirmative match.
type Verdict int

const (
	VerdictAmbiguous Verdict = iota
	VerdictConsent
	VerdictDecline
)

func (v Verdict) String() string {
	switch v {
	case VerdictConsent:
		return "consent"
	case VerdictDecline:
		return "decline"
	default:
		return "ambiguous"
	}
}

// maxShortRefusalLen bounds the standalone-refusal rule: a bare "no" or
// "not now" while a prompt is pending counts as a decline even without an
// optimization term, but only for short messages where nothing else could
// be the subject.
const maxShortRefusalLen = 40

var (
	affirmativeRe  = regexp.MustCompile(`\b(yes|yeah|yep|sure|ok|okay|go ahead|please do|do it|sounds good)\b`)
	optimizeVerbRe = regexp.MustCompile(`\b(optimi[sz]e|compact|clean\s*up|tidy|trim|prune|archive)\b`)
	memoryObjectRe = regexp.MustCompile(`\b(memory|memories|notes?|files?|docs?|documents?)\b`)
	losslessRe     = regexp.MustCompile(`\b(without losing|without deleting|don'?t lose|do not lose|keep everything|loss-?less|no data loss)\b`)
	negationRe     = regexp.MustCompile(`\b(no|nope|not|don'?t|do not|stop|skip|later|hold off|leave it)\b`)
)

// ClassifyConsent inspects a user message while a maintenance prompt is
// pending. Consent requires affirmative language combined with either an
// optimization verb applied to a memory object, or an explicit losslessness
// qualifier. Decline requires negation language combined with an
// optimization or memory term, or a short standalone refusal.
func ClassifyConsent(text string) Verdict {
	t := strings.ToLower(strings.TrimSpace(text))
	if t == "" {
		return VerdictAmbiguous
	}

	affirmative := affirmativeRe.MatchString(t)
	lossless := losslessRe.MatchString(t)
	// Losslessness phrasing ("don't lose anything") contains negation words
	// but signals consent, so it is removed before the negation test.
	negation := negationRe.MatchString(losslessRe.ReplaceAllString(t, " "))

	if affirmative && !negation {
		if (optimizeVerbRe.MatchString(t) && memoryObjectRe.MatchString(t)) || lossless {
			return VerdictConsent
		}
	}
	if negation {
		if optimizeVerbRe.MatchString(t) || memoryObjectRe.MatchString(t) {
			return VerdictDecline
		}
		if !affirmative && len(t) <= maxShortRefusalLen {
			return VerdictDecline
		}
	}
	return VerdictAmbiguous
}

package planner

import (
	"github.com/JonMunkholm/tablefix/internal/transform"
)

// AUPhoneCandidate rewrites Australian numbers written with a 0 or 61 prefix
// into +61 form.
func AUPhoneCandidate() transform.CandidatePlan {
	return transform.CandidatePlan{
		Intent:      transform.IntentNormalize,
		Pattern:     `(?:\+?61|0)([2-478])(\d{7,8})`,
		Format:      transform.Ptr("+61$1$2"),
		Explanation: "Convert AU numbers to +61 format",
	}
}

// Calendar checks used as lookaheads by the date steps, so text that only
// looks like a date (12/31/2024, 31/02/2024, 99/99/2024) is left alone.
const (
	sep      = `[-/.]`
	leapYear = `(?:\d\d(?:0[48]|[2468][048]|[13579][26])|(?:[02468][048]|[13579][26])00)`

	// validDayFirst accepts D/M/YYYY with one or two digit day and month.
	validDayFirst = `(?=(?:` +
		`(?:0?[1-9]|1\d|2[0-8])` + sep + `(?:0?[1-9]|1[0-2])` +
		`|(?:29|30)` + sep + `(?:0?[13-9]|1[0-2])` +
		`|31` + sep + `(?:0?[13578]|1[02])` +
		`)` + sep + `\d{4}\b` +
		`|29` + sep + `0?2` + sep + leapYear + `\b)`

	// validISO accepts YYYY/MM/DD and YYYY.MM.DD.
	validISO = `(?=\d{4}[/.](?:` +
		`(?:0[1-9]|1[0-2])[/.](?:0[1-9]|1\d|2[0-8])` +
		`|(?:0[13-9]|1[0-2])[/.](?:29|30)` +
		`|(?:0[13578]|1[02])[/.]31` +
		`)\b|` + leapYear + `[/.]02[/.]29\b)`
)

// ISODateCandidates rewrite day-first dates and dotted or slashed ISO dates
// to YYYY-MM-DD. They are meant to be applied one after another; single digit
// days and months are zero-padded by dedicated steps. The output of an
// earlier step never matches a later one. Day and month combinations that do
// not exist on the calendar are not rewritten.
func ISODateCandidates() []transform.CandidatePlan {
	step := func(pattern, format string) transform.CandidatePlan {
		return transform.CandidatePlan{
			Intent:      transform.IntentNormalize,
			Pattern:     pattern,
			Format:      transform.Ptr(format),
			Explanation: "Standardize dates to YYYY-MM-DD",
		}
	}
	return []transform.CandidatePlan{
		step(`\b`+validDayFirst+`(\d{2})[-/.](\d{2})[-/.](\d{4})\b`, "$3-$2-$1"),
		step(`\b`+validDayFirst+`(\d)[-/.](\d{2})[-/.](\d{4})\b`, "$3-$2-0$1"),
		step(`\b`+validDayFirst+`(\d{2})[-/.](\d)[-/.](\d{4})\b`, "$3-0$2-$1"),
		step(`\b`+validDayFirst+`(\d)[-/.](\d)[-/.](\d{4})\b`, "$3-0$2-0$1"),
		step(`\b`+validISO+`(\d{4})[/.](\d{2})[/.](\d{2})\b`, "$1-$2-$3"),
	}
}

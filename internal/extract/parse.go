package extract

import (
	"path/filepath"
	"strconv"
	"strings"
)

// cleanText trims whitespace; empty stays empty rather than erroring, since
// absent fields are routine in bulk feeds.
func cleanText(s string) string {
	return strings.TrimSpace(s)
}

// cleanDate reduces feed timestamps like "2001-03-25+00:00" or
// "2001-03-25T00:00:00" to a plain YYYY-MM-DD.
func cleanDate(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if i := strings.IndexByte(s, '+'); i >= 0 {
		s = s[:i]
	}
	if i := strings.IndexByte(s, 'T'); i >= 0 {
		s = s[:i]
	}
	return s
}

// parseSeconds converts "MM:SS.ss" or "SS.ss" to decimal seconds.
func parseSeconds(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if i := strings.IndexByte(s, ':'); i >= 0 {
		minutes, err1 := strconv.ParseFloat(s[:i], 64)
		seconds, err2 := strconv.ParseFloat(s[i+1:], 64)
		if err1 != nil || err2 != nil {
			return nil
		}
		total := minutes*60 + seconds
		return &total
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &f
}

// parseNumeric parses a float, tolerating "$", thousands separators and N/A.
func parseNumeric(s string) *float64 {
	cleaned := strings.TrimSpace(strings.ReplaceAll(strings.ReplaceAll(s, ",", ""), "$", ""))
	if cleaned == "" || cleaned == "N/A" {
		return nil
	}
	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return nil
	}
	return &f
}

// parseOdds converts fractional odds like "20/1" to a decimal quotient, or
// parses a plain decimal.
func parseOdds(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if i := strings.IndexByte(s, '/'); i >= 0 {
		num, err1 := strconv.ParseFloat(strings.TrimSpace(s[:i]), 64)
		den, err2 := strconv.ParseFloat(strings.TrimSpace(s[i+1:]), 64)
		if err1 != nil || err2 != nil || den == 0 {
			return nil
		}
		q := num / den
		return &q
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &f
}

// parseIntClean parses an integer after stripping "$" and separators.
// Fractional text (odds-like "20/1") yields nil.
func parseIntClean(s string) *int {
	cleaned := strings.TrimSpace(strings.ReplaceAll(strings.ReplaceAll(s, ",", ""), "$", ""))
	if cleaned == "" || strings.ContainsRune(cleaned, '/') {
		return nil
	}
	if f, err := strconv.ParseFloat(cleaned, 64); err == nil {
		n := int(f)
		return &n
	}
	return nil
}

// fallbackRaceDate is used when a filename carries no parseable date; it
// matches the upstream feed's earliest delivery date.
const fallbackRaceDate = "2023-01-01"

// raceContext derives the track code and race date from a pre-race document
// name. The feed names files like SIMD20230101AQU_USA.xml: date at positions
// 4..11 (YYYYMMDD) and track code at 12..14. Zip member names keep only the
// member part.
func raceContext(docName string) (trackCode, raceDate string) {
	base := filepath.Base(docName)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if i := strings.LastIndexByte(base, ':'); i >= 0 {
		base = base[i+1:]
	}

	trackCode = "UNK"
	var dateDigits string

	if i := strings.IndexByte(base, '_'); i >= 0 {
		head := base[:i]
		if len(base) >= 15 && len(head) >= 12 {
			dateDigits = head[4:12]
			trackCode = base[12:15]
		}
	} else if len(base) >= 15 {
		dateDigits = base[4:12]
		trackCode = base[12:15]
	}

	if len(dateDigits) == 8 && allDigits(dateDigits) {
		raceDate = dateDigits[:4] + "-" + dateDigits[4:6] + "-" + dateDigits[6:8]
	} else {
		raceDate = fallbackRaceDate
	}
	return trackCode, raceDate
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// raceYear pulls the year out of a YYYY-MM-DD race date.
func raceYear(raceDate string) *int {
	if len(raceDate) < 4 {
		return nil
	}
	y, err := strconv.Atoi(raceDate[:4])
	if err != nil {
		return nil
	}
	return &y
}

package vision

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	healthRatio   = regexp.MustCompile(`(\d+)\s*/\s*(\d+)`)
	healthPercent = regexp.MustCompile(`(\d{1,3})\s*%`)
)

// ParseHealthText extracts a health percentage from OCR output such as
// "1234/2000" or "62%".
func ParseHealthText(text string) (int, bool) {
	text = strings.TrimSpace(text)
	if m := healthRatio.FindStringSubmatch(text); m != nil {
		cur, err1 := strconv.Atoi(m[1])
		maxHP, err2 := strconv.Atoi(m[2])
		if err1 != nil || err2 != nil || maxHP == 0 || cur > maxHP {
			return 0, false
		}
		return cur * 100 / maxHP, true
	}
	if m := healthPercent.FindStringSubmatch(text); m != nil {
		p, err := strconv.Atoi(m[1])
		if err != nil || p > 100 {
			return 0, false
		}
		return p, true
	}
	return 0, false
}

package resolve

import "strings"

// nightForms collapse "tonight"-style contractions into an explicit day
// keyword plus an evening marker. This must run before the day-keyword
// rule so the keyword is still visible to it. Longest forms first:
// "day after tomorrow night" contains "tomorrow night".
var nightForms = [][2]string{
	{"今晚", "今天晚上"},
	{"明晚", "明天晚上"},
	{"后晚", "后天晚上"},
	{"今早", "今天早上"},
	{"明早", "明天早上"},
	{"后早", "后天早上"},
	{"day after tomorrow night", "day after tomorrow evening"},
	{"tomorrow night", "tomorrow evening"},
	{"tonight", "today evening"},
}

// normalize rewrites contractions and punctuation variants so the date
// and time rules only ever see one spelling of each token.
func normalize(s string) string {
	for _, f := range nightForms {
		s = strings.ReplaceAll(s, f[0], f[1])
	}

	// 号 is the colloquial variant of 日 in dates.
	s = strings.ReplaceAll(s, "号", "日")

	// Hour markers become the literal separator: "3点半" -> "3:半",
	// "3 o'clock" -> "3 :". The clock-time rule tolerates the dangling
	// colon left behind when no minutes follow.
	s = strings.ReplaceAll(s, "：", ":")
	s = strings.ReplaceAll(s, "点", ":")
	s = strings.ReplaceAll(s, "o'clock", ":")

	return s
}

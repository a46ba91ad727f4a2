// ABOUTME: Astro pack: zodiac sign lookup and a canned daily fortune.
// ABOUTME: Stateless tools used by the astro gateway variant.

package builtins

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/2389/cmf-gateway/internal/packs"
)

// AstroPackID identifies the astro pack.
const AstroPackID = "builtin:astro"

const unknownSign = "Unknown"

// AstroPack creates the astro.* tools.
func AstroPack() *packs.BuiltinPack {
	return &packs.BuiltinPack{
		ID: AstroPackID,
		Tools: []*packs.BuiltinTool{
			{
				Definition: packs.ToolDefinition{
					Name:        "astro.getSign",
					Description: "Returns zodiac sign for an ISO date (YYYY-MM-DD).",
					InputSchema: json.RawMessage(`{"type":"object","properties":{"date":{"type":"string","pattern":"^\\d{4}-\\d{2}-\\d{2}$"}},"required":["date"]}`),
				},
				Handler: GetSign,
			},
			{
				Definition: packs.ToolDefinition{
					Name:        "astro.dailyFortune",
					Description: "Returns a one-line fortune for a given zodiac sign.",
					InputSchema: json.RawMessage(`{"type":"object","properties":{"sign":{"type":"string"}},"required":["sign"]}`),
				},
				Handler: DailyFortune,
			},
		},
	}
}

// zodiacSpan is the first day of a sign; a sign runs until the next span starts.
type zodiacSpan struct {
	month time.Month
	day   int
	sign  string
}

// zodiacStarts is ordered through the calendar year. Dates before the first
// entry fall in Capricorn, which wraps around the new year.
var zodiacStarts = []zodiacSpan{
	{time.January, 20, "Aquarius"},
	{time.February, 19, "Pisces"},
	{time.March, 21, "Aries"},
	{time.April, 20, "Taurus"},
	{time.May, 21, "Gemini"},
	{time.June, 21, "Cancer"},
	{time.July, 23, "Leo"},
	{time.August, 23, "Virgo"},
	{time.September, 23, "Libra"},
	{time.October, 23, "Scorpio"},
	{time.November, 22, "Sagittarius"},
	{time.December, 22, "Capricorn"},
}

// ZodiacSign returns the sign for t's UTC calendar day.
func ZodiacSign(t time.Time) string {
	t = t.UTC()
	m, d := t.Month(), t.Day()
	sign := "Capricorn"
	for _, s := range zodiacStarts {
		if m > s.month || (m == s.month && d >= s.day) {
			sign = s.sign
		}
	}
	return sign
}

// dateLayouts are tried in order; layouts without a zone are read as UTC.
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01",
	"2006",
}

// parseDate accepts ISO dates and date-times, or epoch milliseconds.
func parseDate(raw json.RawMessage) (time.Time, bool) {
	if len(raw) == 0 {
		return time.Time{}, false
	}

	var x any
	if err := json.Unmarshal(raw, &x); err != nil {
		return time.Time{}, false
	}

	switch v := x.(type) {
	case nil:
		return time.UnixMilli(0), true
	case float64:
		return time.UnixMilli(int64(v)), true
	case string:
		s := strings.TrimSpace(v)
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

type signResult struct {
	Sign string `json:"sign"`
}

// GetSign handles astro.getSign.
func GetSign(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
	a := parseArgs(input)

	sign := unknownSign
	if t, ok := parseDate(a.raw("date")); ok {
		sign = ZodiacSign(t)
	}
	return marshal(signResult{Sign: sign})
}

type fortuneResult struct {
	Fortune string `json:"fortune"`
}

// DailyFortune handles astro.dailyFortune.
func DailyFortune(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
	a := parseArgs(input)

	sign, _ := a.str("sign")
	if sign == "" {
		sign = unknownSign
	}
	return marshal(fortuneResult{Fortune: "A lucky break awaits, " + sign + "."})
}

// ABOUTME: Tests for astro pack tool handlers.
// ABOUTME: Covers zodiac boundaries, date parsing fallbacks and fortunes.

package builtins

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestZodiacSign_Boundaries(t *testing.T) {
	tests := []struct {
		date string
		want string
	}{
		{"2025-01-19", "Capricorn"},
		{"2025-01-20", "Aquarius"},
		{"2025-02-18", "Aquarius"},
		{"2025-02-19", "Pisces"},
		{"2025-03-20", "Pisces"},
		{"2025-03-21", "Aries"},
		{"2025-04-19", "Aries"},
		{"2025-04-20", "Taurus"},
		{"2025-05-21", "Gemini"},
		{"2025-06-21", "Cancer"},
		{"2025-07-22", "Cancer"},
		{"2025-07-23", "Leo"},
		{"2025-08-23", "Virgo"},
		{"2025-09-23", "Libra"},
		{"2025-10-23", "Scorpio"},
		{"2025-11-21", "Scorpio"},
		{"2025-11-22", "Sagittarius"},
		{"2025-12-21", "Sagittarius"},
		{"2025-12-22", "Capricorn"},
		{"2024-02-29", "Pisces"},
	}

	for _, tt := range tests {
		t.Run(tt.date, func(t *testing.T) {
			d, err := time.Parse("2006-01-02", tt.date)
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			assert.Equal(t, tt.want, ZodiacSign(d))
		})
	}
}

func TestGetSign(t *testing.T) {
	pack := AstroPack()

	tests := []struct {
		name string
		args string
		want string
	}{
		{"iso date", `{"date":"1993-07-11"}`, "Cancer"},
		{"date-time uses UTC day", `{"date":"1993-07-22T23:30:00-03:00"}`, "Leo"},
		{"year and month", `{"date":"1993-08"}`, "Leo"},
		{"garbage", `{"date":"yesterday"}`, "Unknown"},
		{"missing", `{}`, "Unknown"},
		{"epoch millis", `{"date":0}`, "Capricorn"},
		{"boolean", `{"date":true}`, "Unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, `{"sign":"`+tt.want+`"}`, call(t, pack, "astro.getSign", tt.args))
		})
	}
}

func TestDailyFortune(t *testing.T) {
	pack := AstroPack()

	assert.Equal(t, `{"fortune":"A lucky break awaits, Leo."}`, call(t, pack, "astro.dailyFortune", `{"sign":"Leo"}`))
	assert.Equal(t, `{"fortune":"A lucky break awaits, Unknown."}`, call(t, pack, "astro.dailyFortune", `{}`))
	assert.Equal(t, `{"fortune":"A lucky break awaits, Unknown."}`, call(t, pack, "astro.dailyFortune", `{"sign":""}`))
	assert.Equal(t, `{"fortune":"A lucky break awaits, \"Q\"."}`, call(t, pack, "astro.dailyFortune", `{"sign":"\"Q\""}`))
}

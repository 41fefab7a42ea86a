// Package identity maps a notification title to the code used both as the
// alarm key and as the notification display slot.
package identity

import (
	"strings"
	"unicode/utf16"
)

const (
	MorningGreeting int32 = 1001
	EndOfDay        int32 = 1002
	StreakReminder  int32 = 1003
)

type category struct {
	name    string
	code    int32
	phrases []string
}

// Checked in order; the first phrase found anywhere in the title wins.
var categories = []category{
	{name: "morning_greeting", code: MorningGreeting, phrases: []string{"Günaydın", "Good Morning"}},
	{name: "end_of_day", code: EndOfDay, phrases: []string{"Gün Sonu", "End of Day"}},
	{name: "streak_reminder", code: StreakReminder, phrases: []string{"Serinizi", "Keep Your Streak"}},
}

// Code returns the reserved code of the title's category, or Hash(title)
// for ad-hoc titles. Two ad-hoc titles may share a code.
func Code(title string) int32 {
	if c, ok := match(title); ok {
		return c.code
	}
	return Hash(title)
}

// Category names the reserved category of title, if any.
func Category(title string) (string, bool) {
	c, ok := match(title)
	if !ok {
		return "", false
	}
	return c.name, true
}

// IsReserved reports whether code belongs to a fixed category.
func IsReserved(code int32) bool {
	for _, c := range categories {
		if c.code == code {
			return true
		}
	}
	return false
}

func match(title string) (category, bool) {
	for _, c := range categories {
		for _, p := range c.phrases {
			if strings.Contains(title, p) {
				return c, true
			}
		}
	}
	return category{}, false
}

// Hash is s[0]*31^(n-1) + ... + s[n-1] over the UTF-16 code units of s,
// wrapping at 32 bits. Devices compute the same value for the same title.
func Hash(s string) int32 {
	var h int32
	for _, u := range utf16.Encode([]rune(s)) {
		h = 31*h + int32(u)
	}
	return h
}

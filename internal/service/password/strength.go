package password

import (
	"strings"
	"unicode/utf8"
)

type Strength string

const (
	StrengthVeryWeak   Strength = "very_weak"
	StrengthWeak       Strength = "weak"
	StrengthMedium     Strength = "medium"
	StrengthStrong     Strength = "strong"
	StrengthVeryStrong Strength = "very_strong"
)

const (
	MinLength = 8
	MaxLength = 128
	MinScore  = 50

	specialChars = `!@#$%^&*()_+-=[]{};':"\|,.<>/?`
)

var (
	commonWeakPasswords = map[string]struct{}{
		"password":    {},
		"123456":      {},
		"12345678":    {},
		"qwerty":      {},
		"abc123":      {},
		"password123": {},
		"123456789":   {},
		"welcome":     {},
		"admin":       {},
		"letmein":     {},
	}

	orderedSequences = []string{
		"abcdefghijklmnopqrstuvwxyz",
		"0123456789",
		"qwertyuiopasdfghjklzxcvbnm",
	}
)

type Requirements struct {
	Length    bool `json:"length"`
	Uppercase bool `json:"uppercase"`
	Lowercase bool `json:"lowercase"`
	Number    bool `json:"number"`
	Special   bool `json:"special"`
}

type StrengthResult struct {
	IsValid      bool         `json:"isValid"`
	Strength     Strength     `json:"strength"`
	Score        int          `json:"score"`
	Requirements Requirements `json:"requirements"`
	Suggestions  []string     `json:"suggestions"`
}

// Score rates a password from 0 to 100. username and email are optional hints;
// a password containing either is penalised. Score has no side effects and is
// the only scoring implementation used by both the validate endpoint and the
// change and reset flows.
func Score(password, username, email string) StrengthResult {
	result := StrengthResult{Suggestions: []string{}}
	score := 0
	length := utf8.RuneCountInString(password)

	switch {
	case length < MinLength:
		result.Suggestions = append(result.Suggestions, "Password must be at least 8 characters long")
	case length > MaxLength:
		result.Suggestions = append(result.Suggestions, "Password must not exceed 128 characters")
	default:
		result.Requirements.Length = true
		score += 20
	}

	if containsFunc(password, func(r rune) bool { return r >= 'A' && r <= 'Z' }) {
		result.Requirements.Uppercase = true
		score += 15
	} else {
		result.Suggestions = append(result.Suggestions, "Add uppercase letters")
	}

	if containsFunc(password, func(r rune) bool { return r >= 'a' && r <= 'z' }) {
		result.Requirements.Lowercase = true
		score += 15
	} else {
		result.Suggestions = append(result.Suggestions, "Add lowercase letters")
	}

	if containsFunc(password, func(r rune) bool { return r >= '0' && r <= '9' }) {
		result.Requirements.Number = true
		score += 15
	} else {
		result.Suggestions = append(result.Suggestions, "Add numbers")
	}

	if strings.ContainsAny(password, specialChars) {
		result.Requirements.Special = true
		score += 15
	}

	lower := strings.ToLower(password)

	if u := strings.ToLower(username); u != "" && strings.Contains(lower, u) {
		score -= 20
		result.Suggestions = append(result.Suggestions, "Password must not contain your username")
	}

	if prefix := emailLocalPart(email); prefix != "" && strings.Contains(lower, prefix) {
		score -= 20
		result.Suggestions = append(result.Suggestions, "Password must not contain your email prefix")
	}

	if _, weak := commonWeakPasswords[lower]; weak {
		score -= 30
		result.Suggestions = append(result.Suggestions, "Avoid common weak passwords")
	}

	if hasRepeatedRun(password, 3) {
		score -= 10
		result.Suggestions = append(result.Suggestions, "Avoid repeating the same character three or more times")
	}

	if hasSequentialRun(lower) {
		score -= 10
		result.Suggestions = append(result.Suggestions, "Avoid sequential characters such as abc, 123 or qwe")
	}

	if length >= 12 {
		score += 10
	}
	if length >= 16 {
		score += 10
	}

	result.Score = clamp(score, 0, 100)
	result.Strength = tier(result.Score)

	r := result.Requirements
	result.IsValid = r.Length && r.Uppercase && r.Lowercase && r.Number && result.Score >= MinScore

	return result
}

func tier(score int) Strength {
	switch {
	case score >= 80:
		return StrengthVeryStrong
	case score >= 60:
		return StrengthStrong
	case score >= 40:
		return StrengthMedium
	case score >= 20:
		return StrengthWeak
	default:
		return StrengthVeryWeak
	}
}

// StrengthText is the display label for a tier
func StrengthText(s Strength) string {
	switch s {
	case StrengthVeryWeak:
		return "Very weak"
	case StrengthWeak:
		return "Weak"
	case StrengthMedium:
		return "Medium"
	case StrengthStrong:
		return "Strong"
	case StrengthVeryStrong:
		return "Very strong"
	default:
		return "Unknown"
	}
}

// StrengthColor is the hex color the front end renders for a tier
func StrengthColor(s Strength) string {
	switch s {
	case StrengthVeryWeak:
		return "#ff4d4f"
	case StrengthWeak:
		return "#ff7875"
	case StrengthMedium:
		return "#faad14"
	case StrengthStrong:
		return "#52c41a"
	case StrengthVeryStrong:
		return "#389e0d"
	default:
		return "#d9d9d9"
	}
}

func emailLocalPart(email string) string {
	if email == "" {
		return ""
	}
	local, _, _ := strings.Cut(email, "@")
	return strings.ToLower(local)
}

func containsFunc(s string, f func(rune) bool) bool {
	return strings.IndexFunc(s, f) >= 0
}

func hasRepeatedRun(s string, n int) bool {
	run := 0
	var prev rune
	for i, r := range s {
		if i > 0 && r == prev {
			run++
		} else {
			run = 1
		}
		if run >= n {
			return true
		}
		prev = r
	}
	return false
}

func hasSequentialRun(lower string) bool {
	for _, seq := range orderedSequences {
		for i := 0; i+3 <= len(seq); i++ {
			if strings.Contains(lower, seq[i:i+3]) {
				return true
			}
		}
	}
	return false
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

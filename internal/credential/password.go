package credential

import (
	"math"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	MinPasswordLength = 8
	// MaxPasswordBytes is the bcrypt input limit; longer inputs are rejected
	// rather than silently truncated.
	MaxPasswordBytes = 72
	maxStrength      = 5
)

// PasswordValidation is the outcome of ValidatePassword. Valid is false
// whenever any rule fails, regardless of Strength.
type PasswordValidation struct {
	Valid      bool     `json:"valid"`
	Errors     []string `json:"errors"`
	Strength   int      `json:"strength"`
	Percentage int      `json:"percentage"`
}

var commonPasswords = map[string]struct{}{
	"password": {}, "password1": {}, "password123": {}, "passw0rd": {},
	"12345678": {}, "123456789": {}, "1234567890": {}, "qwerty123": {},
	"qwertyuiop": {}, "iloveyou": {}, "sunshine": {}, "princess": {},
	"football": {}, "baseball": {}, "welcome1": {}, "welcome123": {},
	"admin123": {}, "letmein1": {}, "trustno1": {}, "abc12345": {},
	"11111111": {}, "00000000": {}, "monkey123": {}, "dragon123": {},
	"superman": {}, "changeme": {}, "qwerty12": {}, "1q2w3e4r": {},
}

// ValidatePassword applies the password policy and scores strength 0..5 from
// length, character class diversity and a Shannon entropy heuristic.
func ValidatePassword(password string) PasswordValidation {
	var errs []string
	if utf8.RuneCountInString(password) < MinPasswordLength {
		errs = append(errs, "Password must be at least 8 characters long")
	}
	if len(password) > MaxPasswordBytes {
		errs = append(errs, "Password must be at most 72 bytes long")
	}
	if _, common := commonPasswords[strings.ToLower(password)]; common {
		errs = append(errs, "Password is too common")
	}

	strength := passwordStrength(password)
	return PasswordValidation{
		Valid:      len(errs) == 0,
		Errors:     errs,
		Strength:   strength,
		Percentage: strength * 100 / maxStrength,
	}
}

func passwordStrength(password string) int {
	n := utf8.RuneCountInString(password)
	if n == 0 {
		return 0
	}

	var lower, upper, digit, symbol bool
	for _, r := range password {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		default:
			symbol = true
		}
	}

	score := 0
	if n >= MinPasswordLength {
		score++
	}
	if n >= 12 {
		score++
	}
	if lower && upper {
		score++
	}
	if digit {
		score++
	}
	if symbol {
		score++
	}

	// Repetitive input ("aaaaaaaaaaaa1") scores well on length but carries
	// little information.
	if entropyBits(password) < 2.5 {
		score--
	}
	return max(0, min(score, maxStrength))
}

// entropyBits is the Shannon entropy per character of password.
func entropyBits(password string) float64 {
	freq := make(map[rune]int)
	total := 0
	for _, r := range password {
		freq[r]++
		total++
	}
	var h float64
	for _, c := range freq {
		p := float64(c) / float64(total)
		h -= p * math.Log2(p)
	}
	return h
}

package domain

import "strings"

// MaskAccountNumber keeps the first two and last four characters of an
// account number, e.g. "09171234567" -> "09****4567".
func MaskAccountNumber(number string) string {
	number = strings.TrimSpace(number)
	if number == "" {
		return ""
	}
	if len(number) <= 6 {
		return "****"
	}
	return number[:2] + "****" + number[len(number)-4:]
}

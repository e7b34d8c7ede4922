package utils

import "strings"

// IsValidPhone accepts an optional leading + followed by 7 to 15 digits.
// Spaces and dashes inside the number are tolerated.
func IsValidPhone(number string) bool {
	number = strings.TrimSpace(number)
	if strings.HasPrefix(number, "+") {
		number = number[1:]
	}

	digits := 0
	for i := 0; i < len(number); i++ {
		c := number[i]
		if c == ' ' || c == '-' {
			continue
		}
		if c < '0' || c > '9' {
			return false
		}
		digits++
	}

	return digits >= 7 && digits <= 15
}

package retention

import (
	"fmt"
	"strconv"
	"strings"
)

// ValidateRetention rejects retention counts the engine cannot run under.
func ValidateRetention(n int) error {
	if n < 0 {
		return fmt.Errorf("%w: %d is negative", ErrInvalidRetention, n)
	}
	return nil
}

// ParseRetention parses operator input. Blank input means 0 (hide nothing).
func ParseRetention(input string) (int, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return 0, nil
	}

	n, err := strconv.Atoi(input)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not an integer", ErrInvalidRetention, input)
	}
	if err := ValidateRetention(n); err != nil {
		return 0, err
	}
	return n, nil
}

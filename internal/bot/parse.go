package bot

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"freshrss_filter/internal/model"
)

// ParseCountArg parses an optional positive count, returning def when args
// is empty and capping the result at limit.
func ParseCountArg(args string, def, limit int) (int, error) {
	s := strings.TrimSpace(args)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(strings.Fields(s)[0])
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid count %q", s)
	}
	return min(n, limit), nil
}

// ParseItemIDArg extracts an item ID from a command argument string.
func ParseItemIDArg(args string) (model.ItemID, error) {
	fields := strings.Fields(args)
	if len(fields) == 0 {
		return "", errors.New("item ID is required")
	}
	id := strings.TrimPrefix(fields[0], "#")
	if id == "" {
		return "", errors.New("item ID is required")
	}
	return model.ItemID(id), nil
}

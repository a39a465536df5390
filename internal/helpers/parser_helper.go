package helpers

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

const MaxPageLimit = 200

func StringToInt(s string) (int, error) {
	return strconv.Atoi(s)
}

func ParseID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid id format")
	}
	return id, nil
}

// ParsePagination reads optional page and limit query values. An empty limit
// means no pagination and yields (0, 0).
func ParsePagination(page, limit string) (int, int, error) {
	if strings.TrimSpace(limit) == "" {
		return 0, 0, nil
	}

	limitNum, err := StringToInt(strings.TrimSpace(limit))
	if err != nil || limitNum <= 0 {
		return 0, 0, fmt.Errorf("invalid limit")
	}
	if limitNum > MaxPageLimit {
		limitNum = MaxPageLimit
	}

	pageNum := 1
	if strings.TrimSpace(page) != "" {
		pageNum, err = StringToInt(strings.TrimSpace(page))
		if err != nil || pageNum <= 0 {
			return 0, 0, fmt.Errorf("invalid page number")
		}
	}

	return pageNum, limitNum, nil
}

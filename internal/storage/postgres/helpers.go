package postgres

import (
	"strconv"

	"github.com/google/uuid"
)

func newID() string {
	return uuid.NewString()
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func itoa(n int) string {
	return strconv.Itoa(n)
}

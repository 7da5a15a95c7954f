package server

import (
	"errors"
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
)

func parseSnowflakeParam(value string) (snowflake.ID, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, errors.New("missing_id")
	}
	parsed, err := snowflake.ParseString(trimmed)
	if err != nil || parsed == 0 {
		return 0, errors.New("invalid_id")
	}
	return parsed, nil
}

func parseOptionalSnowflake(value string) (snowflake.ID, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, nil
	}
	return parseSnowflakeParam(trimmed)
}

func parseIntParam(value string, def int) int {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return def
	}
	parsed, err := strconv.Atoi(trimmed)
	if err != nil {
		return def
	}
	return parsed
}

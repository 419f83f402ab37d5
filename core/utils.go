package core

import (
	"strconv"
	"strings"
	"time"
)

// DateLayout is the layout of calendar dates stored in records (attendance, remarks, homework...).
const DateLayout = "2006-01-02"

var NowFunc = time.Now // mockable

// CleanString trims all leading and trailing whitespace in `s` and optionally lowers it.
func CleanString(s string, lower ...bool) string {
	s = strings.TrimSpace(s)
	if len(lower) > 0 && lower[0] {
		return strings.ToLower(s)
	}
	return s
}

// Today returns the current date formatted with DateLayout.
func Today() string {
	return NowFunc().Format(DateLayout)
}

// FirstName returns the first word of a full name.
func FirstName(fullName string) string {
	fields := strings.Fields(fullName)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// DerivePassword builds the initial password handed out to new accounts: lowercase first name + "123".
func DerivePassword(fullName string) string {
	return strings.ToLower(FirstName(fullName)) + "123"
}

// ContainsFold reports whether substr is within s, ignoring case.
func ContainsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// TimestampSuffix returns the last `n` digits of the current unix time in milliseconds.
func TimestampSuffix(n int) string {
	s := strings.Repeat("0", n) + strconv.FormatInt(NowFunc().UnixMilli(), 10)
	return s[len(s)-n:]
}

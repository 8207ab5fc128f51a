package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type DurationTestCase struct {
	input    time.Duration
	expected string
}

func TestFormatDuration(t *testing.T) {
	tests := []DurationTestCase{
		{0, "Unknown"},
		{45 * time.Second, "0:45"},
		{3*time.Minute + 45*time.Second, "3:45"},
		{10 * time.Minute, "10:00"},
		{1*time.Hour + 23*time.Minute + 45*time.Second, "1:23:45"},
		{2*time.Hour + 5*time.Second, "2:00:05"},
	}

	for _, tt := range tests {
		result := FormatDuration(tt.input)
		assert.Equal(t, tt.expected, result)
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "exact", Truncate("exact", 5))
	assert.Equal(t, "long…", Truncate("longer than that", 5))
}

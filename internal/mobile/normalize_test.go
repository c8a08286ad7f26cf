package mobile

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"13800138000", "13800138000"},
		{"138-0013-8000", "13800138000"},
		{" 138 0013 8000 ", "13800138000"},
		{"+8613800138000", "13800138000"},
		{"008613800138000", "13800138000"},
		{"8613800138000", "13800138000"},
		{"＋86 138_0013_8000", "13800138000"},
		{"1380013800", ""},
		{"138001380001", ""},
		{"abc", ""},
		{"", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Normalize(tt.in), "Normalize(%q)", tt.in)
	}
}

func TestSplitText(t *testing.T) {
	got := SplitText("13800138000,13800138001;13800138002\n 13800138003\t13800138004")
	assert.Equal(t, []string{"13800138000", "13800138001", "13800138002", "13800138003", "13800138004"}, got)
	assert.Empty(t, SplitText("   "))
}

func TestClean(t *testing.T) {
	sum := Clean([]string{"13800138000", "+86 138 0013 8000", "13900139000", "12345", "bad"})

	assert.Equal(t, 5, sum.Total)
	assert.Equal(t, 2, sum.Unique)
	assert.Equal(t, 2, sum.Valid)
	assert.Equal(t, 2, sum.Invalid)
	assert.Equal(t, 1, sum.DuplicateCount)
	assert.Equal(t, []string{"13800138000", "13900139000"}, sum.Mobiles)
	assert.Equal(t, []string{"12345", "bad"}, sum.InvalidSamples)
}

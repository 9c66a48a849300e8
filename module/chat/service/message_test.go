package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClampLimit(t *testing.T) {
	cases := []struct {
		in   int
		want int
	}{
		{0, 50},
		{-5, 50},
		{1, 1},
		{50, 50},
		{100, 100},
		{101, 100},
		{9999, 100},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, clampLimit(tc.in), "clampLimit(%d)", tc.in)
	}
}

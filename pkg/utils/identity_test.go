package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeUsername(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "already normal", in: "admin", want: "admin"},
		{name: "trailing space", in: "Admin ", want: "admin"},
		{name: "leading space upper", in: " ADMIN", want: "admin"},
		{name: "tabs and newlines", in: "\tUser1\n", want: "user1"},
		{name: "empty", in: "   ", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeUsername(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, NormalizeUsername(got), "normalize must be idempotent")
		})
	}
}

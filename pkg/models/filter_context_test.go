package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPathFilter(t *testing.T) {
	tests := []struct {
		name       string
		filter     PathFilter
		wantActive bool
		wantValues []string
	}{
		{"no paths", PathFilter{}, false, []string{}},
		{"only blanks", PathFilter{Paths: []string{"", ""}}, false, []string{}},
		{"blanks skipped", PathFilter{Paths: []string{"", "/a", "", "/b"}}, true, []string{"/a", "/b"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantActive, tt.filter.Active())
			assert.Equal(t, tt.wantValues, tt.filter.Values())
		})
	}
}

func TestPathOperator_IsValid(t *testing.T) {
	assert.True(t, PathEquals.IsValid())
	assert.True(t, PathStartsWith.IsValid())
	assert.False(t, PathOperator("contains").IsValid())
	assert.Equal(t, "starts-with", PathStartsWith.String())
}

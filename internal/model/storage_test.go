package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseStorageMode(t *testing.T) {
	cases := []struct {
		in   string
		want StorageMode
	}{
		{"none", StorageModeNone},
		{"local", StorageModeLocal},
		{"remote", StorageModeRemote},
		{"supabase", StorageModeRemote},
		{"", StorageModeNone},
		{"garbage", StorageModeNone},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ParseStorageMode(tc.in), tc.in)
	}
}

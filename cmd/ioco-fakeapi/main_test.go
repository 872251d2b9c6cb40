package main

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSeedUsers(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    []seedUser
		wantErr bool
	}{
		{name: "empty", in: "", want: nil},
		{name: "single", in: "ada@example.com:secret", want: []seedUser{{"ada@example.com", "secret"}}},
		{
			name: "several with spaces",
			in:   " ada@example.com:a , grace@example.com:b,",
			want: []seedUser{{"ada@example.com", "a"}, {"grace@example.com", "b"}},
		},
		{name: "colon in password", in: "ada@example.com:a:b", want: []seedUser{{"ada@example.com", "a:b"}}},
		{name: "missing colon", in: "ada@example.com", wantErr: true},
		{name: "empty password", in: "ada@example.com:", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseSeedUsers(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLogLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, parseLogLevel("warn"))
	assert.Equal(t, slog.LevelError, parseLogLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLogLevel("verbose"))
}

package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebsocketURL(t *testing.T) {
	tests := []struct {
		server  string
		want    string
		wantErr bool
	}{
		{server: "http://localhost:8080", want: "ws://localhost:8080/ws"},
		{server: "https://citizenhub.example/api/", want: "wss://citizenhub.example/api/ws"},
		{server: "ws://10.0.0.1:9000", want: "ws://10.0.0.1:9000/ws"},
		{server: "ftp://x", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.server, func(t *testing.T) {
			got, err := websocketURL(tc.server)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

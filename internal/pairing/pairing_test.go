package pairing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		want    Target
		wantErr error
	}{
		{
			name: "qr payload",
			text: `{"type":"xbox_controller","version":1,"host":"192.168.1.5","port":8765,"protocol":"ws"}`,
			want: Target{Host: "192.168.1.5", Port: 8765},
		},
		{
			name: "qr payload without port",
			text: `{"type":"xbox_controller","version":1,"host":"10.0.0.2"}`,
			want: Target{Host: "10.0.0.2", Port: DefaultPort},
		},
		{
			name:    "qr payload wrong type",
			text:    `{"type":"wifi","host":"10.0.0.2"}`,
			wantErr: ErrUnsupportedPayload,
		},
		{
			name:    "qr payload newer version",
			text:    `{"type":"xbox_controller","version":2,"host":"10.0.0.2"}`,
			wantErr: ErrUnsupportedPayload,
		},
		{
			name:    "qr payload wss",
			text:    `{"type":"xbox_controller","version":1,"host":"10.0.0.2","protocol":"wss"}`,
			wantErr: ErrUnsupportedProtocol,
		},
		{
			name:    "qr payload missing host",
			text:    `{"type":"xbox_controller","version":1,"port":8765}`,
			wantErr: ErrEmptyHost,
		},
		{
			name:    "qr payload bad port",
			text:    `{"type":"xbox_controller","version":1,"host":"10.0.0.2","port":70000}`,
			wantErr: ErrInvalidPort,
		},
		{name: "ws url", text: "ws://192.168.1.5:9000", want: Target{Host: "192.168.1.5", Port: 9000}},
		{name: "ws url default port", text: "ws://pc.local", want: Target{Host: "pc.local", Port: DefaultPort}},
		{name: "http url", text: "http://pc.local:80", wantErr: ErrUnsupportedProtocol},
		{name: "host and port", text: "192.168.1.5:8765", want: Target{Host: "192.168.1.5", Port: 8765}},
		{name: "bare host", text: "192.168.1.5", want: Target{Host: "192.168.1.5", Port: DefaultPort}},
		{name: "ipv6 with port", text: "[fe80::1]:8765", want: Target{Host: "fe80::1", Port: 8765}},
		{name: "empty", text: "   ", wantErr: ErrEmptyHost},
		{name: "bad port", text: "pc.local:abc", wantErr: ErrInvalidPort},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.text)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTarget_URL(t *testing.T) {
	assert.Equal(t, "ws://192.168.1.5:8765", Target{Host: "192.168.1.5", Port: 8765}.URL())
	assert.Equal(t, "ws://[fe80::1]:8765", Target{Host: "fe80::1", Port: 8765}.URL())
}

func TestEncode_RoundTrip(t *testing.T) {
	want := Target{Host: "192.168.1.20", Port: 8765}

	text, err := Encode(want)
	require.NoError(t, err)
	assert.Contains(t, text, `"type":"xbox_controller"`)

	got, err := Parse(text)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = Encode(Target{})
	assert.ErrorIs(t, err, ErrEmptyHost)
}

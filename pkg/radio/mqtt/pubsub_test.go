package mqtt

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/valvelink/pkg/link"
)

func TestMatchTopic(t *testing.T) {
	testCases := []struct {
		topic   string
		pattern string
		match   bool
	}{
		{"air/bb", "air/bb", true},
		{"air/bb", "air/cc", false},
		{"air/bb", "air", false},
		{"air", "air/bb", false},
		{"air/bb", "air/+", true},
		{"air/bb/x", "air/+", false},
		{"unit/status", "#", true},
		{"unit/a/status", "unit/#", true},
		{"unit/a/status", "+/+/status", true},
		{"unit/a/relay", "+/+/status", false},
	}
	for _, tc := range testCases {
		t.Run(tc.topic+" "+tc.pattern, func(t *testing.T) {
			require.Equal(t, tc.match, MatchTopic(tc.topic, tc.pattern))
		})
	}
}

func TestClientOptionsFromURL(t *testing.T) {
	opts, prefix, err := ClientOptionsFromURL("mqtt://u:p@broker:1883/valvelink/?client-id=act")
	require.NoError(t, err)
	require.Equal(t, "valvelink/", prefix)
	require.Len(t, opts.Servers, 1)
	require.Equal(t, "tcp://broker:1883", opts.Servers[0].String())
	require.Equal(t, "u", opts.Username)
	require.Equal(t, "p", opts.Password)
	require.Equal(t, "act", opts.ClientID)
}

func TestAirTopic(t *testing.T) {
	require.Equal(t, "air/bb", AirTopic(link.Address(0xBB)))
	require.Equal(t, "air/0c", AirTopic(link.Address(0x0C)))
}

package link

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/valvelink/pkg/valve"
)

const (
	local Address = 0xBB
	peer  Address = 0xCC
)

func TestFrame(t *testing.T) {
	require.Equal(t, []byte{0xCC, 0xBB, 5}, Frame(peer, local, []byte{5}))
	require.Equal(t, []byte{0xCC, 0xBB}, Frame(peer, local, nil))

	p := &Packet{Dest: 1, Src: 2, Payload: []byte("1|2")}
	require.Equal(t, []byte{1, 2, '1', '|', '2'}, p.Bytes())
	var buf bytes.Buffer
	n, err := p.WriteTo(&buf)
	require.NoError(t, err)
	require.Equal(t, int64(5), n)
	require.Equal(t, p.Bytes(), buf.Bytes())

	f := Filter{Local: local, Peer: peer}
	require.Equal(t, []byte{0xCC, 0xBB, 4}, f.Frame([]byte{4}))
}

func TestParse(t *testing.T) {
	testCases := []struct {
		name     string
		raw      []byte
		payload  []byte
		malform  bool
		mismatch bool
	}{
		{name: "accepted", raw: []byte{0xBB, 0xCC, 5}, payload: []byte{5}},
		{name: "accepted empty payload", raw: []byte{0xBB, 0xCC}, payload: []byte{}},
		{name: "accepted text payload", raw: append([]byte{0xBB, 0xCC}, "1|2|3"...), payload: []byte("1|2|3")},
		{name: "wrong recipient", raw: []byte{0xBA, 0xCC, 5}, mismatch: true},
		{name: "wrong sender", raw: []byte{0xBB, 0xCD, 5}, mismatch: true},
		{name: "swapped", raw: []byte{0xCC, 0xBB, 5}, mismatch: true},
		{name: "own echo", raw: []byte{0xBB, 0xBB, 5}, mismatch: true},
		{name: "empty", raw: nil, malform: true},
		{name: "one byte", raw: []byte{0xBB}, malform: true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			payload, err := Parse(tc.raw, local, peer)
			if !tc.malform && !tc.mismatch {
				require.NoError(t, err)
				require.Equal(t, tc.payload, payload)
				return
			}
			require.Nil(t, payload)
			require.True(t, IsRejected(err))
			require.Equal(t, tc.malform, errors.Is(err, ErrMalformedPacket))
			var mismatch *AddressMismatchError
			require.Equal(t, tc.mismatch, errors.As(err, &mismatch))
		})
	}
}

func TestParseAllLeadingPairs(t *testing.T) {
	f := Filter{Local: local, Peer: peer}
	for d := 0; d < 256; d++ {
		for s := 0; s < 256; s++ {
			_, err := f.Parse([]byte{byte(d), byte(s), 0})
			if Address(d) == local && Address(s) == peer {
				require.NoError(t, err)
			} else {
				require.Truef(t, IsRejected(err), "%02x %02x accepted", d, s)
			}
		}
	}
}

func TestParseAddress(t *testing.T) {
	for _, s := range []string{"bb", "BB", "0xbb", "0XBB"} {
		a, err := ParseAddress(s)
		require.NoError(t, err)
		require.Equal(t, Address(0xBB), a)
	}
	_, err := ParseAddress("1bb")
	require.Error(t, err)
	require.Equal(t, "0x0C", Address(12).String())
}

func TestDecodeOpcode(t *testing.T) {
	for c := valve.CodeOff; c <= valve.MaxCode; c++ {
		got, err := DecodeOpcode(EncodeOpcode(c))
		require.NoError(t, err)
		require.Equal(t, c, got)
	}
	for _, payload := range [][]byte{nil, {}, {8}, {200}, {0xff}, {5, 5}} {
		_, err := DecodeOpcode(payload)
		require.Truef(t, errors.Is(err, ErrMalformedPacket), "payload %v", payload)
	}
}

func TestIsRejected(t *testing.T) {
	require.False(t, IsRejected(nil))
	require.False(t, IsRejected(errors.New("other")))
}

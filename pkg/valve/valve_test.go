package valve

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecode(t *testing.T) {
	for c := CodeOff; c <= MaxCode; c++ {
		s := c.Decode()
		require.Equalf(t, c, Encode(s.Fill, s.Dump, s.Check), "code %d encode mismatch", c)
		require.Equalf(t, s, Encode(s.Fill, s.Dump, s.Check).Decode(), "code %d round trip mismatch", c)
		require.Equal(t, c, s.Code())
	}
	require.Equal(t, Code(5), Encode(true, false, true))
	require.Equal(t, State{Fill: true, Check: true}, Code(5).Decode())
	require.Equal(t, State{Dump: true}, Code(2).Decode())
	require.Equal(t, "fill=1 dump=0 check=1", Code(5).Decode().String())
}

func TestClassify(t *testing.T) {
	testCases := []struct {
		b     byte
		label Label
		name  string
	}{
		{0, LabelOff, "off"},
		{1, LabelDontCare, "don't-care"},
		{2, LabelDumping, "dumping"},
		{3, LabelForbiddenDumpCheck, "forbidden dump+check"},
		{4, LabelFillReady, "fill-ready"},
		{5, LabelFilling, "filling"},
		{6, LabelForbiddenFillDump, "forbidden fill+dump"},
		{7, LabelForbiddenAll, "forbidden fill+dump+check"},
		{8, LabelUnknown, "unknown"},
		{200, LabelUnknown, "unknown"},
		{0xff, LabelUnknown, "unknown"},
	}
	for _, tc := range testCases {
		t.Run(fmt.Sprintf("%d", tc.b), func(t *testing.T) {
			require.Equal(t, tc.label, Classify(tc.b))
			require.Equal(t, tc.name, Classify(tc.b).String())
		})
	}
	require.True(t, LabelForbiddenFillDump.Forbidden())
	require.False(t, LabelDontCare.Forbidden())
}

func TestIsUnsafe(t *testing.T) {
	unsafe := map[byte]bool{1: true, 3: true, 6: true, 7: true}
	for b := 0; b < 256; b++ {
		require.Equalf(t, unsafe[byte(b)], IsUnsafe(byte(b)), "byte %d", b)
	}
}

func TestBitString(t *testing.T) {
	require.Equal(t, "00000000", BitString(0))
	require.Equal(t, "00000101", BitString(5))
	require.Equal(t, "00000111", BitString(7))
	require.Equal(t, "11001000", BitString(200))
	require.Equal(t, "00000101 (filling)", Code(5).String())
}

func TestLatchAllCodesFromAllStates(t *testing.T) {
	safe := []Code{0, 2, 4, 5}
	for _, prior := range safe {
		for c := CodeOff; c <= MaxCode; c++ {
			t.Run(fmt.Sprintf("%d after %d", c, prior), func(t *testing.T) {
				l := NewLatch()
				_, err := l.Apply(prior)
				require.NoError(t, err)
				require.Equal(t, prior, l.Code())

				eff, err := l.Apply(c)
				if c.Unsafe() {
					require.Equal(t, prior, eff)
					require.Equal(t, prior, l.Code())
					var unsafeErr *UnsafeCodeError
					require.True(t, errors.As(err, &unsafeErr))
					require.Equal(t, c, unsafeErr.Code)
					require.Equal(t, prior, unsafeErr.Held)
				} else {
					require.NoError(t, err)
					require.Equal(t, c, eff)
					require.Equal(t, c, l.Code())
				}
				require.False(t, l.Code().Unsafe())
			})
		}
	}
}

func TestLatchInitialState(t *testing.T) {
	l := NewLatch()
	require.Equal(t, CodeOff, l.Code())
	eff, err := l.Apply(7)
	require.Error(t, err)
	require.Equal(t, CodeOff, eff)
}

func TestLatchIdempotent(t *testing.T) {
	l := NewLatch()
	for _, c := range []Code{0, 2, 4, 5} {
		first, err := l.Apply(c)
		require.NoError(t, err)
		second, err := l.Apply(c)
		require.NoError(t, err)
		require.Equal(t, first, second)
		require.Equal(t, c, l.Code())
	}
}

func TestLatchHoldsUnderRepeatedRejection(t *testing.T) {
	l := NewLatch()
	_, err := l.Apply(CodeFilling)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		eff, err := l.Apply(7)
		require.Error(t, err)
		require.Equal(t, CodeFilling, eff)
	}
	require.Equal(t, CodeFilling, l.Code())
}

func TestLatchOutOfRange(t *testing.T) {
	l := NewLatch()
	_, err := l.Apply(CodeDumping)
	require.NoError(t, err)
	eff, err := l.Apply(200)
	require.True(t, errors.Is(err, ErrCodeOutOfRange))
	require.Equal(t, CodeDumping, eff)
	require.Equal(t, CodeDumping, l.Code())
}

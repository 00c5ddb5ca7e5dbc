package logger

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func render(format string, args ...any) string {
	pool := newBufferPool(1)
	buf := pool.Alloc()
	formatMessage(buf, format, args)
	return string(buf.Bytes())
}

func TestFormatMessagePlaceholders(t *testing.T) {
	require.Equal(t, "n=42", render("n={}", 42))
	require.Equal(t, "a=1 b=2", render("a={} b={}", 1, 2))
	require.Equal(t, "no placeholders", render("no placeholders"))
}

func TestFormatMessageTypes(t *testing.T) {
	require.Equal(t, "true false", render("{} {}", true, false))
	require.Equal(t, "hello", render("{}", "hello"))
	require.Equal(t, "3.5", render("{}", 3.5))
	require.Equal(t, "nullptr", render("{}", nil))
	require.Equal(t, "boom", render("{}", errors.New("boom")))
}

func TestFormatMessagePointerRendersHexAddress(t *testing.T) {
	n := 7
	out := render("{}", &n)
	require.True(t, strings.HasPrefix(out, "0x"))
}

func TestFormatMessageTypedNilPointerRendersNullptr(t *testing.T) {
	var p *int
	require.Equal(t, "nullptr", render("{}", p))
}

func TestFormatMessageEmptyPayload(t *testing.T) {
	require.Equal(t, "", render(""))
}

func TestFormatMessageSurplusPlaceholderRendersLiteralNoPanic(t *testing.T) {
	require.NotPanics(t, func() {
		out := render("a={} b={}", 1)
		require.Equal(t, "a=1 b={}", out)
	})
}

func TestFormatMessageSurplusArgumentDroppedNoPanic(t *testing.T) {
	require.NotPanics(t, func() {
		out := render("a={}", 1, 2, 3)
		require.Equal(t, "a=1", out)
	})
}

func TestTimeCacheCachesWholeSecond(t *testing.T) {
	tc := newTimeCache("2006-01-02T15:04:05")
	nsec := int64(1_700_000_000) * int64(1_000_000_000)

	a := tc.render(nil, nsec)
	b := tc.render(nil, nsec+500_000_000) // same whole second, different fraction

	require.Equal(t, a[:19], b[:19]) // the rendered calendar portion is identical
	require.NotEqual(t, string(a), string(b))
}

func TestTimeCacheAdvancesOnSecondRollover(t *testing.T) {
	tc := newTimeCache("2006-01-02T15:04:05")
	nsec := int64(1_700_000_000) * int64(1_000_000_000)

	a := tc.render(nil, nsec)
	b := tc.render(nil, nsec+int64(1_000_000_000))

	require.NotEqual(t, string(a[:19]), string(b[:19]))
}

func TestFormatHeaderEmptyPayloadRendersHeaderPlusNewline(t *testing.T) {
	pool := newBufferPool(1)
	buf := pool.Alloc()
	rec := &Record{Level: LevelInfo, File: "x.go", Line: 10, ThreadHash: 1, TimeNS: 0, Buf: buf}
	out := formatHeader(nil, newTimeCache(""), rec)
	require.True(t, out[len(out)-1] == '\n')
}

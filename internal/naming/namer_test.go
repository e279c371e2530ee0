package naming

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock() time.Time {
	return time.Date(2026, 3, 14, 15, 9, 26, 535_000_000, time.FixedZone("CET", 3600))
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "ABC123", "ABC123"},
		{"illegal characters", `a<b>c:d"e/f\g|h?i*j`, "a_b_c_d_e_f_g_h_i_j"},
		{"control characters", "line1\nline2\ttab", "line1_line2_tab"},
		{"accents removed", "Café Ñandú", "Cafe Nandu"},
		{"compatibility forms", "ﬁle①", "file1"},
		{"fullwidth slash", "a／b", "a_b"},
		{"trimmed", "  ..name__ ", "name"},
		{"only illegal", "///", ""},
		{"empty", "", ""},
		{"reserved", "con", "_con"},
		{"reserved with extension", "LPT1.txt", "_LPT1.txt"},
		{"not reserved", "CONSOLE", "CONSOLE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Sanitize(tt.in, DefaultMaxBaseLength))
		})
	}
}

func TestSanitize_Truncates(t *testing.T) {
	long := strings.Repeat("ä", 100)
	got := Sanitize(long, 10)
	assert.Equal(t, strings.Repeat("a", 10), got)

	// a trailing dot uncovered by truncation is trimmed
	assert.Equal(t, "abcd", Sanitize("abcd.efgh", 5))
}

func TestNameFor(t *testing.T) {
	assert.Equal(t, "ABC123_20260314T140926.535.png", NameFor("ABC123", 1, "20260314T140926.535", ".png"))
	assert.Equal(t, "matrix2_s.jpg", NameFor("", 2, "s", "jpg"))
	assert.Equal(t, "matrix3_s.bmp", NameFor("\\\\", 3, "s", ".bmp"))
	assert.Equal(t, "x_s", NameFor("x", 1, "s", ""))
}

func TestNamer_Next(t *testing.T) {
	n := New(Options{Clock: fixedClock})
	assert.Equal(t, "20260314T140926.535", n.RunStamp())

	assert.Equal(t, "ABC123_20260314T140926.535-0001.png", n.Next("ABC123", 1, ".png"))
	assert.Equal(t, "matrix2_20260314T140926.535-0002.png", n.Next("", 2, ".png"))
	assert.Equal(t, "ABC123_20260314T140926.535-0003.png", n.Next("ABC123", 1, ".png"))
}

func TestNamer_UniqueWithinRun(t *testing.T) {
	n := New(Options{Clock: fixedClock})
	seen := map[string]bool{}
	for i := 0; i < 500; i++ {
		name := n.Next("same", 1, ".png")
		require.False(t, seen[name], "duplicate %s", name)
		seen[name] = true
	}
}

func TestNamer_DistinctRuns(t *testing.T) {
	a := New(Options{Clock: fixedClock})
	b := New(Options{Clock: func() time.Time { return fixedClock().Add(time.Millisecond) }})
	assert.NotEqual(t, a.Next("X", 1, ".png"), b.Next("X", 1, ".png"))
}

func TestNamer_Reserve(t *testing.T) {
	dir := t.TempDir()
	n := New(Options{Clock: fixedClock})
	other := New(Options{Clock: fixedClock})

	taken := other.Next("X", 1, ".png")
	require.NoError(t, os.WriteFile(filepath.Join(dir, taken), nil, 0o600))

	name, err := n.Reserve(dir, "X", 1, ".png")
	require.NoError(t, err)
	assert.NotEqual(t, taken, name)
	assert.Equal(t, "X_20260314T140926.535-0002.png", name)

	name, err = n.Reserve(filepath.Join(dir, "missing"), "X", 1, ".png")
	require.NoError(t, err)
	assert.Equal(t, "X_20260314T140926.535-0003.png", name)
}

func TestNew_Defaults(t *testing.T) {
	n := New(Options{})
	_, err := time.Parse(StampLayout, n.RunStamp())
	require.NoError(t, err)

	long := strings.Repeat("z", 200)
	name := n.Next(long, 1, ".png")
	assert.True(t, strings.HasPrefix(name, strings.Repeat("z", DefaultMaxBaseLength)+"_"))
}

func TestSanitize_Properties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("result is a safe file name component", prop.ForAll(
		func(s string, maxLen int) bool {
			out := Sanitize(s, maxLen)
			if utf8.RuneCountInString(out) > maxLen {
				return false
			}
			for _, r := range out {
				if unicode.IsControl(r) || strings.ContainsRune(illegalChars, r) || unicode.Is(unicode.Mn, r) {
					return false
				}
			}
			return !strings.HasSuffix(out, ".") && !strings.HasSuffix(out, " ")
		},
		gen.AnyString(),
		gen.IntRange(5, 80),
	))

	properties.Property("sanitizing twice changes nothing", prop.ForAll(
		func(s string) bool {
			once := Sanitize(s, DefaultMaxBaseLength)
			return Sanitize(once, DefaultMaxBaseLength) == once
		},
		gen.AnyString(),
	))

	properties.Property("names always carry the extension and stamp", prop.ForAll(
		func(s string, index int) bool {
			name := NameFor(s, index, "STAMP", ".png")
			return strings.HasSuffix(name, "_STAMP.png") && len(name) > len("_STAMP.png")
		},
		gen.AnyString(),
		gen.IntRange(1, 1000),
	))

	properties.TestingRun(t)
}

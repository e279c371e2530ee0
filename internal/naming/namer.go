// Package naming derives collision-safe file names for extracted matrices.
package naming

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	// DefaultMaxBaseLength caps the sanitised text part of a name, in runes.
	DefaultMaxBaseLength = 64
	// StampLayout formats run stamps (UTC, millisecond resolution).
	StampLayout = "20060102T150405.000"
	// maxReserveAttempts bounds the search for a free name in Reserve.
	maxReserveAttempts = 10000
)

const illegalChars = `<>:"/\|?*`

var reservedNames = map[string]bool{
	"CON": true, "PRN": true, "AUX": true, "NUL": true,
	"COM1": true, "COM2": true, "COM3": true, "COM4": true, "COM5": true,
	"COM6": true, "COM7": true, "COM8": true, "COM9": true,
	"LPT1": true, "LPT2": true, "LPT3": true, "LPT4": true, "LPT5": true,
	"LPT6": true, "LPT7": true, "LPT8": true, "LPT9": true,
}

// Sanitize turns decoded text into a string usable as part of a file name
// on every common file system. It returns "" when nothing usable remains.
func Sanitize(text string, maxLen int) string {
	if maxLen <= 0 {
		maxLen = DefaultMaxBaseLength
	}

	t := transform.Chain(
		norm.NFKD,
		runes.Remove(runes.In(unicode.Mn)),
		runes.Map(func(r rune) rune {
			if r == utf8.RuneError || unicode.IsControl(r) || strings.ContainsRune(illegalChars, r) {
				return '_'
			}
			return r
		}),
	)
	s, _, err := transform.String(t, text)
	if err != nil {
		return ""
	}

	s = trimName(s)
	if utf8.RuneCountInString(s) > maxLen {
		s = trimName(string([]rune(s)[:maxLen]))
	}
	if s == "" {
		return ""
	}

	stem := s
	if i := strings.IndexByte(stem, '.'); i >= 0 {
		stem = stem[:i]
	}
	if reservedNames[strings.ToUpper(strings.TrimSpace(stem))] {
		if r := []rune(s); len(r) >= maxLen {
			s = strings.TrimRight(string(r[:maxLen-1]), " ._")
		}
		s = "_" + s
	}
	return s
}

func trimName(s string) string {
	return strings.Trim(s, " ._")
}

// BaseFor returns the sanitised text, or matrix{index} when the text is
// empty or sanitises to nothing.
func BaseFor(text string, index, maxLen int) string {
	if base := Sanitize(text, maxLen); base != "" {
		return base
	}
	return fmt.Sprintf("matrix%d", index)
}

// NameFor builds <base>_<stamp><ext>. ext gains a leading dot if missing.
func NameFor(text string, index int, stamp, ext string) string {
	return BaseFor(text, index, DefaultMaxBaseLength) + "_" + stamp + normalizeExt(ext)
}

func normalizeExt(ext string) string {
	if ext != "" && !strings.HasPrefix(ext, ".") {
		return "." + ext
	}
	return ext
}

// Clock returns the current time.
type Clock func() time.Time

// Options configures a Namer.
type Options struct {
	Clock         Clock
	MaxBaseLength int
}

// Namer hands out names for one batch run. The stamp of every name is the
// run stamp followed by a per-run sequence number, so names never repeat
// within a run and runs started at different milliseconds never collide.
type Namer struct {
	mu       sync.Mutex
	runStamp string
	maxLen   int
	seq      int
}

// New creates a Namer whose run stamp is taken from opts.Clock now.
func New(opts Options) *Namer {
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	maxLen := opts.MaxBaseLength
	if maxLen <= 0 {
		maxLen = DefaultMaxBaseLength
	}
	return &Namer{
		runStamp: clock().UTC().Format(StampLayout),
		maxLen:   maxLen,
	}
}

// RunStamp returns the stamp shared by all names of this run.
func (n *Namer) RunStamp() string { return n.runStamp }

// Next returns the next name for a decoded text.
func (n *Namer) Next(text string, index int, ext string) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.nextLocked(text, index, ext)
}

func (n *Namer) nextLocked(text string, index int, ext string) string {
	n.seq++
	stamp := fmt.Sprintf("%s-%04d", n.runStamp, n.seq)
	return BaseFor(text, index, n.maxLen) + "_" + stamp + normalizeExt(ext)
}

// Reserve returns the next name that does not exist in dir yet. A missing
// dir counts as empty.
func (n *Namer) Reserve(dir, text string, index int, ext string) (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	for range maxReserveAttempts {
		name := n.nextLocked(text, index, ext)
		_, err := os.Lstat(filepath.Join(dir, name))
		if errors.Is(err, fs.ErrNotExist) {
			return name, nil
		}
		if err != nil {
			return "", fmt.Errorf("check %s: %w", name, err)
		}
	}
	return "", fmt.Errorf("no free name in %s after %d attempts", dir, maxReserveAttempts)
}

package playback

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/roach88/muezzin/internal/fault"
)

// DefaultFallbackSound is played when the requested sound cannot be found.
const DefaultFallbackSound = "azan1"

// Extensions tried, in order, when looking a sound name up in the sounds
// directory.
var Extensions = []string{".mp3", ".wav", ".ogg", ".flac"}

// Source is a resolved, playable sound.
type Source struct {
	Path string `json:"path"`
	// Name is the logical sound name the path was resolved from, or empty
	// for a caller-supplied file.
	Name string `json:"name,omitempty"`
	// Fallback is set when the requested sound was missing.
	Fallback bool `json:"fallback,omitempty"`
}

// SourceResolver maps a play request to a playable file.
type SourceResolver interface {
	Resolve(req Request) (Source, error)
}

// Resolver resolves sounds against a directory of bundled files.
type Resolver struct {
	dir      string
	fallback string
	stat     func(string) (fs.FileInfo, error)
}

// NewResolver creates a Resolver over dir. An empty fallback uses
// DefaultFallbackSound.
func NewResolver(dir, fallback string) *Resolver {
	if fallback == "" {
		fallback = DefaultFallbackSound
	}
	return &Resolver{dir: dir, fallback: fallback, stat: os.Stat}
}

// Resolve picks, in order: the request's file path if it exists, the
// normalized sound name in the sounds directory, the fallback sound. If none
// exists it fails with RESOURCE_UNAVAILABLE.
func (r *Resolver) Resolve(req Request) (Source, error) {
	if req.SoundFile != "" && r.isFile(req.SoundFile) {
		return Source{Path: req.SoundFile}, nil
	}

	name := req.Sound
	if name == "" && req.SoundFile != "" {
		// A missing path may still name a bundled sound: "/x/azan2.mp3".
		name = strings.TrimSuffix(filepath.Base(req.SoundFile), filepath.Ext(req.SoundFile))
	}
	if key := Normalize(name); key != "" {
		if path, ok := r.lookup(key); ok {
			return Source{Path: path, Name: key}, nil
		}
	}

	if key := Normalize(r.fallback); key != "" {
		if path, ok := r.lookup(key); ok {
			return Source{Path: path, Name: key, Fallback: true}, nil
		}
	}

	return Source{}, fault.New(fault.ResourceUnavailable, "resolve",
		fmt.Sprintf("no playable sound for %q", firstNonEmpty(req.Sound, req.SoundFile))).
		With("dir", r.dir)
}

func (r *Resolver) lookup(key string) (string, bool) {
	if r.dir == "" {
		return "", false
	}
	for _, ext := range Extensions {
		path := filepath.Join(r.dir, key+ext)
		if r.isFile(path) {
			return path, true
		}
	}
	return "", false
}

func (r *Resolver) isFile(path string) bool {
	info, err := r.stat(path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular()
}

// Normalize maps a display name to a resource key: accents are stripped,
// letters lowercased, every run of other characters becomes one underscore,
// and underscores at the edges are trimmed.
//
//	"Rabeh Ibn Darah Al Jazairi - Adan Al Jazaer" -> "rabeh_ibn_darah_al_jazairi_adan_al_jazaer"
func Normalize(name string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)))
	folded, _, err := transform.String(t, name)
	if err != nil {
		folded = name
	}
	folded = strings.ToLower(folded)

	var b strings.Builder
	b.Grow(len(folded))
	gap := false
	for _, r := range folded {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if gap && b.Len() > 0 {
				b.WriteByte('_')
			}
			gap = false
			b.WriteRune(r)
			continue
		}
		gap = true
	}
	return b.String()
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

package transcript

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"github.com/jonathan/transcript-archiver/internal/types"
)

// Strategy is one transcript tier. Select returns the track the tier would
// use, and Label names the transcript type recorded for it.
type Strategy struct {
	Name   string
	Select func(tracks []Track, target string) (Track, bool)
	Label  func(Track) string
}

// DefaultStrategies returns the four tiers in priority order:
// manual in the target language, auto-generated in the target language,
// any variant of the target language, then the first track in any language.
func DefaultStrategies() []Strategy {
	return []Strategy{
		{
			Name: "manual",
			Select: func(tracks []Track, target string) (Track, bool) {
				return first(tracks, func(t Track) bool { return !t.Generated && sameCode(t.LanguageCode, target) })
			},
			Label: func(Track) string { return types.TranscriptManual },
		},
		{
			Name: "generated",
			Select: func(tracks []Track, target string) (Track, bool) {
				return first(tracks, func(t Track) bool { return t.Generated && sameCode(t.LanguageCode, target) })
			},
			Label: func(Track) string { return types.TranscriptAutoGenerated },
		},
		{
			Name: "language-variant",
			Select: func(tracks []Track, target string) (Track, bool) {
				if t, ok := first(tracks, func(t Track) bool { return !t.Generated && sameBase(t.LanguageCode, target) }); ok {
					return t, true
				}
				return first(tracks, func(t Track) bool { return sameBase(t.LanguageCode, target) })
			},
			Label: kindLabel,
		},
		{
			Name: "any",
			Select: func(tracks []Track, _ string) (Track, bool) {
				if len(tracks) == 0 {
					return Track{}, false
				}
				return tracks[0], true
			},
			Label: func(t Track) string { return fmt.Sprintf("auto (%s)", languageName(t)) },
		},
	}
}

func kindLabel(t Track) string {
	if t.Generated {
		return types.TranscriptAutoGenerated
	}
	return types.TranscriptManual
}

func first(tracks []Track, match func(Track) bool) (Track, bool) {
	for _, t := range tracks {
		if match(t) {
			return t, true
		}
	}
	return Track{}, false
}

func sameCode(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// sameBase compares the base languages of two BCP 47 tags, so en-GB matches en.
func sameBase(code, target string) bool {
	a, err := language.Parse(code)
	if err != nil {
		return false
	}
	b, err := language.Parse(target)
	if err != nil {
		return false
	}
	ab, _ := a.Base()
	bb, _ := b.Base()
	return ab == bb
}

// languageName prefers the track's own display name and falls back to the
// English name of its tag.
func languageName(t Track) string {
	if t.Name != "" {
		return t.Name
	}
	if tag, err := language.Parse(t.LanguageCode); err == nil {
		if name := display.English.Tags().Name(tag); name != "" {
			return name
		}
	}
	return t.LanguageCode
}

package engine

import (
	"fmt"
	"io"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"github.com/faiface/beep"
	"github.com/faiface/beep/flac"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/wav"
	"github.com/samber/lo"

	playerrors "github.com/jscyril/feedaudio/pkg/errors"
)

// SupportedFormats returns list of supported audio formats
func SupportedFormats() []string {
	return []string{".mp3", ".wav", ".flac"}
}

// IsSupported checks if a source format is supported
func IsSupported(source string) bool {
	return lo.Contains(SupportedFormats(), Ext(source))
}

// Ext returns the lower-cased extension of a path or URL, ignoring any
// query string or fragment.
func Ext(source string) string {
	if u, err := url.Parse(source); err == nil && u.Scheme != "" && u.Path != "" {
		return strings.ToLower(path.Ext(u.Path))
	}
	return strings.ToLower(filepath.Ext(source))
}

// DecodeAudio decodes an audio source based on its extension
func DecodeAudio(r io.ReadSeekCloser, source string) (beep.StreamSeekCloser, beep.Format, error) {
	switch ext := Ext(source); ext {
	case ".mp3":
		return mp3.Decode(r)
	case ".wav":
		return wav.Decode(r)
	case ".flac":
		return flac.Decode(r)
	default:
		return nil, beep.Format{}, fmt.Errorf("%w: %q", playerrors.ErrInvalidFormat, ext)
	}
}

package mediatype

import (
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Type is the kind of a media resource
type Type string

const (
	Image Type = "image"
	Audio Type = "audio"
	Video Type = "video"
)

// All lists the accepted media types in display order
var All = []Type{Image, Audio, Video}

// Valid reports whether t is one of the accepted media types
func (t Type) Valid() bool {
	switch t {
	case Image, Audio, Video:
		return true
	}
	return false
}

// Parse converts user input into a Type
func Parse(s string) (Type, error) {
	t := Type(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("invalid media type '%s', must be one of: image, audio, video", s)
	}
	return t, nil
}

// Detection is the result of sniffing file content
type Detection struct {
	Type        Type
	ContentType string
	Extension   string
}

// Detect sniffs the content of a file and maps its MIME family to a Type.
// The ContentType is always populated, even when the family is not a media type.
func Detect(data []byte) (Detection, error) {
	mime := mimetype.Detect(data)
	d := Detection{
		ContentType: mime.String(),
		Extension:   mime.Extension(),
	}

	// Walk up the MIME tree: some formats (e.g. audio/x-m4a) only
	// carry their family on a parent node
	for m := mime; m != nil; m = m.Parent() {
		family, _, _ := strings.Cut(m.String(), "/")
		if t := Type(family); t.Valid() {
			d.Type = t
			return d, nil
		}
	}

	return d, fmt.Errorf("unsupported content type %s: expected image, audio or video", d.ContentType)
}

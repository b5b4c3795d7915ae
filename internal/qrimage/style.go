package qrimage

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image/color"
	"strconv"
	"strings"

	"github.com/MrSnakeDoc/qrlink/internal/domain"
)

// Style bounds and defaults.
const (
	DefaultSize       = 256
	MinSize           = 32
	MaxSize           = 2048
	DefaultMargin     = 4
	MaxMargin         = 32
	DefaultFormat     = FormatPNG
	DefaultLevel      = "M"
	DefaultForeground = "#000000"
	DefaultBackground = "#FFFFFF"
	maxLogoLength     = 2048
)

// Raster formats.
const (
	FormatPNG  = "PNG"
	FormatGIF  = "GIF"
	FormatJPEG = "JPEG"
)

// Style parameterizes a render. Zero values mean "use the default".
type Style struct {
	Size            int    `json:"size,omitempty"`
	Format          string `json:"format,omitempty"`
	ErrorCorrection string `json:"errorCorrectionLevel,omitempty"`
	Margin          *int   `json:"margin,omitempty"`
	Foreground      string `json:"foreground,omitempty"`
	Background      string `json:"background,omitempty"`
	// Logo is accepted and takes part in the fingerprint but is not drawn.
	Logo string `json:"logo,omitempty"`
}

// DefaultStyle is 256px PNG, level M, 4-module quiet zone, black on white.
func DefaultStyle() Style {
	m := DefaultMargin
	return Style{
		Size:            DefaultSize,
		Format:          DefaultFormat,
		ErrorCorrection: DefaultLevel,
		Margin:          &m,
		Foreground:      DefaultForeground,
		Background:      DefaultBackground,
	}
}

// Preset returns a named style. ok is false for unknown names.
func Preset(name string) (Style, bool) {
	s := DefaultStyle()
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "default":
	case "small":
		s.Size = 128
	case "large":
		s.Size = 512
		s.ErrorCorrection = "H"
		m := 8
		s.Margin = &m
	case "high-contrast", "highcontrast":
		s.ErrorCorrection = "H"
	default:
		return Style{}, false
	}
	return s, true
}

// Normalize fills defaults and canonicalizes every field.
// Values are not range-checked; see Validate.
func (s Style) Normalize() Style {
	if s.Size == 0 {
		s.Size = DefaultSize
	}
	s.Format = strings.ToUpper(strings.TrimSpace(s.Format))
	switch s.Format {
	case "":
		s.Format = DefaultFormat
	case "JPG":
		s.Format = FormatJPEG
	}
	s.ErrorCorrection = strings.ToUpper(strings.TrimSpace(s.ErrorCorrection))
	if s.ErrorCorrection == "" {
		s.ErrorCorrection = DefaultLevel
	}
	if s.Margin == nil {
		m := DefaultMargin
		s.Margin = &m
	} else {
		m := *s.Margin
		s.Margin = &m
	}
	s.Foreground = canonicalColor(s.Foreground, DefaultForeground)
	s.Background = canonicalColor(s.Background, DefaultBackground)
	s.Logo = strings.TrimSpace(s.Logo)
	return s
}

// Validate checks a normalized style and wraps domain.ErrInvalidStyle.
func (s Style) Validate() error {
	if s.Size < MinSize || s.Size > MaxSize {
		return fmt.Errorf("%w: size %d outside %d..%d", domain.ErrInvalidStyle, s.Size, MinSize, MaxSize)
	}
	switch s.Format {
	case FormatPNG, FormatGIF, FormatJPEG:
	default:
		return fmt.Errorf("%w: unsupported format %q", domain.ErrInvalidStyle, s.Format)
	}
	if _, ok := levels[s.ErrorCorrection]; !ok {
		return fmt.Errorf("%w: error correction level %q", domain.ErrInvalidStyle, s.ErrorCorrection)
	}
	if s.Margin == nil || *s.Margin < 0 || *s.Margin > MaxMargin {
		return fmt.Errorf("%w: margin outside 0..%d", domain.ErrInvalidStyle, MaxMargin)
	}
	if _, err := parseColor(s.Foreground); err != nil {
		return fmt.Errorf("%w: foreground: %v", domain.ErrInvalidStyle, err)
	}
	if _, err := parseColor(s.Background); err != nil {
		return fmt.Errorf("%w: background: %v", domain.ErrInvalidStyle, err)
	}
	if s.Foreground == s.Background {
		return fmt.Errorf("%w: foreground and background are identical", domain.ErrInvalidStyle)
	}
	if len(s.Logo) > maxLogoLength {
		return fmt.Errorf("%w: logo reference too long", domain.ErrInvalidStyle)
	}
	return nil
}

// Canonical is the fixed-order textual form of a normalized style.
func (s Style) Canonical() string {
	margin := DefaultMargin
	if s.Margin != nil {
		margin = *s.Margin
	}
	var b strings.Builder
	b.WriteString("size=" + strconv.Itoa(s.Size))
	b.WriteString(";format=" + s.Format)
	b.WriteString(";ec=" + s.ErrorCorrection)
	b.WriteString(";margin=" + strconv.Itoa(margin))
	b.WriteString(";fg=" + s.Foreground)
	b.WriteString(";bg=" + s.Background)
	b.WriteString(";logo=" + s.Logo)
	return b.String()
}

// Fingerprint identifies equivalent styles. Call on a normalized style.
func (s Style) Fingerprint() string {
	sum := sha256.Sum256([]byte(s.Canonical()))
	return hex.EncodeToString(sum[:16])
}

// ContentType of the encoded bytes.
func (s Style) ContentType() string {
	switch s.Format {
	case FormatGIF:
		return "image/gif"
	case FormatJPEG:
		return "image/jpeg"
	default:
		return "image/png"
	}
}

// Extension is the file extension used in downloads.
func (s Style) Extension() string {
	switch s.Format {
	case FormatGIF:
		return "gif"
	case FormatJPEG:
		return "jpg"
	default:
		return "png"
	}
}

// canonicalColor uppercases, adds a missing '#', expands #RGB to #RRGGBB.
// Unparseable input is returned as-is so Validate can report it.
func canonicalColor(raw, def string) string {
	c := strings.ToUpper(strings.TrimSpace(raw))
	if c == "" {
		return def
	}
	if !strings.HasPrefix(c, "#") {
		c = "#" + c
	}
	if len(c) == 4 {
		c = "#" + strings.Repeat(c[1:2], 2) + strings.Repeat(c[2:3], 2) + strings.Repeat(c[3:4], 2)
	}
	return c
}

func parseColor(c string) (color.RGBA, error) {
	if len(c) != 7 || c[0] != '#' {
		return color.RGBA{}, fmt.Errorf("color %q is not #RRGGBB", c)
	}
	v, err := strconv.ParseUint(c[1:], 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("color %q is not hexadecimal", c)
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xFF}, nil
}

package qrimage

import (
	"errors"
	"testing"

	"github.com/MrSnakeDoc/qrlink/internal/domain"
)

func intPtr(v int) *int { return &v }

func TestNormalizeFillsDefaults(t *testing.T) {
	got := Style{}.Normalize()
	want := DefaultStyle()

	if got.Canonical() != want.Canonical() {
		t.Errorf("Normalize() = %s, want %s", got.Canonical(), want.Canonical())
	}
}

func TestFingerprintIsCanonical(t *testing.T) {
	tests := []struct {
		name string
		a, b Style
		same bool
	}{
		{"zero vs explicit defaults", Style{}, DefaultStyle(), true},
		{"case and short colors", Style{Foreground: "#fff", Background: "000", Format: "png", ErrorCorrection: "h"},
			Style{Foreground: "#FFFFFF", Background: "#000000", Format: "PNG", ErrorCorrection: "H"}, true},
		{"jpg alias", Style{Format: "jpg"}, Style{Format: "JPEG"}, true},
		{"explicit zero margin differs from default", Style{Margin: intPtr(0)}, Style{}, false},
		{"size differs", Style{Size: 128}, Style{Size: 256}, false},
		{"logo differs", Style{Logo: "brand.png"}, Style{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fa := tt.a.Normalize().Fingerprint()
			fb := tt.b.Normalize().Fingerprint()
			if (fa == fb) != tt.same {
				t.Errorf("Fingerprint equality = %v, want %v (%s vs %s)", fa == fb, tt.same,
					tt.a.Normalize().Canonical(), tt.b.Normalize().Canonical())
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		style   Style
		wantErr bool
	}{
		{"defaults", Style{}, false},
		{"min size", Style{Size: MinSize}, false},
		{"max size", Style{Size: MaxSize}, false},
		{"too small", Style{Size: 31}, true},
		{"too large", Style{Size: 4096}, true},
		{"negative size", Style{Size: -1}, true},
		{"bad level", Style{ErrorCorrection: "X"}, true},
		{"bad format", Style{Format: "BMP"}, true},
		{"gif", Style{Format: "gif"}, false},
		{"negative margin", Style{Margin: intPtr(-1)}, true},
		{"huge margin", Style{Margin: intPtr(MaxMargin + 1)}, true},
		{"bad color", Style{Foreground: "#GG0000"}, true},
		{"bad color length", Style{Background: "#12345"}, true},
		{"same colors", Style{Foreground: "#123456", Background: "#123456"}, true},
		{"logo accepted", Style{Logo: "https://cdn.example.com/logo.png"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.style.Normalize().Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, domain.ErrInvalidStyle) {
				t.Errorf("Validate() error = %v, want ErrInvalidStyle", err)
			}
		})
	}
}

func TestPresets(t *testing.T) {
	tests := []struct {
		name   string
		size   int
		level  string
		margin int
	}{
		{"default", 256, "M", 4},
		{"small", 128, "M", 4},
		{"large", 512, "H", 8},
		{"high-contrast", 256, "H", 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, ok := Preset(tt.name)
			if !ok {
				t.Fatalf("Preset(%q) not found", tt.name)
			}
			if s.Size != tt.size || s.ErrorCorrection != tt.level || *s.Margin != tt.margin {
				t.Errorf("Preset(%q) = %s", tt.name, s.Canonical())
			}
		})
	}

	if _, ok := Preset("neon"); ok {
		t.Error("Preset(neon) should not exist")
	}
}

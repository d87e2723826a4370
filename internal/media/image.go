package media

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"image"
	"image/color"
	"io"
	"math"
	"os"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/kolesa-team/go-webp/encoder"
	"github.com/kolesa-team/go-webp/webp"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	// Register decoders for cheap dimension reads of cached outputs.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"lantern/internal/config"
)

// errOversized marks a decode refused by the pixel-count guard. Callers treat
// it as a skippable per-item condition, never a fatal build error.
var errOversized = errors.New("image exceeds configured pixel limit")

// decodeGuarded opens and decodes an image after checking its declared
// dimensions against the pixel budget. maxPixels <= 0 disables the guard.
func decodeGuarded(path string, maxPixels int64) (image.Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	cfg, _, err := image.DecodeConfig(file)
	if err != nil {
		return nil, fmt.Errorf("decode header: %w", err)
	}
	if maxPixels > 0 && int64(cfg.Width)*int64(cfg.Height) > maxPixels {
		return nil, fmt.Errorf("%w: %dx%d", errOversized, cfg.Width, cfg.Height)
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewind for decode: %w", err)
	}
	img, err := imaging.Decode(file, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}

// imageDimensions reads only the header of an existing file.
func imageDimensions(path string) (int, int, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer file.Close()

	cfg, _, err := image.DecodeConfig(file)
	if err != nil {
		return 0, 0, fmt.Errorf("decode header: %w", err)
	}
	return cfg.Width, cfg.Height, nil
}

// targetSize computes the aspect-preserving output size for a profile.
// Scaling never exceeds 1.0: derivatives are downscaled or left at the
// original size, never upscaled. The second return is false when no resize
// is needed.
func targetSize(width, height int, profile config.Profile) (int, int, bool) {
	if profile.Width <= 0 && profile.Height <= 0 {
		return width, height, false
	}
	scale := 1.0
	if profile.Width > 0 {
		scale = math.Min(scale, float64(profile.Width)/float64(width))
	}
	if profile.Height > 0 {
		scale = math.Min(scale, float64(profile.Height)/float64(height))
	}
	if scale >= 1.0 {
		return width, height, false
	}
	tw := int(float64(width) * scale)
	th := int(float64(height) * scale)
	if tw < 1 {
		tw = 1
	}
	if th < 1 {
		th = 1
	}
	return tw, th, true
}

// encodeImage writes img in the requested profile format. Lossy formats honor
// the quality setting; webp goes through the libwebp encoder.
func encodeImage(w io.Writer, img image.Image, format string, quality int) error {
	switch format {
	case "jpg":
		return imaging.Encode(w, img, imaging.JPEG, imaging.JPEGQuality(quality))
	case "png":
		return imaging.Encode(w, img, imaging.PNG)
	case "gif":
		return imaging.Encode(w, img, imaging.GIF)
	case "tiff":
		return imaging.Encode(w, img, imaging.TIFF)
	case "bmp":
		return imaging.Encode(w, img, imaging.BMP)
	case "webp":
		opts, err := encoder.NewLossyEncoderOptions(encoder.PresetDefault, float32(quality))
		if err != nil {
			return fmt.Errorf("webp encoder options: %w", err)
		}
		return webp.Encode(w, img, opts)
	default:
		return fmt.Errorf("unsupported output format %q", format)
	}
}

// applyWatermark tiles the configured text across a rotated overlay and
// composites it onto img. The caller downgrades any error to a warning.
func applyWatermark(img image.Image, wm config.Watermark) (image.Image, error) {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if min(width, height) < max(1, wm.MinSize) {
		return img, nil
	}
	text := strings.TrimSpace(wm.Text)
	if text == "" {
		return img, nil
	}

	tile, err := renderTextTile(text, wm)
	if err != nil {
		return nil, err
	}
	tileBounds := tile.Bounds()
	stepX := int(float64(tileBounds.Dx()) * (1.0 + wm.SpacingRatio))
	stepY := int(float64(tileBounds.Dy()) * (1.0 + wm.SpacingRatio))
	if stepX < 1 || stepY < 1 {
		return nil, errors.New("watermark tile too small")
	}

	// Oversized square canvas so rotation never clips the tiling.
	diag := int(math.Hypot(float64(width), float64(height))) + stepX
	overlay := imaging.New(diag, diag, color.NRGBA{})
	row := 0
	for y := 0; y < diag+stepY; y += stepY {
		offset := 0
		if row%2 == 1 {
			offset = stepX / 2
		}
		for x := -stepX; x < diag+stepX; x += stepX {
			overlay = imaging.Paste(overlay, tile, image.Pt(x+offset, y))
		}
		row++
	}

	rotated := imaging.Rotate(overlay, wm.Angle, color.NRGBA{})
	cropped := imaging.CropCenter(rotated, width, height)
	return imaging.Overlay(img, cropped, image.Pt(0, 0), 1.0), nil
}

// renderTextTile draws one watermark text run at the configured scale with
// the configured color and opacity baked into the alpha channel.
func renderTextTile(text string, wm config.Watermark) (image.Image, error) {
	face := basicfont.Face7x13
	textWidth := font.MeasureString(face, text).Ceil()
	if textWidth < 1 {
		return nil, errors.New("watermark text measures to zero width")
	}
	tileHeight := face.Height + 2

	rgb, err := parseHexColor(wm.Color)
	if err != nil {
		return nil, err
	}
	rgb.A = uint8(wm.Opacity)

	tile := image.NewNRGBA(image.Rect(0, 0, textWidth, tileHeight))
	drawer := font.Drawer{
		Dst:  tile,
		Src:  image.NewUniform(rgb),
		Face: face,
		Dot:  fixed.P(0, face.Ascent),
	}
	drawer.DrawString(text)

	scale := max(1, wm.Scale)
	if scale == 1 {
		return tile, nil
	}
	return imaging.Resize(tile, textWidth*scale, tileHeight*scale, imaging.NearestNeighbor), nil
}

// parseHexColor accepts #RGB and #RRGGBB values.
func parseHexColor(value string) (color.NRGBA, error) {
	text := strings.TrimPrefix(strings.TrimSpace(value), "#")
	var r, g, b uint8
	switch len(text) {
	case 3:
		if _, err := fmt.Sscanf(text, "%1x%1x%1x", &r, &g, &b); err != nil {
			return color.NRGBA{}, fmt.Errorf("parse color %q: %w", value, err)
		}
		r, g, b = r*17, g*17, b*17
	case 6:
		if _, err := fmt.Sscanf(text, "%02x%02x%02x", &r, &g, &b); err != nil {
			return color.NRGBA{}, fmt.Errorf("parse color %q: %w", value, err)
		}
	default:
		return color.NRGBA{}, fmt.Errorf("parse color %q: expected #RGB or #RRGGBB", value)
	}
	return color.NRGBA{R: r, G: g, B: b, A: 255}, nil
}

// embedMetadata injects copyright/license text into an already-encoded
// output: a tEXt chunk per field for PNG, a single COM segment for JPEG.
// Other containers are returned unchanged. The caller downgrades any error
// to a warning.
func embedMetadata(encoded []byte, format string, embed config.Embed) ([]byte, error) {
	fields := embedFields(embed)
	if len(fields) == 0 {
		return encoded, nil
	}
	switch format {
	case "png":
		return embedPNGText(encoded, fields)
	case "jpg":
		return embedJPEGComment(encoded, fields)
	default:
		return encoded, nil
	}
}

type embedField struct {
	key   string
	value string
}

func embedFields(embed config.Embed) []embedField {
	fields := make([]embedField, 0, 4)
	if v := strings.TrimSpace(embed.Artist); v != "" {
		fields = append(fields, embedField{"Author", v})
	}
	if v := strings.TrimSpace(embed.Copyright); v != "" {
		fields = append(fields, embedField{"Copyright", v})
	}
	if v := strings.TrimSpace(embed.License); v != "" {
		fields = append(fields, embedField{"License", v})
	}
	if v := strings.TrimSpace(embed.URL); v != "" {
		fields = append(fields, embedField{"URL", v})
	}
	return fields
}

var pngSignature = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

// embedPNGText inserts tEXt chunks immediately after IHDR.
func embedPNGText(encoded []byte, fields []embedField) ([]byte, error) {
	if !bytes.HasPrefix(encoded, pngSignature) {
		return nil, errors.New("not a PNG stream")
	}
	if len(encoded) < len(pngSignature)+8 {
		return nil, errors.New("truncated PNG stream")
	}
	ihdrLen := binary.BigEndian.Uint32(encoded[len(pngSignature):])
	insertAt := len(pngSignature) + 8 + int(ihdrLen) + 4
	if insertAt > len(encoded) {
		return nil, errors.New("truncated PNG IHDR chunk")
	}

	var chunks bytes.Buffer
	for _, field := range fields {
		payload := append([]byte(field.key), 0)
		payload = append(payload, []byte(field.value)...)
		var length [4]byte
		binary.BigEndian.PutUint32(length[:], uint32(len(payload)))
		chunks.Write(length[:])
		body := append([]byte("tEXt"), payload...)
		chunks.Write(body)
		var crc [4]byte
		binary.BigEndian.PutUint32(crc[:], crc32.ChecksumIEEE(body))
		chunks.Write(crc[:])
	}

	result := make([]byte, 0, len(encoded)+chunks.Len())
	result = append(result, encoded[:insertAt]...)
	result = append(result, chunks.Bytes()...)
	result = append(result, encoded[insertAt:]...)
	return result, nil
}

// embedJPEGComment inserts one COM segment right after the SOI marker.
func embedJPEGComment(encoded []byte, fields []embedField) ([]byte, error) {
	if len(encoded) < 2 || encoded[0] != 0xFF || encoded[1] != 0xD8 {
		return nil, errors.New("not a JPEG stream")
	}
	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, field.key+": "+field.value)
	}
	comment := []byte(strings.Join(parts, "; "))
	if len(comment)+2 > 0xFFFF {
		return nil, errors.New("metadata comment too long for a JPEG segment")
	}

	segment := make([]byte, 0, len(comment)+4)
	segment = append(segment, 0xFF, 0xFE)
	var length [2]byte
	binary.BigEndian.PutUint16(length[:], uint16(len(comment)+2))
	segment = append(segment, length[:]...)
	segment = append(segment, comment...)

	result := make([]byte, 0, len(encoded)+len(segment))
	result = append(result, encoded[:2]...)
	result = append(result, segment...)
	result = append(result, encoded[2:]...)
	return result, nil
}

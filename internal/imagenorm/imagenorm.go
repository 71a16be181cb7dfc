package imagenorm

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"net/http"
	"strings"

	_ "image/gif"
	_ "image/png"

	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const (
	// MaxLongestSide is the pixel ceiling for the longest image dimension.
	MaxLongestSide = 1024
	// MaxEncodedBytes is the byte ceiling for a pass-through image.
	MaxEncodedBytes = 512 << 10
	// CanonicalContentType is the output format all images converge to.
	CanonicalContentType = "image/jpeg"

	jpegQuality = 85
)

// Action is the normalization verdict.
type Action string

const (
	ActionOK     Action = "ok"
	ActionReject Action = "reject"
)

// Reason explains the verdict.
type Reason string

const (
	ReasonAlreadyOK         Reason = "already_ok"
	ReasonResized           Reason = "resized"
	ReasonConverted         Reason = "converted"
	ReasonDecodeFailed      Reason = "decode_failed"
	ReasonUnsupportedFormat Reason = "unsupported_format"
)

// Result is the immutable outcome of one normalization pass.
type Result struct {
	Data                  []byte
	ContentType           string
	Action                Action
	Reason                Reason
	OriginalLongestSide   int
	NormalizedLongestSide int
	OriginalBytes         int
	NormalizedBytes       int
}

var supportedTypes = map[string]string{
	"image/jpeg": "jpeg",
	"image/png":  "png",
	"image/gif":  "gif",
	"image/webp": "webp",
}

// Normalize decodes, validates and, when needed, resizes and re-encodes an
// image into the canonical JPEG format. It never returns an error: malformed
// input yields a reject result so callers have a single uniform path.
func Normalize(data []byte, declaredType string) Result {
	res := Result{OriginalBytes: len(data)}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		res.Action = ActionReject
		res.Reason = classifyDecodeFailure(data, declaredType)
		return res
	}

	if _, ok := supportedTypes["image/"+format]; !ok {
		res.Action = ActionReject
		res.Reason = ReasonUnsupportedFormat
		return res
	}

	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	longest := width
	if height > longest {
		longest = height
	}
	res.OriginalLongestSide = longest

	if longest <= MaxLongestSide && len(data) <= MaxEncodedBytes && isCanonicalMode(img, format) {
		res.Data = data
		res.ContentType = CanonicalContentType
		res.Action = ActionOK
		res.Reason = ReasonAlreadyOK
		res.NormalizedLongestSide = longest
		res.NormalizedBytes = len(data)
		return res
	}

	targetW, targetH := width, height
	if longest > MaxLongestSide {
		scale := float64(MaxLongestSide) / float64(longest)
		targetW = int(float64(width)*scale + 0.5)
		targetH = int(float64(height)*scale + 0.5)
		if targetW < 1 {
			targetW = 1
		}
		if targetH < 1 {
			targetH = 1
		}
	}

	flat := flattenToRGB(img, targetW, targetH)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, flat, &jpeg.Options{Quality: jpegQuality}); err != nil {
		res.Action = ActionReject
		res.Reason = ReasonDecodeFailed
		return res
	}

	res.Data = buf.Bytes()
	res.ContentType = CanonicalContentType
	res.Action = ActionOK
	if targetW != width || targetH != height {
		res.Reason = ReasonResized
	} else {
		res.Reason = ReasonConverted
	}
	if targetW > targetH {
		res.NormalizedLongestSide = targetW
	} else {
		res.NormalizedLongestSide = targetH
	}
	res.NormalizedBytes = buf.Len()
	return res
}

// classifyDecodeFailure distinguishes a recognizable-but-unsupported codec
// from corrupt bytes of a supported format.
func classifyDecodeFailure(data []byte, declaredType string) Reason {
	sniffed := http.DetectContentType(data)
	if _, ok := supportedTypes[sniffed]; !ok && strings.HasPrefix(sniffed, "image/") {
		return ReasonUnsupportedFormat
	}
	declared := strings.ToLower(strings.TrimSpace(declaredType))
	if i := strings.Index(declared, ";"); i >= 0 {
		declared = strings.TrimSpace(declared[:i])
	}
	if _, ok := supportedTypes[declared]; !ok && strings.HasPrefix(declared, "image/") {
		return ReasonUnsupportedFormat
	}
	return ReasonDecodeFailed
}

// isCanonicalMode reports whether the image can pass through unchanged: a
// JPEG already in a plain RGB-family color model.
func isCanonicalMode(img image.Image, format string) bool {
	if format != "jpeg" {
		return false
	}
	switch img.(type) {
	case *image.YCbCr, *image.RGBA, *image.NRGBA, *image.Gray:
		return true
	}
	return false
}

// flattenToRGB scales the image to the target size and composites any alpha
// channel onto a white background.
func flattenToRGB(img image.Image, width, height int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	if width == img.Bounds().Dx() && height == img.Bounds().Dy() {
		draw.Draw(dst, dst.Bounds(), img, img.Bounds().Min, draw.Over)
		return dst
	}
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), xdraw.Over, nil)
	return dst
}

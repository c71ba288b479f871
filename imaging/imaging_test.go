package imaging

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"circus-pes/apperr"
)

const testMaxPixels = 40_000_000

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.NRGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestAllowedSniffsContentNotName(t *testing.T) {
	ct, ok := Allowed(pngBytes(t, 4, 4))
	assert.True(t, ok)
	assert.Equal(t, "image/png", ct)

	ct, ok = Allowed([]byte("<html><body>definitely a jpg</body></html>"))
	assert.False(t, ok)
	assert.Contains(t, ct, "text/html")

	_, ok = Allowed([]byte("GIF89a\x01\x00\x01\x00\x00\x00\x00"))
	assert.False(t, ok)
}

func TestPreviewScalesDownToMaxWidth(t *testing.T) {
	out, err := Preview(pngBytes(t, 2000, 1000), 1000, testMaxPixels)
	require.NoError(t, err)

	contentType, ok := Allowed(out)
	assert.True(t, ok)
	assert.Equal(t, PreviewContentType, contentType)
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, 1000, cfg.Width)
	assert.Equal(t, 500, cfg.Height)
}

func TestPreviewNeverUpscales(t *testing.T) {
	out, err := Preview(pngBytes(t, 300, 200), 1000, testMaxPixels)
	require.NoError(t, err)

	cfg, err := jpeg.DecodeConfig(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, 300, cfg.Width)
	assert.Equal(t, 200, cfg.Height)
}

func TestPreviewRejectsGarbage(t *testing.T) {
	_, err := Preview([]byte("not an image"), 1000, testMaxPixels)
	require.Error(t, err)
	assert.True(t, apperr.BadInput.Has(err))
}

// withDeclaredSize rewrites the IHDR dimensions of a PNG, leaving the
// pixel data of the original image in place.
func withDeclaredSize(t *testing.T, data []byte, w, h uint32) []byte {
	t.Helper()
	out := append([]byte(nil), data...)
	require.Equal(t, "IHDR", string(out[12:16]))
	binary.BigEndian.PutUint32(out[16:20], w)
	binary.BigEndian.PutUint32(out[20:24], h)
	binary.BigEndian.PutUint32(out[29:33], crc32.ChecksumIEEE(out[12:29]))
	return out
}

func TestPreviewRefusesOversizedDimensions(t *testing.T) {
	huge := withDeclaredSize(t, pngBytes(t, 4, 4), 30000, 30000)

	ct, ok := Allowed(huge)
	require.True(t, ok)
	require.Equal(t, "image/png", ct)

	_, err := Preview(huge, 1000, testMaxPixels)
	require.Error(t, err)
	assert.True(t, apperr.BadInput.Has(err))
	assert.Contains(t, err.Error(), "30000x30000")
}

func TestPreviewAcceptsImageAtPixelBound(t *testing.T) {
	_, err := Preview(pngBytes(t, 40, 25), 1000, 1000)
	require.NoError(t, err)

	_, err = Preview(pngBytes(t, 41, 25), 1000, 1000)
	assert.True(t, apperr.BadInput.Has(err))
}

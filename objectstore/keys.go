package objectstore

import (
	"path"
	"strings"
)

// PreviewExt is the single format previews are re-encoded to.
const PreviewExt = "jpg"

// ImageExtensions lists the extensions an upload can be declared with.
var ImageExtensions = []string{"jpg", "jpeg", "png"}

// NormalizeExt lower-cases ext, strips a leading dot and reports whether
// it is an allowed image extension.
func NormalizeExt(ext string) (string, bool) {
	ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
	for _, allowed := range ImageExtensions {
		if ext == allowed {
			return ext, true
		}
	}
	return "", false
}

func ItemImageKey(patchVersionID, itemID, ext string) string {
	return path.Join("items", patchVersionID, itemID+"."+ext)
}

func ItemPreviewKey(patchVersionID, itemID string) string {
	return path.Join("items", patchVersionID, itemID+".preview."+PreviewExt)
}

func ResponseImageKey(itemID, responseID, ext string) string {
	return path.Join("responses", itemID, responseID+"."+ext)
}

func ResponsePreviewKey(itemID, responseID string) string {
	return path.Join("responses", itemID, responseID+".preview."+PreviewExt)
}

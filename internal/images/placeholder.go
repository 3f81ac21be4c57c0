package images

import "encoding/base64"

// placeholderSVG is the tiny deterministic fallback image substituted when
// real image data is unavailable or cannot be shrunk under the limit.
const placeholderSVG = `<svg xmlns="http://www.w3.org/2000/svg" width="100" height="100">
  <rect width="100" height="100" fill="#f0f0f0"/>
  <text x="50" y="55" font-family="Arial" font-size="12" fill="#666" text-anchor="middle">IMG</text>
</svg>`

// PlaceholderMimeType is the content type of the placeholder payload.
const PlaceholderMimeType = "image/svg+xml"

// Placeholder returns the base64-encoded placeholder image. Deterministic:
// the same payload on every call, well under 1KB.
func Placeholder() string {
	return base64.StdEncoding.EncodeToString([]byte(placeholderSVG))
}

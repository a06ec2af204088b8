package favicon

import (
	"encoding/base64"
	"fmt"
	"hash/fnv"
	"strings"
	"unicode"
)

var palette = [8]string{
	"#e57373", "#f06292", "#ba68c8", "#7986cb",
	"#4fc3f7", "#4db6ac", "#aed581", "#ffb74d",
}

// Placeholder returns a deterministic SVG data URI for host: its first
// letter on a palette colour chosen by an FNV-1a hash of the host.
func Placeholder(host string) string {
	host = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(host)), "www.")

	letter := "?"
	for _, r := range host {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			letter = string(unicode.ToUpper(r))
		}
		break
	}

	h := fnv.New32a()
	_, _ = h.Write([]byte(host))
	color := palette[h.Sum32()%uint32(len(palette))]

	svg := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" width="64" height="64" viewBox="0 0 64 64">`+
		`<rect width="64" height="64" rx="12" fill="%s"/>`+
		`<text x="32" y="32" dy=".35em" text-anchor="middle" font-family="sans-serif" font-size="32" fill="#ffffff">%s</text>`+
		`</svg>`, color, letter)
	return "data:image/svg+xml;base64," + base64.StdEncoding.EncodeToString([]byte(svg))
}

// Package naming canonicalizes layer names and image filenames so the two can be compared.
package naming

import (
	"regexp"
	"strings"
)

// 🖼️ extensions is the recognized image extension set, lowercase and without the dot
var extensions = []string{"png", "jpg", "jpeg", "gif", "webp", "svg", "bmp", "tif", "tiff"}

var (
	extensionPattern = regexp.MustCompile(`(?i)\.(png|jpg|jpeg|gif|webp|svg|bmp|tiff?)$`)
	whitespace       = regexp.MustCompile(`[\s\p{Zs}]+`)
	separators       = regexp.MustCompile(`[-_]`)
	nonAlnum         = regexp.MustCompile(`[^a-z0-9\s]`)
)

// 🔤 Normalize strips a trailing image extension, lowercases, collapses whitespace and trims.
// Stripping repeats while the tidied name still ends in an extension ("logo.png.png"), so
// Normalize(Normalize(n)) == Normalize(n) for every n.
//
//	Normalize("XYZ  1.PNG") == "xyz 1"
func Normalize(name string) string {
	name = tidy(extensionPattern.ReplaceAllString(name, ""))
	for extensionPattern.MatchString(name) {
		name = tidy(extensionPattern.ReplaceAllString(name, ""))
	}
	return name
}

func tidy(name string) string {
	name = strings.ToLower(name)
	name = whitespace.ReplaceAllString(name, " ")
	return strings.TrimSpace(name)
}

// 🌫️ NormalizeFuzzy is Normalize followed by mapping - and _ to spaces and
// dropping anything outside [a-z0-9 ].
func NormalizeFuzzy(name string) string {
	name = Normalize(name)
	name = separators.ReplaceAllString(name, " ")
	name = nonAlnum.ReplaceAllString(name, "")
	return tidy(name)
}

// HasImageExtension reports whether name ends in a recognized image extension.
func HasImageExtension(name string) bool {
	return extensionPattern.MatchString(name)
}

// Extensions returns a copy of the recognized extension set.
func Extensions() []string {
	out := make([]string, len(extensions))
	copy(out, extensions)
	return out
}

package research

import "strings"

// Slugify normalizes a research topic into a filesystem-safe checkpoint key
// prefix: lowercased, with every run of non-alphanumeric characters collapsed
// to a single underscore and leading/trailing underscores trimmed.
//
//	Slugify("Vision Transformers: A Survey!") == "vision_transformers_a_survey"
func Slugify(topic string) string {
	var b strings.Builder
	prevUnderscore := false
	for _, r := range strings.ToLower(topic) {
		alnum := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
		if alnum {
			b.WriteRune(r)
			prevUnderscore = false
			continue
		}
		if !prevUnderscore && b.Len() > 0 {
			b.WriteByte('_')
			prevUnderscore = true
		}
	}
	return strings.Trim(b.String(), "_")
}

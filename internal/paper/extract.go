package paper

import "regexp"

// versionPattern matches 2 to 4 dot separated numeric components. It is not
// anchored on word boundaries so headings like "Paper v1.21.4" still match.
var versionPattern = regexp.MustCompile(`\d+(\.\d+){1,3}`)

// ExtractVersion returns the first version token found in text, scanning
// left to right. It never falls back to a placeholder: a miss is returned as
// a *VersionNotFoundError carrying the offending text.
func ExtractVersion(text string) (string, error) {
	match := versionPattern.FindString(text)
	if match == "" {
		return "", &VersionNotFoundError{Text: text}
	}
	return match, nil
}

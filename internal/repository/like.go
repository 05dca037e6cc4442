package repository

import "strings"

// LikeEscape is the escape character used with LikePattern.
const LikeEscape = `\`

var likeReplacer = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// LikePattern turns a user-supplied search string into a lowercased
// "%...%" LIKE pattern with its own wildcards escaped, so that searching for
// "50%" matches the literal text instead of everything starting with "50".
// Use it with ESCAPE '\'.
func LikePattern(query string) string {
	return "%" + likeReplacer.Replace(strings.ToLower(query)) + "%"
}

package featurize

import "strings"

// keywords is the fixed keyword set whose members are case-folded regardless
// of identifier normalization. It is the union of the reserved words of the
// C family, Java, C#, Go, Python, JavaScript and SQL.
var keywords = map[string]struct{}{}

func init() {
	for _, group := range []string{
		// C / C++
		"auto break case char const continue default do double else enum extern float for goto if inline int long register restrict return short signed sizeof static struct switch typedef union unsigned void volatile while",
		"class delete friend namespace new operator private protected public template this throw try catch typename using virtual",
		// Java / C#
		"abstract boolean byte extends final finally implements import instanceof interface native package super synchronized throws transient",
		"base bool checked decimal delegate event explicit fixed foreach implicit in internal is lock object out override params readonly ref sbyte sealed stackalloc string uint ulong unchecked unsafe ushort var",
		// Go
		"chan defer fallthrough func go map range select type",
		// Python
		"and as assert async await def del elif except from global lambda nonlocal not or pass raise with yield none true false",
		// JavaScript
		"let function typeof undefined null export",
		// SQL and general
		"then end begin select insert update where join on group order by having limit into values set create drop alter table",
	} {
		for _, kw := range strings.Fields(group) {
			keywords[kw] = struct{}{}
		}
	}
}

// IsKeyword reports whether tok is a member of the keyword set, ignoring case.
func IsKeyword(tok string) bool {
	if _, ok := keywords[tok]; ok {
		return true
	}
	_, ok := keywords[strings.ToLower(tok)]
	return ok
}

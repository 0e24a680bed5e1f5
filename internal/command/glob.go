package command

// glob matches Redis-style glob patterns: '*' (any run), '?' (one char),
// '[abc]', '[^abc]', and '[a-z]' ranges. No glob library appears anywhere
// in the retrieval pack, and the stdlib's path.Match rejects the negated
// class form this syntax requires, so the matcher is hand-rolled — see
// DESIGN.md.
//
// An unclosed class (e.g. "[abc") is treated as a literal non-match
// rather than a syntax error, per the open-question decision recorded in
// DESIGN.md.
func globMatch(pattern, s string) bool {
	return globMatchBytes([]byte(pattern), []byte(s))
}

// GlobMatch exposes the matcher above to other packages that need the
// same key-pattern matching rules (internal/acl's key ACL patterns use
// the identical glob syntax as KEYS/SCAN rather than a second dialect).
func GlobMatch(pattern, s string) bool {
	return globMatch(pattern, s)
}

func globMatchBytes(p, s []byte) bool {
	var pi, si int
	var starPi, starSi int = -1, -1

	for si < len(s) {
		if pi < len(p) {
			switch p[pi] {
			case '*':
				starPi, starSi = pi, si
				pi++
				continue
			case '?':
				pi++
				si++
				continue
			case '[':
				end, ok := findClassEnd(p, pi)
				if ok && classMatches(p[pi:end+1], s[si]) {
					pi = end + 1
					si++
					continue
				}
				if ok {
					// well-formed class, didn't match
				}
				// fallthrough to backtrack/fail below
			default:
				if p[pi] == s[si] {
					pi++
					si++
					continue
				}
			}
		}
		if starPi >= 0 {
			starSi++
			pi = starPi + 1
			si = starSi
			continue
		}
		return false
	}
	for pi < len(p) && p[pi] == '*' {
		pi++
	}
	return pi == len(p)
}

// findClassEnd returns the index of the closing ']' for a class starting
// at p[start]=='['. ok is false if unterminated.
func findClassEnd(p []byte, start int) (int, bool) {
	i := start + 1
	if i < len(p) && p[i] == '^' {
		i++
	}
	if i < len(p) && p[i] == ']' {
		i++ // a leading ']' is a literal member, not the terminator
	}
	for i < len(p) {
		if p[i] == ']' {
			return i, true
		}
		i++
	}
	return 0, false
}

func classMatches(class []byte, c byte) bool {
	// class is "[...]" inclusive of brackets.
	body := class[1 : len(class)-1]
	negate := false
	if len(body) > 0 && body[0] == '^' {
		negate = true
		body = body[1:]
	}
	matched := false
	for i := 0; i < len(body); i++ {
		if i+2 < len(body) && body[i+1] == '-' {
			lo, hi := body[i], body[i+2]
			if lo <= c && c <= hi {
				matched = true
			}
			i += 2
			continue
		}
		if body[i] == c {
			matched = true
		}
	}
	if negate {
		return !matched
	}
	return matched
}

package match

// StripDotInner is the unconditional variant of stripdot (spec §4.5):
// while the path begins with "./", drop that prefix and any redundant
// leading slashes that follow; if the result is empty, return ".".
//
// Only a leading run of "./" segments is stripped, per DESIGN NOTES
// open question (b), "a/./b" is left unchanged; this function never
// looks past the string's prefix.
func StripDotInner(s string) string {
	for len(s) >= 2 && s[0] == '.' && s[1] == '/' {
		s = s[2:]
		for len(s) > 0 && s[0] == '/' {
			s = s[1:]
		}
	}
	if s == "" {
		return "."
	}
	return s
}

// StripDot is the variant of StripDotInner gated on the --stripdot/
// --no-stripdot option. When enabled is false, s is returned unchanged
// (cook's str_copy semantics: the caller always gets a value, never
// an error).
func StripDot(s string, enabled bool) string {
	if !enabled {
		return s
	}
	return StripDotInner(s)
}

// StripDotList applies StripDot to every element of a list in place
// semantics (returns a new slice; cook mutates its string_list_ty in
// place, but Go slices of strings are cheap enough to just rebuild).
func StripDotList(ss []string, enabled bool) []string {
	if !enabled {
		return ss
	}
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = StripDotInner(s)
	}
	return out
}

package signature

import "github.com/zjrosen/multidispatch/internal/typetag"

// Supersedes reports whether a is at least as specific as b everywhere, so
// every call matching a also matches b.
func Supersedes(rel typetag.Provider, a, b Signature) bool {
	la, lb := len(a.elems), len(b.elems)
	switch {
	case la < lb:
		// The empty call satisfies a lone variadic.
		return la == 0 && lb == 1 && b.elems[0].IsVariadic()
	case la == lb:
		for i := range a.elems {
			if !isSub(rel, a.elems[i], b.elems[i]) {
				return false
			}
		}
		return true
	}

	p1, p2 := 0, 0
	for p1 < la && p2 < lb {
		ca, cb := a.elems[p1], b.elems[p2]
		switch {
		case !ca.IsVariadic() && !cb.IsVariadic():
			if !isSub(rel, ca, cb) {
				return false
			}
			p1++
			p2++
		case ca.IsVariadic():
			return p2 == lb-1 && isSub(rel, ca, cb)
		default:
			if !isSub(rel, ca, cb) {
				return false
			}
			p1++
		}
	}
	return p2 == lb-1 && p1 == la
}

// Consistent reports whether some argument tuple could match both a and b.
// Two variadic tails are consistent only when they wrap the same types.
func Consistent(rel typetag.Provider, a, b Signature) bool {
	va, vb := a.IsVariadic(), b.IsVariadic()
	fa, fb := len(a.elems), len(b.elems)
	if va {
		fa--
	}
	if vb {
		fb--
	}

	var n int
	switch {
	case va && vb:
		if !a.elems[fa].Equal(b.elems[fb]) {
			return false
		}
		n = max(fa, fb)
	case va:
		if fb < fa {
			return false
		}
		n = fb
	case vb:
		if fa < fb {
			return false
		}
		n = fa
	default:
		if fa != fb {
			return false
		}
		n = fa
	}

	for i := 0; i < n; i++ {
		ea, eb := elementAt(a, fa, i), elementAt(b, fb, i)
		switch {
		case !ea.IsVariadic() && !eb.IsVariadic():
			x, y := ea.tags[0], eb.tags[0]
			if !rel.IsSubtype(x, y) && !rel.IsSubtype(y, x) {
				return false
			}
		case ea.IsVariadic():
			if !overlaps(rel, eb.tags[0], ea) {
				return false
			}
		default:
			if !overlaps(rel, ea.tags[0], eb) {
				return false
			}
		}
	}
	return true
}

func elementAt(s Signature, fixed, i int) Element {
	if i < fixed {
		return s.elems[i]
	}
	return s.elems[len(s.elems)-1]
}

// Ambiguous reports whether a and b can both match some call while neither
// is more specific than the other.
func Ambiguous(rel typetag.Provider, a, b Signature) bool {
	return Consistent(rel, a, b) && !(Supersedes(rel, a, b) || Supersedes(rel, b, a))
}

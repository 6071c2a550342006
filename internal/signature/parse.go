package signature

import (
	"fmt"
	"strings"

	"github.com/zjrosen/multidispatch/internal/typetag"
)

// Parse reads the text form produced by Signature.String, e.g.
// "Int, (Float|Decimal), ...Number". Empty text is the empty signature.
func Parse(text string) (Signature, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return New(), nil
	}
	return ParseElements(strings.Split(text, ","))
}

// ParseElements parses one element per entry, as found in YAML lists.
func ParseElements(parts []string) (Signature, error) {
	elems := make([]Element, 0, len(parts))
	for i, part := range parts {
		e, err := ParseElement(part)
		if err != nil {
			return Signature{}, fmt.Errorf("element %d: %w", i, err)
		}
		elems = append(elems, e)
	}
	return New(elems...), nil
}

// ParseElement parses a single element: "A", "(A|B)", "...A" or "...(A|B)".
func ParseElement(text string) (Element, error) {
	text = strings.TrimSpace(text)
	variadic := strings.HasPrefix(text, VariadicPrefix)
	if variadic {
		text = strings.TrimSpace(text[len(VariadicPrefix):])
	}
	if text == "" {
		return Element{}, fmt.Errorf("%w: empty element", ErrSyntax)
	}

	var tags []typetag.Tag
	if strings.HasPrefix(text, "(") {
		if !strings.HasSuffix(text, ")") {
			return Element{}, fmt.Errorf("%w: unclosed group %q", ErrSyntax, text)
		}
		for _, alt := range strings.Split(text[1:len(text)-1], "|") {
			alt = strings.TrimSpace(alt)
			if err := typetag.ValidName(alt); err != nil {
				return Element{}, fmt.Errorf("%w: %q: %v", ErrSyntax, alt, err)
			}
			tags = append(tags, typetag.Tag(alt))
		}
	} else {
		if err := typetag.ValidName(text); err != nil {
			return Element{}, fmt.Errorf("%w: %q: %v", ErrSyntax, text, err)
		}
		tags = []typetag.Tag{typetag.Tag(text)}
	}

	if variadic {
		return Variadic(tags...), nil
	}
	return Union(tags...), nil
}

// MustParse is Parse for fixtures; it panics on error.
func MustParse(text string) Signature {
	s, err := Parse(text)
	if err != nil {
		panic(err)
	}
	return s
}

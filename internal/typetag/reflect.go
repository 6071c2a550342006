package typetag

import (
	"fmt"
	"reflect"
	"slices"
	"strings"
	"sync"
)

// Reflect derives tags from Go types. A concrete type's supertypes are the
// registered interfaces it implements, then Any. Tags are reflect.Type
// strings, e.g. "int", "*bytes.Buffer", "io.Reader". Characters that
// signature text reserves are percent-escaped, so func(int, string) becomes
// "func%28int%2C string%29".
type Reflect struct {
	mu         sync.RWMutex
	types      map[Tag]reflect.Type
	interfaces []reflect.Type
}

// NewReflect creates a provider that knows the given interfaces.
// Interfaces are passed as nil pointers, e.g. (*io.Reader)(nil).
func NewReflect(ifaces ...any) (*Reflect, error) {
	r := &Reflect{types: make(map[Tag]reflect.Type)}
	for _, iface := range ifaces {
		if err := r.AddInterface(iface); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// AddInterface registers an interface as a supertype candidate.
func (r *Reflect) AddInterface(ptrToIface any) error {
	t := reflect.TypeOf(ptrToIface)
	if t == nil || t.Kind() != reflect.Pointer || t.Elem().Kind() != reflect.Interface {
		return fmt.Errorf("%w: %v", ErrNotAnInterface, t)
	}
	t = t.Elem()

	r.mu.Lock()
	defer r.mu.Unlock()
	tag := tagName(t)
	if _, exists := r.types[tag]; exists {
		return nil
	}
	r.types[tag] = t
	r.interfaces = append(r.interfaces, t)
	return nil
}

// Register makes the Go type of sample known and returns its tag.
func (r *Reflect) Register(sample any) Tag {
	return r.learn(reflect.TypeOf(sample))
}

// TagFor returns the tag for a Go type, registering it.
func (r *Reflect) TagFor(t reflect.Type) Tag {
	return r.learn(t)
}

func (r *Reflect) learn(t reflect.Type) Tag {
	if t == nil {
		return Any
	}
	tag := tagName(t)
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.types[tag]; !ok {
		r.types[tag] = t
	}
	return tag
}

// tagEscaper keeps reflect tags parseable. '%' is escaped too so the
// mapping stays one-to-one.
var tagEscaper = strings.NewReplacer(
	"%", "%25",
	",", "%2C",
	"|", "%7C",
	"(", "%28",
	")", "%29",
	"\n", "%0A",
)

func tagName(t reflect.Type) Tag {
	return Tag(tagEscaper.Replace(t.String()))
}

// TagOf implements Classifier. A nil value classifies as Any.
func (r *Reflect) TagOf(v any) (Tag, error) {
	return r.learn(reflect.TypeOf(v)), nil
}

// Known implements Provider.
func (r *Reflect) Known(t Tag) bool {
	if t == Any {
		return true
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.types[t]
	return ok
}

// IsSubtype implements Provider.
func (r *Reflect) IsSubtype(sub, super Tag) bool {
	if sub == super || super == Any {
		return true
	}
	if sub == Any {
		return false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	st, ok := r.types[sub]
	if !ok {
		return false
	}
	pt, ok := r.types[super]
	if !ok || pt.Kind() != reflect.Interface {
		return false
	}
	return st.Implements(pt)
}

// Chain implements Provider. Implemented interfaces are ordered by method
// count, larger first, then by name.
func (r *Reflect) Chain(t Tag) []Tag {
	if t == Any {
		return []Tag{Any}
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	st, ok := r.types[t]
	if !ok {
		return nil
	}
	var impl []reflect.Type
	for _, iface := range r.interfaces {
		if iface != st && st.Implements(iface) {
			impl = append(impl, iface)
		}
	}
	slices.SortFunc(impl, func(a, b reflect.Type) int {
		if a.NumMethod() != b.NumMethod() {
			return b.NumMethod() - a.NumMethod()
		}
		if a.String() < b.String() {
			return -1
		}
		if a.String() > b.String() {
			return 1
		}
		return 0
	})
	chain := make([]Tag, 0, len(impl)+2)
	chain = append(chain, t)
	for _, iface := range impl {
		chain = append(chain, tagName(iface))
	}
	return append(chain, Any)
}

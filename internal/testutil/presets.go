package testutil

// WithStandardTypes declares the three type fixture used across conflict
// tests.
//
// Structure:
//
//	A
//	└── B
//	C
func (b *Builder) WithStandardTypes() *Builder {
	return b.
		WithType("A").
		WithType("B", Parents("A")).
		WithType("C")
}

// WithInheritanceTypes declares a deeper lattice for resolution tests.
//
// Structure:
//
//	A
//	└── C
//	    ├── D
//	    └── E
//	B
func (b *Builder) WithInheritanceTypes() *Builder {
	return b.
		WithType("A").
		WithType("B").
		WithType("C", Parents("A")).
		WithType("D", Parents("C")).
		WithType("E", Parents("C"))
}

// WithNumericTypes declares a numeric tower bound to Go types.
//
// Structure:
//
//	Number
//	├── Integer
//	│   └── Int      (int, int64)
//	└── Float        (float64)
//	String           (string)
func (b *Builder) WithNumericTypes() *Builder {
	return b.
		WithType("Number").
		WithType("Integer", Parents("Number")).
		WithType("Int", Parents("Integer"), BoundTo(0, int64(0))).
		WithType("Float", Parents("Number"), BoundTo(0.0)).
		WithType("String", BoundTo(""))
}

// Package templates embeds the starter dispatch tables written by
// `multidispatch init`.
package templates

import (
	"embed"
	"io/fs"
	"path"
	"slices"
	"strings"
)

//go:embed tables
var tables embed.FS

// DefaultTable is the starter written when no name is given.
const DefaultTable = "numeric"

// TablesFS returns the embedded tables rooted at the tables directory.
func TablesFS() fs.FS {
	sub, err := fs.Sub(tables, "tables")
	if err != nil {
		panic(err) // embedded directory always exists
	}
	return sub
}

// Names lists the embedded tables without their extension, sorted.
func Names() []string {
	entries, err := fs.ReadDir(tables, "tables")
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && path.Ext(e.Name()) == ".yaml" {
			names = append(names, strings.TrimSuffix(e.Name(), ".yaml"))
		}
	}
	slices.Sort(names)
	return names
}

// Table returns the content of the named table.
func Table(name string) ([]byte, error) {
	return fs.ReadFile(TablesFS(), name+".yaml")
}

package presentation

import (
	"time"

	"github.com/zjrosen/multidispatch/internal/dispatch"
	"github.com/zjrosen/multidispatch/internal/typetag"
)

// OperationDTO is one registry in resolution order.
type OperationDTO struct {
	Operation   string         `json:"operation"`
	Method      bool           `json:"method"`
	Ordering    []VariantDTO   `json:"ordering"`
	Ambiguities []AmbiguityDTO `json:"ambiguities"`
}

// VariantDTO is a signature and the variant registered under it.
type VariantDTO struct {
	Signature string `json:"signature"`
	Variant   string `json:"variant"`
	Declared  string `json:"declared,omitempty"` // Set when the signature came from a union
}

// AmbiguityDTO is one ambiguous pair.
type AmbiguityDTO struct {
	Left    string `json:"left"`
	Right   string `json:"right"`
	Suggest string `json:"suggest,omitempty"`
}

// ResolutionDTO is the outcome of resolving one call.
type ResolutionDTO struct {
	Operation  string   `json:"operation"`
	Types      []string `json:"types"`
	Variant    string   `json:"variant,omitempty"`
	Signature  string   `json:"signature,omitempty"`
	Candidates []string `json:"candidates"`
	Error      string   `json:"error,omitempty"`
}

// FromRegistry converts a registry to its DTO. Ambiguities and
// suggestions are always present, possibly empty.
func FromRegistry(r *dispatch.Registry) OperationDTO {
	dto := OperationDTO{
		Operation:   r.Name(),
		Method:      r.IsMethod(),
		Ordering:    []VariantDTO{},
		Ambiguities: []AmbiguityDTO{},
	}
	for _, v := range r.Variants() {
		vd := VariantDTO{Signature: v.Signature.Key(), Variant: v.Name}
		if !v.Declared.Equal(v.Signature) {
			vd.Declared = v.Declared.Key()
		}
		dto.Ordering = append(dto.Ordering, vd)
	}

	rep, ok := r.Report()
	if !ok {
		return dto
	}
	for i, p := range rep.Pairs {
		ad := AmbiguityDTO{Left: p.A.Key(), Right: p.B.Key()}
		if i < len(rep.Suggestions) {
			ad.Suggest = rep.Suggestions[i].Key()
		}
		dto.Ambiguities = append(dto.Ambiguities, ad)
	}
	return dto
}

// FromResolution converts a resolve outcome. err, when set, is recorded in
// place of the variant.
func FromResolution(r *dispatch.Registry, tags []typetag.Tag, v *dispatch.Variant, err error) ResolutionDTO {
	dto := ResolutionDTO{
		Operation:  r.Name(),
		Types:      make([]string, len(tags)),
		Candidates: []string{},
	}
	for i, t := range tags {
		dto.Types[i] = string(t)
	}
	for _, c := range r.Candidates(tags...) {
		dto.Candidates = append(dto.Candidates, c.Signature.Key())
	}
	if err != nil {
		dto.Error = err.Error()
		return dto
	}
	dto.Variant = v.Name
	dto.Signature = v.Signature.Key()
	return dto
}

// SnapshotDTO is one stored snapshot in a history listing.
type SnapshotDTO struct {
	GUID      string    `json:"guid"`
	Operation string    `json:"operation"`
	Entries   int       `json:"entries"`
	CreatedAt time.Time `json:"created_at"`
}

package table

import (
	"fmt"
	"slices"
	"strings"

	"github.com/Skufu/excipredict/internal/dataset"
)

// Suggest returns distinct values of a text column containing query (case-insensitive),
// collated ascending. A non-positive limit returns every match.
func (e *Engine) Suggest(field Field, query string, limit int) ([]string, error) {
	var pick func(dataset.Record) string
	switch field {
	case FieldDrugName:
		pick = func(r dataset.Record) string { return r.DrugName }
	case FieldStructureCode:
		pick = func(r dataset.Record) string { return r.StructureCode }
	case FieldExcipientName:
		pick = func(r dataset.Record) string { return r.ExcipientName }
	default:
		return nil, fmt.Errorf("field %q has no suggestions", field)
	}

	needle := strings.ToLower(strings.TrimSpace(query))
	seen := make(map[string]struct{})
	var out []string
	for _, r := range e.source {
		v := pick(r)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		if needle != "" && !strings.Contains(strings.ToLower(v), needle) {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}

	slices.SortFunc(out, e.collator.CompareString)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Package table derives filtered, sorted views over the compound dataset.
package table

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/Skufu/excipredict/internal/dataset"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

type Field string

const (
	FieldID            Field = "id"
	FieldDrugName      Field = "drugName"
	FieldStructureCode Field = "structureCode"
	FieldExcipientName Field = "excipientName"
)

type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

func ParseField(s string) (Field, error) {
	switch f := Field(s); f {
	case FieldID, FieldDrugName, FieldStructureCode, FieldExcipientName:
		return f, nil
	default:
		return "", fmt.Errorf("unknown sort field %q", s)
	}
}

func ParseDirection(s string) (Direction, error) {
	switch d := Direction(strings.ToLower(s)); d {
	case Asc, Desc:
		return d, nil
	default:
		return "", fmt.Errorf("unknown sort direction %q", s)
	}
}

// View is a render-ready slice of records. PrimaryMatch is the id of the first
// record when a non-blank query matched at least one record.
type View struct {
	Records      []dataset.Record `json:"records"`
	PrimaryMatch *int             `json:"primaryMatch,omitempty"`
	Total        int              `json:"total"`
}

// Engine holds the query and sort state over an immutable record list.
// It is synchronous and not safe for concurrent use.
type Engine struct {
	source   []dataset.Record
	query    string
	field    Field
	dir      Direction
	collator *collate.Collator
}

// New validates the records and starts sorted by drug name ascending with an empty query.
func New(records []dataset.Record) (*Engine, error) {
	seen := make(map[int]struct{}, len(records))
	for i, r := range records {
		if r.ID <= 0 {
			return nil, fmt.Errorf("record %d has invalid id %d", i, r.ID)
		}
		if _, dup := seen[r.ID]; dup {
			return nil, fmt.Errorf("duplicate record id %d", r.ID)
		}
		seen[r.ID] = struct{}{}
	}

	return &Engine{
		source:   slices.Clone(records),
		field:    FieldDrugName,
		dir:      Asc,
		collator: collate.New(language.English),
	}, nil
}

func (e *Engine) SetQuery(text string) {
	e.query = text
}

func (e *Engine) SetSort(field Field, dir Direction) error {
	if _, err := ParseField(string(field)); err != nil {
		return err
	}
	if _, err := ParseDirection(string(dir)); err != nil {
		return err
	}
	e.field = field
	e.dir = dir
	return nil
}

// ToggleSort mirrors a column header click: the active column flips direction,
// any other column becomes active ascending.
func (e *Engine) ToggleSort(field Field) error {
	if field == e.field {
		if e.dir == Asc {
			return e.SetSort(field, Desc)
		}
		return e.SetSort(field, Asc)
	}
	return e.SetSort(field, Asc)
}

func (e *Engine) Sort() (Field, Direction) {
	return e.field, e.dir
}

// View sorts the whole collection first and filters afterwards, so matches keep
// the relative order of the full sort.
func (e *Engine) View() View {
	sorted := slices.Clone(e.source)
	compare := e.comparator()
	slices.SortStableFunc(sorted, func(a, b dataset.Record) int {
		if e.dir == Desc {
			return compare(b, a)
		}
		return compare(a, b)
	})

	view := View{Total: len(e.source)}
	if strings.TrimSpace(e.query) == "" {
		view.Records = sorted
		return view
	}

	needle := strings.ToLower(e.query)
	matches := make([]dataset.Record, 0, len(sorted))
	for _, r := range sorted {
		if matchesQuery(r, needle) {
			matches = append(matches, r)
		}
	}
	view.Records = matches
	if len(matches) > 0 {
		id := matches[0].ID
		view.PrimaryMatch = &id
	}
	return view
}

func (e *Engine) comparator() func(a, b dataset.Record) int {
	switch e.field {
	case FieldID:
		return func(a, b dataset.Record) int { return cmp.Compare(a.ID, b.ID) }
	case FieldStructureCode:
		return func(a, b dataset.Record) int { return e.collator.CompareString(a.StructureCode, b.StructureCode) }
	case FieldExcipientName:
		return func(a, b dataset.Record) int { return e.collator.CompareString(a.ExcipientName, b.ExcipientName) }
	default:
		return func(a, b dataset.Record) int { return e.collator.CompareString(a.DrugName, b.DrugName) }
	}
}

func matchesQuery(r dataset.Record, needle string) bool {
	return strings.Contains(strings.ToLower(r.DrugName), needle) ||
		strings.Contains(strings.ToLower(r.StructureCode), needle) ||
		strings.Contains(strings.ToLower(r.ExcipientName), needle)
}

package prediction

import (
	"regexp"
	"strings"
)

// Letters, digits and the SMILES symbol set @ + - [ ] ( ) \ / = # $ . %
var structureCodePattern = regexp.MustCompile(`^[A-Za-z0-9@+\-\[\]()\\/=#$.%]+$`)

// ValidStructureCode reports whether s only uses line-notation characters.
func ValidStructureCode(s string) bool {
	return s != "" && structureCodePattern.MatchString(s)
}

// Validate checks the fields in form order and returns the first failure.
func Validate(in Input) error {
	if strings.TrimSpace(in.DrugName) == "" {
		return &ValidationError{Message: "drug name required"}
	}
	if strings.TrimSpace(in.StructureCode) == "" {
		return &ValidationError{Message: "structure code required"}
	}
	if !ValidStructureCode(in.StructureCode) {
		return &ValidationError{Message: "invalid structure code"}
	}
	if strings.TrimSpace(in.ExcipientName) == "" {
		return &ValidationError{Message: "excipient required"}
	}
	return nil
}

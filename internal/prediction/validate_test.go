package prediction

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidate(t *testing.T) {
	cases := []struct {
		name string
		in   Input
		want string
	}{
		{"missing drug", Input{DrugName: "", StructureCode: "C", ExcipientName: "Talc"}, "drug name required"},
		{"blank drug", Input{DrugName: "   ", StructureCode: "C", ExcipientName: "Talc"}, "drug name required"},
		{"missing code", Input{DrugName: "Aspirin", StructureCode: " ", ExcipientName: "Talc"}, "structure code required"},
		{"bad charset", Input{DrugName: "Aspirin", StructureCode: "CC(=O)O!", ExcipientName: "Talc"}, "invalid structure code"},
		{"inner space", Input{DrugName: "Aspirin", StructureCode: "CC O", ExcipientName: "Talc"}, "invalid structure code"},
		{"missing excipient", Input{DrugName: "Aspirin", StructureCode: "CC(=O)O", ExcipientName: ""}, "excipient required"},
		{"drug checked first", Input{}, "drug name required"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Validate(tc.in)
			var verr *ValidationError
			if assert.True(t, errors.As(err, &verr)) {
				assert.Equal(t, tc.want, verr.Message)
			}
		})
	}
}

func TestValidateAcceptsFullSymbolSet(t *testing.T) {
	for _, code := range []string{
		"CC(=O)OC1=CC=CC=C1C(=O)O",
		"C1=CC=C(C(=C1)CC(=O)[O-])NC2=C(C=CC=C2Cl)Cl.[Na+]",
		`F/C=C\F`,
		"C#N",
		"[C@@H](O)(N)C",
		"C%10CCCCC%10",
		"[13CH4]",
		"C$C",
	} {
		assert.NoError(t, Validate(Input{DrugName: "x", StructureCode: code, ExcipientName: "PVP"}), code)
	}
}

func TestParseRiskLevel(t *testing.T) {
	for in, want := range map[string]RiskLevel{"low": RiskLow, " Medium ": RiskMedium, "HIGH": RiskHigh} {
		got, err := ParseRiskLevel(in)
		assert.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseRiskLevel("severe")
	assert.Error(t, err)
}

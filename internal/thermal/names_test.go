package thermal

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeSensorName(t *testing.T) {
	cases := []struct {
		in       string
		wantName string
		wantKeep bool
	}{
		{"ASIC p0", "", false},
		{"ASIC t1", "", false},
		{"Transceiver Port3", "Port3", true},
		{"CPU", "CPU", true},
		{"Transceiver Port12", "Port12", true},
		{"ASICPseudo", "ASICPseudo", true}, // no space after ASIC: not a match
	}
	for _, c := range cases {
		name, keep := normalizeSensorName(c.in)
		assert.Equal(t, c.wantKeep, keep, c.in)
		if keep {
			assert.Equal(t, c.wantName, name, c.in)
		}
	}
}

func TestNaturalSort(t *testing.T) {
	in := []string{"Port2", "Port10", "Port1"}
	assert.Equal(t, []string{"Port1", "Port2", "Port10"}, NaturalSorted(in))
}

func TestNaturalSort_MixedNames(t *testing.T) {
	in := []string{"CPU", "Port2", "ASIC", "Port10"}
	got := NaturalSorted(in)
	assert.Equal(t, []string{"ASIC", "CPU", "Port2", "Port10"}, got)
}

func TestNaturalSort_DoesNotMutateInput(t *testing.T) {
	in := []string{"b", "a"}
	_ = NaturalSorted(in)
	assert.Equal(t, []string{"b", "a"}, in)
}

package catalog

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const attributeCSV = `Depth,Species,Temperature
12,Favia fragum,27.5
30,Porites lobata,26
8,Favia fragum,28
`

func TestLoadAttributes(t *testing.T) {
	a, err := LoadAttributes(strings.NewReader(attributeCSV), "")
	require.NoError(t, err)

	assert.Equal(t, []string{"Depth", "Species", "Temperature"}, a.Columns())
	assert.Equal(t, 2, a.Len())

	row, ok := a.Lookup("Favia fragum")
	require.True(t, ok)
	assert.Equal(t, map[string]string{"Depth": "12", "Temperature": "27.5"}, row)

	row["Depth"] = "mutated"
	row, _ = a.Lookup("Favia fragum")
	assert.Equal(t, "12", row["Depth"])

	_, ok = a.Lookup("Acropora palmata")
	assert.False(t, ok)
}

func TestLoadAttributesKeyFallback(t *testing.T) {
	a, err := LoadAttributes(strings.NewReader("name,depth\nFavia fragum,3\n"), "species")
	require.NoError(t, err)

	row, ok := a.Lookup("Favia fragum")
	require.True(t, ok)
	assert.Equal(t, "3", row["depth"])
}

func TestLoadAttributesErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{name: "empty", src: ""},
		{name: "ragged row", src: "species,depth\nFavia fragum,3,extra\n"},
		{name: "missing key", src: "species,depth\n,3\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadAttributes(strings.NewReader(tt.src), "species")
			assert.Error(t, err)
		})
	}
}

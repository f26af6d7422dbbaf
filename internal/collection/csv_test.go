package collection

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadCSV(t *testing.T) {
	input := `Artist,Title,Barcode,Catalog#,Format,Discogs Release
Miles Davis,"Kind Of Blue, 180g",074646393523,CL 1355,LP,
Can,Tago Mago,,SPOON 6/7,2xLP,1234
Nobody,,,,,
Talk Talk,Spirit Of Eden,,,CD,
`
	records, err := ReadCSV(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, Record{
		Artist:        "Miles Davis",
		Title:         "Kind Of Blue, 180g",
		Barcode:       "074646393523",
		CatalogNumber: "CL 1355",
		Format:        "LP",
	}, records[0])
	assert.Equal(t, 1234, records[1].ReleaseID)
	assert.Equal(t, "Spirit Of Eden", records[2].Title)
}

func TestReadCSVInvalidReleaseIDSkipped(t *testing.T) {
	records, err := ReadCSV(strings.NewReader("artist,title,release_id\nA,B,abc\nC,D,5\n"))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "C", records[0].Artist)
}

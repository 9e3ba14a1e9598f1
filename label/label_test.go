package label_test

import (
	"io/ioutil"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sugarme/droneseg/errs"
	"github.com/sugarme/droneseg/label"
)

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "class_dict_seg.csv")
	require.NoError(t, ioutil.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadWithHeader(t *testing.T) {
	path := writeCSV(t, "name,r,g,b\npaved-area,128,64,128\ndirt,130,76,0\ngrass,0,102,0\n")

	table, err := label.Load(path)
	require.NoError(t, err)

	assert.Equal(t, 3, table.Len())
	assert.Equal(t, []string{"paved-area", "dirt", "grass"}, table.Names())

	c, ok := table.Color("dirt")
	require.True(t, ok)
	assert.Equal(t, label.RGB{130, 76, 0}, c)

	i, ok := table.Index("grass")
	require.True(t, ok)
	assert.Equal(t, 2, i)
}

func TestLoadWithoutHeader(t *testing.T) {
	path := writeCSV(t, "unlabeled, 0, 0, 0\npaved-area, 128, 64, 128\n")

	table, err := label.Load(path)
	require.NoError(t, err)
	assert.Equal(t, []label.Class{
		{Name: "unlabeled", Color: label.RGB{0, 0, 0}},
		{Name: "paved-area", Color: label.RGB{128, 64, 128}},
	}, table.Classes())
}

func TestLoadDuplicateNameLastWins(t *testing.T) {
	path := writeCSV(t, "name,r,g,b\nrocks,48,41,30\nwater,28,42,168\nrocks,1,2,3\n")

	table, err := label.Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"rocks", "water"}, table.Names())
	c, _ := table.Color("rocks")
	assert.Equal(t, label.RGB{1, 2, 3}, c)
}

func TestLoadKeepsNames(t *testing.T) {
	path := writeCSV(t, "name,r,g,b\nNA,1,2,3\nroad,4,5,6\n")

	table, err := label.Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"NA", "road"}, table.Names())

	c, ok := table.Color("NA")
	require.True(t, ok)
	assert.Equal(t, label.RGB{1, 2, 3}, c)
}

func TestLoadExtraColumns(t *testing.T) {
	path := writeCSV(t, "name,r,g,b\nwater,28,42,168,lake\ngrass,0,102,0\n")

	table, err := label.Load(path)
	require.NoError(t, err)
	assert.Equal(t, []label.Class{
		{Name: "water", Color: label.RGB{28, 42, 168}},
		{Name: "grass", Color: label.RGB{0, 102, 0}},
	}, table.Classes())
}

func TestLoadEmpty(t *testing.T) {
	table, err := label.Load(writeCSV(t, ""))
	require.NoError(t, err)
	assert.Equal(t, 0, table.Len())
}

func TestLoadErrors(t *testing.T) {
	_, err := label.Load(filepath.Join(t.TempDir(), "missing.csv"))
	assert.True(t, errors.Is(err, errs.ErrNotFound), "%v", err)

	for _, content := range []string{
		"name,r,g,b\npaved-area,128,sixty,128\n",
		"name,r,g,b\npaved-area,128,64,300\n",
		"name,r,g\npaved-area,128,64\n",
		"paved-area,128,64,128\ndirt,130\n",
	} {
		_, err := label.Load(writeCSV(t, content))
		assert.True(t, errors.Is(err, errs.ErrParse), "%q: %v", content, err)
	}
}

func TestCovers(t *testing.T) {
	table := label.NewTable(label.Class{Name: "a"}, label.Class{Name: "b"})
	assert.NoError(t, table.Covers(2))
	assert.True(t, errors.Is(table.Covers(3), errs.ErrShapeMismatch))
}

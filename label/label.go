// Package label loads the class colour table of a segmentation dataset.
//
// The table is a comma-delimited file whose rows are `class_name,R,G,B`,
// optionally preceded by a header row starting with `name`.
package label

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/sugarme/droneseg/errs"
)

// headerName marks the first field of an optional header row.
const headerName = "name"

// RGB is a mask colour.
type RGB [3]uint8

func (c RGB) String() string {
	return fmt.Sprintf("[%d %d %d]", c[0], c[1], c[2])
}

// Class is a named mask colour.
type Class struct {
	Name  string
	Color RGB
}

// Table maps class names to colours, keeping file order.
type Table struct {
	classes []Class
	index   map[string]int
}

// NewTable builds a table from classes. A repeated name overwrites the
// colour of its first occurrence and keeps that position.
func NewTable(classes ...Class) *Table {
	t := &Table{index: make(map[string]int, len(classes))}
	for _, c := range classes {
		t.put(c)
	}
	return t
}

func (t *Table) put(c Class) {
	if i, ok := t.index[c.Name]; ok {
		t.classes[i].Color = c.Color
		return
	}
	t.index[c.Name] = len(t.classes)
	t.classes = append(t.classes, c)
}

// Load reads a label table from a CSV file. Class names are kept verbatim,
// and rows may carry extra trailing columns.
func Load(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(errs.ErrNotFound, "label file %q", path)
		}
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	rows, err := r.ReadAll()
	if err != nil {
		return nil, errors.Wrapf(errs.ErrParse, "label file %q: %v", path, err)
	}
	if len(rows) == 0 {
		return NewTable(), nil
	}
	// Columns past the colour are ignored.
	for i, row := range rows {
		if len(row) < 4 {
			return nil, errors.Wrapf(errs.ErrParse, "label file %q row %d: expected 4 fields, got %d", path, i+1, len(row))
		}
		rows[i] = row[:4]
	}

	df := dataframe.LoadRecords(rows,
		dataframe.HasHeader(false),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
		dataframe.NaNValues(nil),
	)
	if df.Err != nil {
		return nil, errors.Wrapf(errs.ErrParse, "label file %q: %v", path, df.Err)
	}

	// First record holds the generated column names.
	records := df.Records()[1:]
	if len(records) > 0 && strings.TrimSpace(records[0][0]) == headerName {
		records = records[1:]
	}

	t := NewTable()
	for i, rec := range records {
		c, err := parseRow(rec)
		if err != nil {
			return nil, errors.Wrapf(errs.ErrParse, "label file %q row %d: %v", path, i+1, err)
		}
		t.put(c)
	}

	return t, nil
}

func parseRow(rec []string) (Class, error) {
	if len(rec) < 4 {
		return Class{}, fmt.Errorf("expected 4 fields, got %d", len(rec))
	}

	var c Class
	c.Name = strings.TrimSpace(rec[0])
	for i := 0; i < 3; i++ {
		field := strings.TrimSpace(rec[i+1])
		v, err := strconv.Atoi(field)
		if err != nil {
			return Class{}, fmt.Errorf("invalid colour component %q", field)
		}
		if v < 0 || v > 255 {
			return Class{}, fmt.Errorf("colour component %d out of range [0, 255]", v)
		}
		c.Color[i] = uint8(v)
	}

	return c, nil
}

// Len returns the number of classes.
func (t *Table) Len() int {
	return len(t.classes)
}

// Classes returns the classes in file order.
func (t *Table) Classes() []Class {
	out := make([]Class, len(t.classes))
	copy(out, t.classes)
	return out
}

// Names returns the class names in file order.
func (t *Table) Names() []string {
	names := make([]string, len(t.classes))
	for i, c := range t.classes {
		names[i] = c.Name
	}
	return names
}

// Color returns the colour of the named class.
func (t *Table) Color(name string) (RGB, bool) {
	i, ok := t.index[name]
	if !ok {
		return RGB{}, false
	}
	return t.classes[i].Color, true
}

// Index returns the position of the named class.
func (t *Table) Index(name string) (int, bool) {
	i, ok := t.index[name]
	return i, ok
}

// Covers checks that the table has at least n classes.
func (t *Table) Covers(n int) error {
	if t.Len() < n {
		return errors.Wrapf(errs.ErrShapeMismatch, "label table has %d classes, %d configured", t.Len(), n)
	}
	return nil
}

// Log prints the table as configured for n classes.
func (t *Table) Log(n int) {
	switch {
	case n == 1:
		log.Info("There is one unlabeled class.")
	case n < t.Len():
		log.Infof("There are %d unlabeled classes.", n)
	}

	log.Infof("There are %d labeled classes:", t.Len())
	for _, c := range t.classes {
		log.WithField("rgb", c.Color.String()).Infof("Class %s", c.Name)
	}
}

// Package dataset reads labeled point files for the margin perceptron.
//
// A file starts with a header whose first field is the dimension d and whose
// last field is the radius. Every following line holds d features and a
// trailing +1/-1 label, comma separated.
package dataset

import (
	"bufio"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"marginperceptron/ml"
)

// Load reads the dataset file at path.
func Load(path string) (*ml.Dataset, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	ds, err := Read(file)
	if err != nil {
		return nil, errors.Wrapf(err, "load %s", path)
	}
	return ds, nil
}

// Read parses a dataset. UTF-8 and UTF-16 byte order marks are honored.
func Read(r io.Reader) (*ml.Dataset, error) {
	decoder := unicode.BOMOverride(unicode.UTF8.NewDecoder())
	scanner := bufio.NewScanner(transform.NewReader(r, decoder))
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)

	var (
		line      int
		dimension int
		radius    float64
		header    bool
		points    [][]float64
		labels    []ml.Label
	)
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		fields := splitFields(text)
		if !header {
			d, rad, err := parseHeader(fields)
			if err != nil {
				return nil, errors.Wrapf(err, "line %d", line)
			}
			dimension, radius, header = d, rad, true
			continue
		}
		point, label, err := parseRow(fields, dimension)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", line)
		}
		points = append(points, point)
		labels = append(labels, label)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "read dataset")
	}
	if !header {
		return nil, errors.Wrap(ml.ErrInvalidInput, "missing header")
	}
	return ml.NewDataset(dimension, radius, points, labels)
}

func splitFields(text string) []string {
	fields := strings.Split(text, ",")
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}
	return fields
}

func parseHeader(fields []string) (int, float64, error) {
	if len(fields) < 2 {
		return 0, 0, errors.Wrapf(ml.ErrInvalidInput, "header needs dimension and radius, got %d fields", len(fields))
	}
	dimension, err := strconv.Atoi(fields[0])
	if err != nil || dimension <= 0 {
		return 0, 0, errors.Wrapf(ml.ErrInvalidInput, "dimension %q", fields[0])
	}
	radius, err := strconv.ParseFloat(fields[len(fields)-1], 64)
	if err != nil {
		return 0, 0, errors.Wrapf(ml.ErrInvalidInput, "radius %q", fields[len(fields)-1])
	}
	return dimension, radius, nil
}

func parseRow(fields []string, dimension int) ([]float64, ml.Label, error) {
	if len(fields) != dimension+1 {
		return nil, 0, errors.Wrapf(ml.ErrDimensionMismatch, "want %d features and a label, got %d fields", dimension, len(fields))
	}
	point := make([]float64, dimension)
	for i := 0; i < dimension; i++ {
		v, err := strconv.ParseFloat(fields[i], 64)
		if err != nil {
			return nil, 0, errors.Wrapf(ml.ErrInvalidInput, "feature %d %q", i, fields[i])
		}
		point[i] = v
	}
	raw, err := strconv.Atoi(fields[dimension])
	if err != nil {
		return nil, 0, errors.Wrapf(ml.ErrInvalidInput, "label %q", fields[dimension])
	}
	label, err := ml.ParseLabel(raw)
	if err != nil {
		return nil, 0, err
	}
	return point, label, nil
}

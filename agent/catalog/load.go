package catalog

import (
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	HandsetsPath  string `split_words:"true" default:"data/handsets.yaml"`
	CustomersPath string `split_words:"true" default:"data/customers.yaml"`
	IndexPath     string `split_words:"true" default:"data/handsets.index.db"`
}

func LoadHandsetsFile(path string) ([]HandsetDocument, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open handsets: %w", err)
	}
	defer f.Close()
	return LoadHandsets(f)
}

// LoadHandsets decodes a YAML sequence of attribute mappings.
func LoadHandsets(r io.Reader) ([]HandsetDocument, error) {
	var rows []map[string]any
	if err := yaml.NewDecoder(r).Decode(&rows); err != nil {
		return nil, fmt.Errorf("decode handsets: %w", err)
	}

	docs := make([]HandsetDocument, 0, len(rows))
	for i, row := range rows {
		launch, err := ParseLaunchDate(row["launch_date"])
		if err != nil {
			return nil, fmt.Errorf("handset row %d: %w", i, err)
		}
		attrs := make(map[string]any, len(row))
		for k, v := range row {
			if t, ok := v.(time.Time); ok {
				v = t.UTC().Format(DateLayout)
			}
			attrs[k] = v
		}
		docs = append(docs, HandsetDocument{
			Position:   i,
			Attributes: attrs,
			LaunchDate: launch,
		})
	}
	return docs, nil
}

func LoadCustomersFile(path string) ([]CustomerRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open customers: %w", err)
	}
	defer f.Close()
	return LoadCustomers(f)
}

func LoadCustomers(r io.Reader) ([]CustomerRecord, error) {
	var records []CustomerRecord
	if err := yaml.NewDecoder(r).Decode(&records); err != nil {
		return nil, fmt.Errorf("decode customers: %w", err)
	}
	return records, nil
}

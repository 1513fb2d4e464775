package catalog

import (
	"context"
	"fmt"
)

type CustomerRecord struct {
	CustomerID        int    `json:"customer_id" yaml:"customer_id"`
	Name              string `json:"name" yaml:"name"`
	CurrentPhoneModel string `json:"current_phone_model" yaml:"current_phone_model"`
}

// Directory is an in-memory, read-only customer lookup.
type Directory struct {
	byID map[int]CustomerRecord
}

func NewDirectory(records []CustomerRecord) (*Directory, error) {
	byID := make(map[int]CustomerRecord, len(records))
	for _, r := range records {
		if _, dup := byID[r.CustomerID]; dup {
			return nil, fmt.Errorf("duplicate customer_id %d", r.CustomerID)
		}
		byID[r.CustomerID] = r
	}
	return &Directory{byID: byID}, nil
}

func (d *Directory) Lookup(ctx context.Context, customerID int) (CustomerRecord, bool, error) {
	if err := ctx.Err(); err != nil {
		return CustomerRecord{}, false, err
	}
	r, ok := d.byID[customerID]
	return r, ok, nil
}

func (d *Directory) Len() int {
	return len(d.byID)
}

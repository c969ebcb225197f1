package history

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/snapcal/snapcal/pkg/models"
)

// ExportJSON writes the full record list to w as a JSON array, preserving
// identifiers and field values so an import yields equal records.
func (s *Store) ExportJSON(ctx context.Context, w io.Writer) error {
	analyses, err := s.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list analyses: %w", err)
	}

	list := make([]models.FoodAnalysis, 0, len(analyses))
	for _, a := range analyses {
		list = append(list, *a)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(list)
}

// ImportJSON reads a JSON array of records and stores each one. Records
// whose identifier already exists are replaced.
func (s *Store) ImportJSON(ctx context.Context, r io.Reader) (int, error) {
	var list []models.FoodAnalysis
	if err := json.NewDecoder(r).Decode(&list); err != nil {
		return 0, fmt.Errorf("failed to parse export file: %w", err)
	}

	imported := 0
	for i := range list {
		a := &list[i]
		if err := s.Update(ctx, a); err == nil {
			imported++
			continue
		}
		if err := s.Create(ctx, a); err != nil {
			return imported, fmt.Errorf("failed to import record %s: %w", a.ID, err)
		}
		imported++
	}
	return imported, nil
}

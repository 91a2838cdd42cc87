// Package catalogseed loads catalog entries from a YAML file into the
// stocks table.
package catalogseed

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/trogers1052/stock-watchlist/internal/models"
	"gopkg.in/yaml.v3"
)

// File is the seed file layout:
//
//	stocks:
//	  - code: AAPL
//	    name: Apple Inc.
//	    logo_url: https://example.com/aapl.png
type File struct {
	Stocks []Entry `yaml:"stocks"`
}

// Entry is one catalog row in a seed file
type Entry struct {
	Code    string `yaml:"code"`
	Name    string `yaml:"name"`
	LogoURL string `yaml:"logo_url"`
}

// Store persists catalog rows
type Store interface {
	SaveStock(ctx context.Context, s *models.Stock) error
}

// Load reads and validates the seed file at path
func Load(path string) ([]*models.Stock, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open seed file: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse decodes and validates a seed document. Codes are upper-cased and
// must be unique within the document.
func Parse(r io.Reader) ([]*models.Stock, error) {
	var file File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to decode seed file: %w", err)
	}

	seen := make(map[string]int, len(file.Stocks))
	stocks := make([]*models.Stock, 0, len(file.Stocks))
	for i, e := range file.Stocks {
		code := strings.ToUpper(strings.TrimSpace(e.Code))
		name := strings.TrimSpace(e.Name)
		if code == "" {
			return nil, fmt.Errorf("entry %d: code is required", i+1)
		}
		if len(code) > 16 {
			return nil, fmt.Errorf("entry %d: code %q is longer than 16 characters", i+1, code)
		}
		if name == "" {
			return nil, fmt.Errorf("entry %d (%s): name is required", i+1, code)
		}
		if prev, ok := seen[code]; ok {
			return nil, fmt.Errorf("entry %d: duplicate code %s (first at entry %d)", i+1, code, prev)
		}
		seen[code] = i + 1

		s := &models.Stock{StockName: name, StockCode: code}
		if logo := strings.TrimSpace(e.LogoURL); logo != "" {
			s.LogoURL = &logo
		}
		stocks = append(stocks, s)
	}
	return stocks, nil
}

// Apply upserts every stock and returns how many were written
func Apply(ctx context.Context, store Store, stocks []*models.Stock) (int, error) {
	for i, s := range stocks {
		if err := store.SaveStock(ctx, s); err != nil {
			return i, fmt.Errorf("failed to save stock %s: %w", s.StockCode, err)
		}
	}
	return len(stocks), nil
}

// Package cards loads the draftable word list from `number,word` CSV files.
package cards

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/Billy-Davies-2/word-card-draft/internal/draft"
	"github.com/Billy-Davies-2/word-card-draft/internal/logger"
)

var (
	ErrFileNotFound = errors.New("card file not found")
	ErrEmptyFile    = errors.New("card file is empty")
	ErrFormat       = errors.New("card file has no usable number,word rows")
)

// LoadCSV reads the card list at path
func LoadCSV(path string) ([]draft.CardSpec, error) {
	if strings.TrimSpace(path) == "" {
		return nil, ErrFileNotFound
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return nil, fmt.Errorf("open card file: %w", err)
	}
	defer f.Close()

	specs, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	logger.Info("Loaded cards", "path", path, "count", len(specs))
	return specs, nil
}

// Parse reads `number,word` rows. Fields are trimmed; rows missing either column are skipped,
// as are repeats of an earlier number.
func Parse(r io.Reader) ([]draft.CardSpec, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.LazyQuotes = true

	var (
		specs []draft.CardSpec
		rows  int
		seen  = map[string]bool{}
	)
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrFormat, err)
		}
		rows++
		if len(rec) < 2 {
			continue
		}
		num := strings.TrimSpace(rec[0])
		word := strings.TrimSpace(rec[1])
		if num == "" || word == "" {
			continue
		}
		if seen[num] {
			logger.Warn("Skipping duplicate card number", "number", num, "word", word)
			continue
		}
		seen[num] = true
		specs = append(specs, draft.CardSpec{Key: num, Label: word})
	}

	if rows == 0 {
		return nil, ErrEmptyFile
	}
	if len(specs) == 0 {
		return nil, ErrFormat
	}
	return specs, nil
}

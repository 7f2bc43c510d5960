package sqlstore

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/BaSui01/companion/types"
)

// SeedFile is the YAML layout accepted by LoadSeedFile:
//
//	predefined:
//	  - identifier: week1_day0
//	    content: "Welcome!"
//	    buttons: [week1_day1]
//	    button_display_name: "Start"
//	instructions:
//	  general: "You are a friendly companion."
type SeedFile struct {
	Predefined   []SeedEntry       `yaml:"predefined"`
	Instructions map[string]string `yaml:"instructions"`
}

// SeedEntry is a predefined entry whose buttons are plain identifiers.
type SeedEntry struct {
	Identifier        string   `yaml:"identifier"`
	Content           string   `yaml:"content"`
	Buttons           []string `yaml:"buttons"`
	ButtonDisplayName string   `yaml:"button_display_name"`
}

// LoadSeedFile parses a seed file from disk.
func LoadSeedFile(path string) (SeedFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return SeedFile{}, fmt.Errorf("read seed file: %w", err)
	}
	var seed SeedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return SeedFile{}, fmt.Errorf("parse seed file: %w", err)
	}
	return seed, nil
}

// Entries converts the seed into catalog entries.
func (f SeedFile) Entries() ([]types.PredefinedEntry, []types.InstructionEntry) {
	predefined := make([]types.PredefinedEntry, 0, len(f.Predefined))
	for _, e := range f.Predefined {
		entry := types.PredefinedEntry{
			Identifier:        e.Identifier,
			Content:           e.Content,
			ButtonDisplayName: e.ButtonDisplayName,
		}
		for _, id := range e.Buttons {
			entry.Buttons = append(entry.Buttons, types.Button{Identifier: id})
		}
		predefined = append(predefined, entry)
	}
	instructions := make([]types.InstructionEntry, 0, len(f.Instructions))
	for id, text := range f.Instructions {
		instructions = append(instructions, types.InstructionEntry{Identifier: id, Text: text})
	}
	return predefined, instructions
}

// Seed upserts both catalogs. Existing identifiers are overwritten.
func (s *Store) Seed(ctx context.Context, predefined []types.PredefinedEntry, instructions []types.InstructionEntry) (err error) {
	defer func(start time.Time) { err = s.observe("Seed", start, err) }(time.Now())

	pRows := make([]predefinedRow, 0, len(predefined))
	for _, e := range predefined {
		buttons, err := encodeButtons(e.Buttons)
		if err != nil {
			return types.ProcessingError("Seed", err)
		}
		pRows = append(pRows, predefinedRow{
			Identifier:        e.Identifier,
			Content:           e.Content,
			Buttons:           buttons,
			ButtonDisplayName: e.ButtonDisplayName,
		})
	}
	iRows := make([]instructionRow, 0, len(instructions))
	for _, e := range instructions {
		iRows = append(iRows, instructionRow{Identifier: e.Identifier, Text: e.Text})
	}

	return s.pool.WithTransaction(ctx, func(tx *gorm.DB) error {
		upsert := tx.Clauses(clause.OnConflict{UpdateAll: true})
		if len(pRows) > 0 {
			if err := upsert.Create(&pRows).Error; err != nil {
				return err
			}
		}
		if len(iRows) > 0 {
			if err := upsert.Create(&iRows).Error; err != nil {
				return err
			}
		}
		s.logger.Info("catalogs seeded",
			zap.Int("predefined", len(pRows)),
			zap.Int("instructions", len(iRows)))
		return nil
	})
}

// SeedIfEmpty seeds from path only when the predefined catalog is empty.
func (s *Store) SeedIfEmpty(ctx context.Context, path string) error {
	var n int64
	if err := s.db(ctx).Model(&predefinedRow{}).Count(&n).Error; err != nil {
		return types.ConnectionError("Seed", err)
	}
	if n > 0 {
		return nil
	}
	seed, err := LoadSeedFile(path)
	if err != nil {
		return err
	}
	predefined, instructions := seed.Entries()
	return s.Seed(ctx, predefined, instructions)
}

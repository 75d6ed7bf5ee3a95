package migrate

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	sqlFileRe = regexp.MustCompile(`^(\d{14})_[a-z0-9_]+\.sql$`)

	// sqlite's ALTER TABLE has no column or constraint mutation. These
	// slip past review because they are valid on every server database,
	// then fail on the device with half the migration applied.
	sqliteUnsupportedRe = regexp.MustCompile(`(?i)ALTER\s+TABLE\s+\S+\s+(ALTER\s+COLUMN|MODIFY\s+COLUMN|ADD\s+CONSTRAINT|DROP\s+CONSTRAINT)`)
)

// ValidateDir checks migration filenames, goose markers, and sqlite
// compatibility for every .sql file in dir. An empty dir passes.
func ValidateDir(dir string) error {
	if dir == "" {
		return fmt.Errorf("dir is required")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read dir %q: %w", dir, err)
	}

	seen := map[string]string{} // version -> filename

	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		name := e.Name()

		m := sqlFileRe.FindStringSubmatch(name)
		if m == nil {
			return fmt.Errorf("invalid migration filename %q (expected YYYYMMDDHHMMSS_name.sql)", name)
		}

		version := m[1]
		if prev, ok := seen[version]; ok {
			return fmt.Errorf("duplicate migration version %s in %q and %q", version, prev, name)
		}
		seen[version] = name

		b, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return fmt.Errorf("read file %q: %w", filepath.Join(dir, name), err)
		}

		if err := validateSQL(name, string(b)); err != nil {
			return err
		}
	}
	return nil
}

func validateSQL(name, txt string) error {
	if !strings.Contains(txt, "-- +goose Up") {
		return fmt.Errorf("migration %q missing \"-- +goose Up\"", name)
	}
	if !strings.Contains(txt, "-- +goose Down") {
		return fmt.Errorf("migration %q missing \"-- +goose Down\"", name)
	}
	if m := sqliteUnsupportedRe.FindString(txt); m != "" {
		return fmt.Errorf("migration %q uses %q, which sqlite does not support; rebuild the table instead", name, strings.Join(strings.Fields(m), " "))
	}
	return nil
}

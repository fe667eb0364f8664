// Package exports locates, reformats, and downloads OpenPhone data
// exports on local disk.
package exports

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/opsync/internal/phone"
)

// Contact is one row of the formatted contacts file, indexed by the
// normalized keys of both phone columns.
type Contact struct {
	First  string
	Last   string
	Phone1 string
	Phone2 string
}

// LatestDir returns the most recently modified subdirectory of root,
// which holds the newest extracted export.
func LatestDir(root string) (string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return "", eris.Wrapf(err, "exports: read dir %s", root)
	}

	var latest string
	var latestMod int64
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if latest == "" || info.ModTime().UnixNano() > latestMod {
			latest = filepath.Join(root, e.Name())
			latestMod = info.ModTime().UnixNano()
		}
	}
	if latest == "" {
		return "", eris.Errorf("exports: no export folders in %s", root)
	}
	return latest, nil
}

// FindMessagesCSV returns the messages CSV inside an export directory.
func FindMessagesCSV(dir string) (string, error) {
	return findCSV(dir, "*messages.csv")
}

// FindContactsCSV returns the contacts CSV inside an export directory.
func FindContactsCSV(dir string) (string, error) {
	return findCSV(dir, "*contacts.csv")
}

func findCSV(dir, pattern string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return "", eris.Wrapf(err, "exports: glob %s", pattern)
	}
	if len(matches) == 0 {
		return "", eris.Errorf("exports: no %s in %s", pattern, dir)
	}
	return matches[0], nil
}

// FormatContacts projects a raw contacts export down to
// First,Last,Phone1,Phone2, stripping Phone1 to bare digits, and writes
// the result to dst.
func FormatContacts(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return eris.Wrapf(err, "exports: open contacts %s", src)
	}
	defer in.Close() //nolint:errcheck

	reader := csv.NewReader(in)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return eris.Wrapf(err, "exports: read contacts header from %s", src)
	}

	idx := map[string]int{}
	for i, col := range header {
		idx[col] = i
	}
	for _, required := range []string{"firstName", "lastName", "phone_number_1", "phone_number_2"} {
		if _, ok := idx[required]; !ok {
			return eris.Errorf("exports: contacts CSV %s missing column %s", src, required)
		}
	}

	out, err := os.Create(dst)
	if err != nil {
		return eris.Wrapf(err, "exports: create %s", dst)
	}
	defer out.Close() //nolint:errcheck

	writer := csv.NewWriter(out)
	if err := writer.Write([]string{"First", "Last", "Phone1", "Phone2"}); err != nil {
		return eris.Wrap(err, "exports: write header")
	}

	rows := 0
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			zap.L().Warn("skipping malformed contacts row",
				zap.String("path", src),
				zap.Error(err),
			)
			continue
		}
		rec := []string{
			at(row, idx["firstName"]),
			at(row, idx["lastName"]),
			phone.Digits(at(row, idx["phone_number_1"])),
			at(row, idx["phone_number_2"]),
		}
		if err := writer.Write(rec); err != nil {
			return eris.Wrap(err, "exports: write row")
		}
		rows++
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return eris.Wrapf(err, "exports: flush %s", dst)
	}

	zap.L().Info("formatted contacts written",
		zap.String("path", dst),
		zap.Int("rows", rows),
	)
	return nil
}

// LoadFormatted reads the formatted contacts file and indexes each row by
// the normalized key of both phone columns. A missing file degrades to an
// empty index so reconciliation can still run.
func LoadFormatted(path string) map[string]Contact {
	f, err := os.Open(path)
	if err != nil {
		zap.L().Warn("formatted contacts not readable, index is empty",
			zap.String("path", path),
			zap.Error(err),
		)
		return map[string]Contact{}
	}
	defer f.Close() //nolint:errcheck

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	index := map[string]Contact{}

	header, err := reader.Read()
	if err != nil {
		zap.L().Warn("formatted contacts has no header", zap.String("path", path), zap.Error(err))
		return index
	}
	idx := func(name string) int {
		for i, col := range header {
			if col == name {
				return i
			}
		}
		return -1
	}
	first, last, p1, p2 := idx("First"), idx("Last"), idx("Phone1"), idx("Phone2")

	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			zap.L().Warn("skipping malformed formatted row", zap.String("path", path), zap.Error(err))
			continue
		}

		contact := Contact{
			First:  at(row, first),
			Last:   at(row, last),
			Phone1: phone.Normalize(at(row, p1)),
			Phone2: phone.Normalize(at(row, p2)),
		}
		if contact.Phone1 != "" {
			index[contact.Phone1] = contact
		}
		if contact.Phone2 != "" {
			index[contact.Phone2] = contact
		}
	}

	return index
}

func at(row []string, idx int) string {
	if idx >= 0 && idx < len(row) {
		return row[idx]
	}
	return ""
}

// Package activity reduces message history into per-phone activity windows.
package activity

import (
	"encoding/csv"
	"io"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/opsync/internal/phone"
)

// Window is the [FirstSeen, LastSeen] span of observed communication for
// one phone key.
type Window struct {
	FirstSeen time.Time
	LastSeen  time.Time
}

// Message is one message record contributing to the index.
type Message struct {
	To        string
	From      string
	CreatedAt string
}

// Build folds message timestamps into a per-phone-key activity window.
// Both sender and recipient keys absorb each message's timestamp, so one
// message can widen two windows. Records with unparseable timestamps are
// logged and skipped; the fold never aborts.
func Build(messages []Message) map[string]Window {
	index := make(map[string]Window)

	for _, msg := range messages {
		ts, err := time.Parse(time.RFC3339, msg.CreatedAt)
		if err != nil {
			zap.L().Warn("skipping message with bad timestamp",
				zap.String("createdAt", msg.CreatedAt),
				zap.Error(err),
			)
			continue
		}

		for _, raw := range []string{msg.To, msg.From} {
			key := phone.Normalize(raw)
			if key == "" {
				continue
			}
			w, ok := index[key]
			if !ok {
				index[key] = Window{FirstSeen: ts, LastSeen: ts}
				continue
			}
			if ts.Before(w.FirstSeen) {
				w.FirstSeen = ts
			}
			if ts.After(w.LastSeen) {
				w.LastSeen = ts
			}
			index[key] = w
		}
	}

	return index
}

// BuildFromCSV builds the index from a messages export CSV with
// to/from/createdAt columns. A missing or unreadable file degrades to an
// empty index so the rest of the run can proceed.
func BuildFromCSV(path string) map[string]Window {
	f, err := os.Open(path)
	if err != nil {
		zap.L().Warn("messages CSV not readable, activity index is empty",
			zap.String("path", path),
			zap.Error(err),
		)
		return map[string]Window{}
	}
	defer f.Close() //nolint:errcheck

	return Build(readMessages(f, path))
}

func readMessages(r io.Reader, path string) []Message {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		zap.L().Warn("messages CSV has no header",
			zap.String("path", path),
			zap.Error(err),
		)
		return nil
	}

	toIdx, fromIdx, createdIdx := -1, -1, -1
	for i, col := range header {
		switch col {
		case "to":
			toIdx = i
		case "from":
			fromIdx = i
		case "createdAt":
			createdIdx = i
		}
	}
	if toIdx < 0 || fromIdx < 0 || createdIdx < 0 {
		zap.L().Warn("messages CSV missing to/from/createdAt columns",
			zap.String("path", path),
			zap.Strings("header", header),
		)
		return nil
	}

	var messages []Message
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			zap.L().Warn("skipping malformed CSV row",
				zap.String("path", path),
				zap.Error(err),
			)
			continue
		}
		messages = append(messages, Message{
			To:        field(row, toIdx),
			From:      field(row, fromIdx),
			CreatedAt: field(row, createdIdx),
		})
	}
	return messages
}

func field(row []string, idx int) string {
	if idx < len(row) {
		return row[idx]
	}
	return ""
}

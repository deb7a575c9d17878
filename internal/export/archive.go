package export

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

type recordHeader struct {
	RecordType string `json:"recordType"`
}

// Archive is the decoded content of an archive file.
type Archive struct {
	Entries []Snapshot
	Memo    *MemoRecord
}

// Save merges snapshots into the archive at path, creating it if necessary.
// A snapshot replaces an archived one with the same entry id; the memo
// record, when given, replaces any archived memo.
func Save(path string, snapshots []Snapshot, memo *MemoRecord) error {
	if len(snapshots) == 0 && memo == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	records, err := loadRecords(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return err
		}
		records = nil
	}

	index := make(map[string]int)
	memoAt := -1
	for i, raw := range records {
		recordType, err := detectRecordType(raw)
		if err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
		switch recordType {
		case recordTypeMemo:
			memoAt = i
		case recordTypeEntry:
			var s Snapshot
			if err := json.Unmarshal(raw, &s); err != nil {
				return fmt.Errorf("record %d: %w", i, err)
			}
			index[s.EntryID] = i
		}
	}

	for _, s := range snapshots {
		s.RecordType = recordTypeEntry
		raw, err := json.Marshal(s)
		if err != nil {
			return err
		}
		if i, ok := index[s.EntryID]; ok {
			records[i] = raw
			continue
		}
		index[s.EntryID] = len(records)
		records = append(records, raw)
	}

	if memo != nil {
		m := *memo
		m.RecordType = recordTypeMemo
		raw, err := json.Marshal(m)
		if err != nil {
			return err
		}
		if memoAt >= 0 {
			records[memoAt] = raw
		} else {
			records = append(records, raw)
		}
	}
	return writeRecords(path, records)
}

// Load reads every snapshot and the memo from the archive at path. Records
// of unknown types are skipped.
func Load(path string) (Archive, error) {
	records, err := loadRecords(path)
	if err != nil {
		return Archive{}, err
	}
	var out Archive
	for i, raw := range records {
		recordType, err := detectRecordType(raw)
		if err != nil {
			return Archive{}, fmt.Errorf("record %d: %w", i, err)
		}
		switch recordType {
		case recordTypeEntry:
			var s Snapshot
			if err := json.Unmarshal(raw, &s); err != nil {
				return Archive{}, fmt.Errorf("record %d: %w", i, err)
			}
			out.Entries = append(out.Entries, s)
		case recordTypeMemo:
			var m MemoRecord
			if err := json.Unmarshal(raw, &m); err != nil {
				return Archive{}, fmt.Errorf("record %d: %w", i, err)
			}
			out.Memo = &m
		}
	}
	return out, nil
}

func writeRecords(path string, records []json.RawMessage) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func loadRecords(path string) ([]json.RawMessage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	var records []json.RawMessage
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, err
	}
	return records, nil
}

func detectRecordType(raw json.RawMessage) (string, error) {
	var header recordHeader
	if err := json.Unmarshal(raw, &header); err != nil {
		return "", err
	}
	if header.RecordType == "" {
		return recordTypeEntry, nil
	}
	return header.RecordType, nil
}

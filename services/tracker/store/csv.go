package store

import (
	"encoding/csv"
	"log/slog"
	"os"
)

// CSVStore is the production DetailStore, a csv file with a header row and
// at most one row per course link. Rows are staged in memory by Append and
// written out by Flush, so an interrupted run loses at most one
// save-interval of work.
type CSVStore struct {
	path    string
	rows    []Record
	pending []Record
	known   map[string]bool
}

func OpenCSV(path string) (*CSVStore, error) {
	s := &CSVStore{path: path, known: map[string]bool{}}

	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	lines, err := r.ReadAll()
	if err != nil {
		return nil, err
	}

	for i, line := range lines {
		if i == 0 && isHeader(line) {
			continue
		}
		if len(line) != len(Header) {
			slog.Warn("skipping malformed row", "file", path, "line", i+1, "fields", len(line))
			continue
		}
		rec := Record{Link: line[0], Title: line[1], Time: line[2]}
		if s.known[rec.Link] {
			slog.Warn("skipping duplicate row", "file", path, "link", rec.Link)
			continue
		}
		s.rows = append(s.rows, rec)
		s.known[rec.Link] = true
	}
	return s, nil
}

func isHeader(line []string) bool {
	return len(line) == len(Header) && line[0] == Header[0]
}

func (s *CSVStore) Load() ([]Record, error) {
	out := make([]Record, 0, len(s.rows)+len(s.pending))
	out = append(out, s.rows...)
	out = append(out, s.pending...)
	return out, nil
}

func (s *CSVStore) Append(r Record) error {
	if s.known[r.Link] {
		return ErrDuplicate
	}
	s.pending = append(s.pending, r)
	s.known[r.Link] = true
	return nil
}

func (s *CSVStore) Flush() error {
	if len(s.pending) == 0 {
		return nil
	}

	writeHeader := false
	stat, err := os.Stat(s.path)
	if os.IsNotExist(err) || (err == nil && stat.Size() == 0) {
		writeHeader = true
	} else if err != nil {
		return err
	}

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)
	if writeHeader {
		w.Write(Header)
	}
	for _, r := range s.pending {
		w.Write([]string{r.Link, r.Title, r.Time})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	s.rows = append(s.rows, s.pending...)
	s.pending = nil
	return nil
}

func (s *CSVStore) Replace(rows []Record) error {
	tmp := s.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)
	w.Write(Header)
	for _, r := range rows {
		w.Write([]string{r.Link, r.Title, r.Time})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return err
	}

	s.rows = append([]Record(nil), rows...)
	s.pending = nil
	s.known = make(map[string]bool, len(rows))
	for _, r := range rows {
		s.known[r.Link] = true
	}
	return nil
}

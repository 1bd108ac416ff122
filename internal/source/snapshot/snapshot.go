// Package snapshot reads and writes JSON Lines archives of fetched
// vacancies so a run can be replayed without calling the source again.
package snapshot

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/timmy/jobimport/internal/source"
)

// Record is one line of a snapshot file.
type Record struct {
	Source    string          `json:"source"`
	FetchedAt time.Time       `json:"fetched_at"`
	Vacancy   *source.Vacancy `json:"vacancy"`
}

// Write encodes vacancies as JSON Lines.
// Parameters:
//   - w: destination writer.
//   - sourceName: value recorded on every line.
//   - fetchedAt: fetch time recorded on every line.
//   - vacancies: records to write; nil entries are skipped.
// Returns:
//   - int: number of lines written.
//   - error: non-nil if encoding or writing fails.
func Write(w io.Writer, sourceName string, fetchedAt time.Time, vacancies []*source.Vacancy) (int, error) {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	n := 0
	for _, v := range vacancies {
		if v == nil {
			continue
		}
		if err := enc.Encode(Record{Source: sourceName, FetchedAt: fetchedAt.UTC(), Vacancy: v}); err != nil {
			return n, fmt.Errorf("encode %s: %w", v.SourceID, err)
		}
		n++
	}
	if err := bw.Flush(); err != nil {
		return n, fmt.Errorf("flush snapshot: %w", err)
	}
	return n, nil
}

var _ source.Source = (*Reader)(nil)

// Reader serves a snapshot through the source.Source interface. Records
// are ordered by source id; later lines win on duplicate ids.
type Reader struct {
	name     string
	pageSize int
	items    []*source.Vacancy
	byID     map[string]*source.Vacancy
}

// Read loads a snapshot. Blank and malformed lines are skipped.
// Parameters:
//   - r: JSON Lines input.
//   - pageSize: items per FetchList page.
// Returns:
//   - *Reader: loaded snapshot.
//   - error: non-nil if reading fails or the snapshot mixes sources.
func Read(r io.Reader, pageSize int) (*Reader, error) {
	if pageSize <= 0 {
		pageSize = 100
	}
	rd := &Reader{pageSize: pageSize, byID: make(map[string]*source.Vacancy)}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var rec Record
		if err := json.Unmarshal([]byte(line), &rec); err != nil || rec.Vacancy == nil || rec.Vacancy.SourceID == "" {
			continue
		}
		if rd.name == "" {
			rd.name = rec.Source
		} else if rec.Source != rd.name {
			return nil, fmt.Errorf("snapshot mixes sources %q and %q", rd.name, rec.Source)
		}
		rd.byID[rec.Vacancy.SourceID] = rec.Vacancy
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading snapshot: %w", err)
	}

	rd.items = make([]*source.Vacancy, 0, len(rd.byID))
	for _, v := range rd.byID {
		rd.items = append(rd.items, v)
	}
	sort.Slice(rd.items, func(i, j int) bool {
		return rd.items[i].SourceID < rd.items[j].SourceID
	})
	return rd, nil
}

// Name implements source.Source.
func (r *Reader) Name() string {
	return r.name
}

// Len returns the number of distinct records.
func (r *Reader) Len() int {
	return len(r.items)
}

// FetchList implements source.Source.
func (r *Reader) FetchList(_ context.Context, page int) (*source.ListPage, error) {
	if page < 1 {
		page = 1
	}
	start := (page - 1) * r.pageSize
	if start >= len(r.items) {
		return &source.ListPage{Page: page}, nil
	}
	end := start + r.pageSize
	if end > len(r.items) {
		end = len(r.items)
	}

	lp := &source.ListPage{Page: page, HasMore: end < len(r.items)}
	for _, v := range r.items[start:end] {
		lp.Items = append(lp.Items, source.ListItem{SourceID: v.SourceID, StatusCode: v.StatusCode})
	}
	return lp, nil
}

// FetchDetail implements source.Source.
func (r *Reader) FetchDetail(_ context.Context, sourceID string) (*source.Vacancy, error) {
	return r.byID[sourceID], nil
}

package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// fakeSheets serves the subset of the Sheets v4 REST API the mirror uses,
// backed by a single in-memory tab.
type fakeSheets struct {
	mu       sync.Mutex
	title    string
	sheetID  int64
	rows     [][]any
	calls    []string
	lastBody string
}

func newFakeSheets(title string, sheetID int64) *fakeSheets {
	return &fakeSheets{title: title, sheetID: sheetID}
}

// newTestClient starts the fake and returns a client talking to it.
func newTestClient(t *testing.T, f *fakeSheets) *Client {
	t.Helper()
	ts := httptest.NewServer(f)
	t.Cleanup(ts.Close)

	svc, err := gsheet.NewService(context.Background(),
		goption.WithEndpoint(ts.URL+"/"),
		goption.WithHTTPClient(ts.Client()))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return NewWithService(svc, "sid", f.title)
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := strings.TrimPrefix(r.URL.Path, "/v4/spreadsheets/sid")
	f.calls = append(f.calls, r.Method+" "+path)

	switch {
	case path == "" && r.Method == http.MethodGet:
		writeJSON(w, map[string]any{
			"spreadsheetId": "sid",
			"sheets": []any{map[string]any{
				"properties": map[string]any{"sheetId": f.sheetID, "title": f.title},
			}},
		})
	case path == ":batchUpdate" && r.Method == http.MethodPost:
		f.batchUpdate(w, r)
	case strings.HasPrefix(path, "/values/"):
		f.values(w, r, strings.TrimPrefix(path, "/values/"))
	default:
		http.Error(w, "unexpected "+r.Method+" "+r.URL.Path, http.StatusNotFound)
	}
}

func (f *fakeSheets) values(w http.ResponseWriter, r *http.Request, rng string) {
	action := ""
	if i := strings.LastIndex(rng, ":"); i >= 0 && !strings.Contains(rng[i:], "!") {
		if suffix := rng[i+1:]; suffix == "append" || suffix == "clear" {
			action, rng = suffix, rng[:i]
		}
	}
	sheet, a1, _ := strings.Cut(rng, "!")
	if sheet != f.title {
		http.Error(w, "unknown sheet "+sheet, http.StatusBadRequest)
		return
	}
	rowStart, rowEnd, colStart, colEnd := parseRange(a1)

	switch {
	case r.Method == http.MethodGet:
		writeJSON(w, map[string]any{"range": rng, "majorDimension": "ROWS", "values": f.read(rowStart, rowEnd, colStart, colEnd)})
	case r.Method == http.MethodPut:
		var vr struct {
			Values [][]any `json:"values"`
		}
		_ = json.NewDecoder(r.Body).Decode(&vr)
		f.write(rowStart, colStart, vr.Values)
		writeJSON(w, map[string]any{"updatedRange": rng})
	case action == "append":
		var vr struct {
			Values [][]any `json:"values"`
		}
		_ = json.NewDecoder(r.Body).Decode(&vr)
		f.write(f.lastUsedRow()+1, colStart, vr.Values)
		writeJSON(w, map[string]any{"updates": map[string]any{}})
	case action == "clear":
		for i := rowStart - 1; i < len(f.rows) && (rowEnd == 0 || i < rowEnd); i++ {
			f.rows[i] = nil
		}
		writeJSON(w, map[string]any{"clearedRange": rng})
	default:
		http.Error(w, "unexpected values call", http.StatusBadRequest)
	}
}

func (f *fakeSheets) batchUpdate(w http.ResponseWriter, r *http.Request) {
	var raw json.RawMessage
	_ = json.NewDecoder(r.Body).Decode(&raw)
	f.lastBody = string(raw)

	var req gsheet.BatchUpdateSpreadsheetRequest
	_ = json.Unmarshal(raw, &req)
	for _, rq := range req.Requests {
		if rq.DeleteDimension == nil {
			continue
		}
		dr := rq.DeleteDimension.Range
		if dr.SheetId != f.sheetID || dr.EndIndex > int64(len(f.rows)) {
			http.Error(w, "bad range", http.StatusBadRequest)
			return
		}
		f.rows = append(f.rows[:dr.StartIndex], f.rows[dr.EndIndex:]...)
	}
	writeJSON(w, map[string]any{"spreadsheetId": "sid"})
}

func (f *fakeSheets) read(rowStart, rowEnd, colStart, colEnd int) [][]any {
	var out [][]any
	for i := rowStart - 1; i < len(f.rows) && (rowEnd == 0 || i < rowEnd); i++ {
		row := f.rows[i]
		var cells []any
		for c := colStart; c <= colEnd && c < len(row); c++ {
			cells = append(cells, row[c])
		}
		for len(cells) > 0 && cells[len(cells)-1] == "" {
			cells = cells[:len(cells)-1]
		}
		out = append(out, cells)
	}
	for len(out) > 0 && len(out[len(out)-1]) == 0 {
		out = out[:len(out)-1]
	}
	return out
}

func (f *fakeSheets) write(row, col int, values [][]any) {
	for i, vals := range values {
		idx := row - 1 + i
		for len(f.rows) <= idx {
			f.rows = append(f.rows, nil)
		}
		for len(f.rows[idx]) < col+len(vals) {
			f.rows[idx] = append(f.rows[idx], "")
		}
		copy(f.rows[idx][col:], vals)
	}
}

func (f *fakeSheets) lastUsedRow() int {
	for i := len(f.rows) - 1; i >= 0; i-- {
		if len(f.rows[i]) > 0 {
			return i + 1
		}
	}
	return 0
}

func (f *fakeSheets) snapshot() [][]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.read(1, 0, 0, 25)
}

func (f *fakeSheets) countCalls(prefix string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

// parseRange reads "A:A", "A1:G1" or "A2:G" into 1-based rows (0 means
// unbounded) and 0-based columns.
func parseRange(a1 string) (rowStart, rowEnd, colStart, colEnd int) {
	start, end, ok := strings.Cut(a1, ":")
	if !ok {
		end = start
	}
	colStart, rowStart = parseCell(start)
	colEnd, rowEnd = parseCell(end)
	if rowStart == 0 {
		rowStart = 1
	}
	return rowStart, rowEnd, colStart, colEnd
}

func parseCell(cell string) (col, row int) {
	i := 0
	for i < len(cell) && cell[i] >= 'A' && cell[i] <= 'Z' {
		col = col*26 + int(cell[i]-'A'+1)
		i++
	}
	row, _ = strconv.Atoi(cell[i:])
	return col - 1, row
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

package csvstore

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/user/pricewatch/internal/entity"
	"github.com/user/pricewatch/internal/repository"
	"github.com/user/pricewatch/pkg/utils"
)

// Legacy timestamp layout written by older versions of the dataset.
const legacyTimeLayout = "2006-01-02 03:04:05 PM"

var (
	errEmptyDataset  = errors.New("dataset has no header")
	errMissingColumn = errors.New("missing required column")
)

// Column names written for new datasets, in order.
var defaultHeader = []string{"url", "locator", "price", "last_checked", "status", "price_changed"}

// Accepted header spellings per field.
var columnAliases = map[string][]string{
	"url":           {"url"},
	"locator":       {"locator", "xpath"},
	"price":         {"price", "current_price"},
	"last_checked":  {"last_checked", "last_updated"},
	"status":        {"status"},
	"price_changed": {"price_changed"},
}

type columns struct {
	url, locator, price, lastChecked, status, priceChanged int
}

type layout struct {
	header []string
	cols   columns
	rows   [][]string
}

// CSVProductStore keeps the tracked products in a CSV file. Columns it does
// not know about are carried through untouched.
type CSVProductStore struct {
	path string

	mu     sync.Mutex
	layout *layout
}

// NewCSVProductStore creates a store for the file at path.
func NewCSVProductStore(path string) *CSVProductStore {
	return &CSVProductStore{path: path}
}

func (s *CSVProductStore) Path() string {
	return s.path
}

// Load reads every data row. Row identity is the zero-based data row index.
func (s *CSVProductStore) Load(ctx context.Context) ([]entity.TrackedProduct, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(s.path)
	if err != nil {
		return nil, s.storeErr("load", err)
	}
	raw = bytes.TrimPrefix(raw, []byte("\xef\xbb\xbf"))

	r := csv.NewReader(bytes.NewReader(raw))
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, s.storeErr("load", err)
	}
	if len(records) == 0 {
		return nil, s.storeErr("load", errEmptyDataset)
	}

	l, err := newLayout(records[0])
	if err != nil {
		return nil, s.storeErr("load", err)
	}

	products := make([]entity.TrackedProduct, 0, len(records)-1)
	for _, record := range records[1:] {
		if isBlank(record) {
			continue
		}
		row := pad(record, len(l.header))
		l.rows = append(l.rows, row)
		products = append(products, entity.TrackedProduct{
			Row:         len(l.rows) - 1,
			URL:         strings.TrimSpace(row[l.cols.url]),
			Locator:     strings.TrimSpace(row[l.cols.locator]),
			Price:       parsePrice(row[l.cols.price]),
			LastChecked: parseTime(row[l.cols.lastChecked]),
			Status:      entity.ParseStatus(row[l.cols.status]),

			PriceWasChanged: parseYesNo(row[l.cols.priceChanged]),
		})
	}

	s.mu.Lock()
	s.layout = l
	s.mu.Unlock()
	return products, nil
}

// Save rewrites the whole file with products, keeping the header and extra
// columns of the last Load. The file is replaced atomically.
func (s *CSVProductStore) Save(ctx context.Context, products []entity.TrackedProduct) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	l := s.layout
	s.mu.Unlock()
	if l == nil {
		l, _ = newLayout(defaultHeader)
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(l.header); err != nil {
		return s.storeErr("save", err)
	}
	for _, p := range products {
		row := make([]string, len(l.header))
		loaded := p.Row >= 0 && p.Row < len(l.rows)
		if loaded {
			copy(row, l.rows[p.Row])
		}
		row[l.cols.url] = p.URL
		row[l.cols.locator] = p.Locator
		// The stored cell is kept verbatim unless the price was replaced.
		if !loaded || !samePrice(parsePrice(row[l.cols.price]), p.Price) {
			row[l.cols.price] = formatPrice(p.Price)
		}
		row[l.cols.lastChecked] = formatTime(p.LastChecked)
		row[l.cols.status] = formatStatus(p.Status)
		row[l.cols.priceChanged] = formatYesNo(p.PriceWasChanged)
		if err := w.Write(row); err != nil {
			return s.storeErr("save", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return s.storeErr("save", err)
	}

	if err := writeFileAtomic(s.path, buf.Bytes()); err != nil {
		return s.storeErr("save", err)
	}
	return nil
}

func (s *CSVProductStore) storeErr(op string, err error) error {
	return repository.StoreError{Op: op, Path: s.path, Err: err}
}

func newLayout(header []string) (*layout, error) {
	l := &layout{header: append([]string(nil), header...)}
	find := func(field string) int {
		for i, name := range l.header {
			name = strings.ToLower(strings.TrimSpace(name))
			for _, alias := range columnAliases[field] {
				if name == alias {
					return i
				}
			}
		}
		return -1
	}
	ensure := func(field string) int {
		if i := find(field); i >= 0 {
			return i
		}
		l.header = append(l.header, field)
		return len(l.header) - 1
	}

	l.cols.url = find("url")
	if l.cols.url < 0 {
		return nil, fmt.Errorf("%w: url", errMissingColumn)
	}
	l.cols.locator = find("locator")
	if l.cols.locator < 0 {
		return nil, fmt.Errorf("%w: locator (or xpath)", errMissingColumn)
	}
	l.cols.price = ensure("price")
	l.cols.lastChecked = ensure("last_checked")
	l.cols.status = ensure("status")
	l.cols.priceChanged = ensure("price_changed")
	return l, nil
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", dir, err)
	}

	perm := os.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		perm = info.Mode().Perm()
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

func pad(record []string, n int) []string {
	row := make([]string, max(n, len(record)))
	copy(row, record)
	return row[:n]
}

func isBlank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// parsePrice reads a stored price. Cells that are not a single amount are
// treated as unknown so the next successful check captures a fresh one.
func parsePrice(raw string) decimal.NullDecimal {
	if strings.TrimSpace(raw) == "" {
		return decimal.NullDecimal{}
	}
	d, err := utils.ParseAmount(raw)
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(d)
}

func samePrice(a, b decimal.NullDecimal) bool {
	if a.Valid != b.Valid {
		return false
	}
	return !a.Valid || a.Decimal.Equal(b.Decimal)
}

func formatPrice(p decimal.NullDecimal) string {
	if !p.Valid {
		return ""
	}
	return utils.FormatAmount(p.Decimal)
}

func parseYesNo(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "yes", "true", "1":
		return true
	default:
		return false
	}
}

func formatYesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

func parseTime(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, legacyTimeLayout, time.DateTime} {
		if t, err := time.ParseInLocation(layout, raw, time.Local); err == nil {
			return t
		}
	}
	return time.Time{}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}

func formatStatus(s entity.Status) string {
	if s == "" {
		return string(entity.StatusUnknown)
	}
	return string(s)
}

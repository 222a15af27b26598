package request

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/user/pricewatch/pkg/utils"
)

const (
	DefaultHistoryLimit = 20
	MaxHistoryLimit     = 500
)

var ErrMissingURL = errors.New("url query parameter is required")

// HistoryQuery selects the recorded checks of one product.
type HistoryQuery struct {
	URL   string
	Limit int
}

// ParseHistoryQuery reads ?url=&limit= from r.
func ParseHistoryQuery(r *http.Request) (HistoryQuery, error) {
	q := HistoryQuery{URL: r.URL.Query().Get("url"), Limit: DefaultHistoryLimit}
	if q.URL == "" {
		return q, ErrMissingURL
	}
	if err := utils.ValidateProductURL(q.URL); err != nil {
		return q, err
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return q, fmt.Errorf("limit must be a positive integer")
		}
		q.Limit = min(n, MaxHistoryLimit)
	}
	return q, nil
}

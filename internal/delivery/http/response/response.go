package response

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/user/pricewatch/internal/entity"
	"github.com/user/pricewatch/pkg/utils"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

type HealthResponse struct {
	Status  string `json:"status"`
	Running bool   `json:"running"`
}

type TriggerResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// ProductResponse is a DTO for one dataset row, mirroring entity.TrackedProduct.
type ProductResponse struct {
	Row         int        `json:"row"`
	URL         string     `json:"url"`
	Locator     string     `json:"locator"`
	Price       *string    `json:"price"`
	LastChecked *time.Time `json:"last_checked,omitempty"`
	Status      string     `json:"status"`
}

func NewProductResponse(p entity.TrackedProduct) ProductResponse {
	resp := ProductResponse{
		Row:     p.Row,
		URL:     p.URL,
		Locator: p.Locator,
		Price:   priceString(p.Price),
		Status:  string(p.Status),
	}
	if !p.LastChecked.IsZero() {
		at := p.LastChecked
		resp.LastChecked = &at
	}
	return resp
}

func priceString(d decimal.NullDecimal) *string {
	if !d.Valid {
		return nil
	}
	s := utils.FormatAmount(d.Decimal)
	return &s
}

type RunSummaryResponse struct {
	RunID      string    `json:"run_id"`
	Total      int       `json:"total"`
	Processed  int       `json:"processed"`
	OK         int       `json:"ok"`
	Changed    int       `json:"changed"`
	Failed     int       `json:"failed"`
	Skipped    int       `json:"skipped"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	DurationMS int64     `json:"duration_ms"`
}

func NewRunSummaryResponse(s entity.RunSummary) RunSummaryResponse {
	return RunSummaryResponse{
		RunID:      s.RunID,
		Total:      s.Total,
		Processed:  s.Processed,
		OK:         s.OK,
		Changed:    s.Changed,
		Failed:     s.Failed,
		Skipped:    s.Skipped,
		StartedAt:  s.StartedAt,
		FinishedAt: s.FinishedAt,
		DurationMS: s.Duration.Milliseconds(),
	}
}

// PriceCheckResponse is a DTO for one recorded check, mirroring entity.PriceCheck.
type PriceCheckResponse struct {
	RunID         string    `json:"run_id"`
	Status        string    `json:"status"`
	PreviousPrice *string   `json:"previous_price"`
	Price         *string   `json:"price"`
	ErrorKind     string    `json:"error_kind,omitempty"`
	ErrorMessage  string    `json:"error_message,omitempty"`
	Attempts      int       `json:"attempts"`
	DurationMS    int64     `json:"duration_ms"`
	CheckedAt     time.Time `json:"checked_at"`
}

func NewPriceCheckResponse(c *entity.PriceCheck) PriceCheckResponse {
	resp := PriceCheckResponse{
		RunID:        c.RunID,
		Status:       string(c.Status),
		ErrorKind:    c.ErrorKind,
		ErrorMessage: c.ErrorMessage,
		Attempts:     c.Attempts,
		DurationMS:   c.DurationMS,
		CheckedAt:    c.CheckedAt,
	}
	resp.PreviousPrice = priceString(c.PreviousPrice)
	resp.Price = priceString(c.Price)
	return resp
}

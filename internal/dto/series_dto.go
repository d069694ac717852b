package dto

// CreateSeriesRequest registers a new numbering stream (POST /v1/series).
type CreateSeriesRequest struct {
	Code string `json:"code" validate:"required,alpha,uppercase,max=20"`
	Year int    `json:"year" validate:"required,min=2000,max=2100"`
	Kind string `json:"kind" validate:"required,oneof=normal manual pos"`
}

type CounterResponse struct {
	Prefix    string `json:"prefix"`
	Year      int    `json:"year"`
	LastValue int64  `json:"last_value"`
}

type SeriesResponse struct {
	ID     string `json:"id"`
	Code   string `json:"code"`
	Year   int    `json:"year"`
	Kind   string `json:"kind"`
	Active bool   `json:"active"`
	// Counters is informational only — allocation always goes through the
	// atomic counter at the storage layer.
	Counters []CounterResponse `json:"counters"`
}

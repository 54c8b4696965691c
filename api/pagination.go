// Copyright 2026 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package api

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

const (
	DefaultPaginationCount    = 100
	MaxPaginationCount        = 100
	DefaultPaginationPage     = 1
	DefaultPaginationOrderAsc = "asc"
	PaginationOrderDesc       = "desc"
)

var ErrInvalidPaginationParameters = errors.New(
	"invalid pagination parameters",
)

// PaginationParams contains parsed pagination query values.
type PaginationParams struct {
	Count int
	Page  int
	Order string
}

// ParsePagination parses the count, page and order query parameters.
// Count and page are clamped to their valid ranges.
func ParsePagination(r *http.Request) (PaginationParams, error) {
	query := r.URL.Query()
	count, err := intParam(query, "count", DefaultPaginationCount)
	if err != nil {
		return PaginationParams{}, err
	}
	page, err := intParam(query, "page", DefaultPaginationPage)
	if err != nil {
		return PaginationParams{}, err
	}
	order := DefaultPaginationOrderAsc
	if orderParam := query.Get("order"); orderParam != "" {
		order = strings.ToLower(orderParam)
		if order != DefaultPaginationOrderAsc && order != PaginationOrderDesc {
			return PaginationParams{}, ErrInvalidPaginationParameters
		}
	}
	return PaginationParams{
		Count: min(max(count, 1), MaxPaginationCount),
		Page:  max(page, 1),
		Order: order,
	}, nil
}

func intParam(query url.Values, name string, defaultValue int) (int, error) {
	raw := query.Get(name)
	if raw == "" {
		return defaultValue, nil
	}
	ret, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s", ErrInvalidPaginationParameters, name)
	}
	return ret, nil
}

// Bounds returns the slice bounds of the requested page over total items
func (p PaginationParams) Bounds(total int) (int, int) {
	if total <= 0 || p.Count < 1 || p.Page < 1 {
		return 0, 0
	}
	// Pages past the end are compared before multiplying to avoid overflow
	if p.Page-1 > total/p.Count {
		return total, total
	}
	start := min((p.Page-1)*p.Count, total)
	end := start + p.Count
	if end > total {
		end = total
	}
	return start, end
}

// ParseEventRange parses the from and count query parameters used to page
// through the event log. from defaults to the first sequence number.
func ParseEventRange(r *http.Request) (uint64, int, error) {
	query := r.URL.Query()
	from := uint64(1)
	if fromParam := query.Get("from"); fromParam != "" {
		var err error
		from, err = strconv.ParseUint(fromParam, 10, 64)
		if err != nil {
			return 0, 0, fmt.Errorf("%w: from", ErrInvalidPaginationParameters)
		}
		// Sequence numbers are stored as signed 64-bit integers
		from = min(from, math.MaxInt64)
	}
	count, err := intParam(query, "count", DefaultPaginationCount)
	if err != nil {
		return 0, 0, err
	}
	return from, min(max(count, 1), MaxPaginationCount), nil
}

// SetPaginationHeaders sets the pagination headers.
func SetPaginationHeaders(
	w http.ResponseWriter,
	totalItems int,
	params PaginationParams,
) {
	if totalItems < 0 {
		totalItems = 0
	}
	if params.Count < 1 {
		params.Count = DefaultPaginationCount
	}
	totalPages := 0
	if totalItems > 0 {
		// Equivalent to ceil(totalItems/params.count)
		totalPages = (totalItems + params.Count - 1) / params.Count
	}
	w.Header().Set(
		"X-Pagination-Count-Total",
		strconv.Itoa(totalItems),
	)
	w.Header().Set(
		"X-Pagination-Page-Total",
		strconv.Itoa(totalPages),
	)
}

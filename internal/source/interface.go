package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// MaxErrorBody caps the response body kept on an HTTPError.
const MaxErrorBody = 512

var (
	// ErrNotFound is returned when every candidate endpoint answered 404.
	ErrNotFound = errors.New("source record not found")
	// ErrMalformed is returned when a response body cannot be decoded.
	ErrMalformed = errors.New("malformed source response")
)

// HTTPError is a non-2xx response that survived all retries.
type HTTPError struct {
	StatusCode int
	Body       string
	URL        string
}

// NewHTTPError builds an HTTPError with the body truncated to MaxErrorBody bytes.
func NewHTTPError(status int, body []byte, url string) *HTTPError {
	if len(body) > MaxErrorBody {
		body = body[:MaxErrorBody]
	}
	return &HTTPError{StatusCode: status, Body: string(body), URL: url}
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("source request %s failed with status %d: %s", e.URL, e.StatusCode, e.Body)
}

// Vacancy is a flat view of one source record. Fields a source does not
// provide stay zero; Raw always keeps the payload verbatim.
type Vacancy struct {
	SourceID      string `json:"source_id,omitempty"`
	TitleUz       string `json:"title_uz,omitempty"`
	TitleRu       string `json:"title_ru,omitempty"`
	DescriptionUz string `json:"description_uz,omitempty"`
	DescriptionRu string `json:"description_ru,omitempty"`
	Company       string `json:"company,omitempty"`

	SalaryMin int64 `json:"salary_min,omitempty"`
	SalaryMax int64 `json:"salary_max,omitempty"`

	WorkTypeCode  int   `json:"work_type_code,omitempty"`
	WorkModeCode  int   `json:"work_mode_code,omitempty"`
	GenderCode    int   `json:"gender_code,omitempty"`
	EducationCode int   `json:"education_code,omitempty"`
	StatusCode    int   `json:"status_code,omitempty"`
	ForWhom       []int `json:"for_whom,omitempty"`
	Count         int   `json:"count,omitempty"`

	RegionSourceID   string `json:"region_source_id,omitempty"`
	RegionName       string `json:"region_name,omitempty"`
	DistrictSourceID string `json:"district_source_id,omitempty"`
	DistrictName     string `json:"district_name,omitempty"`
	CategorySourceID string `json:"category_source_id,omitempty"`
	CategoryName     string `json:"category_name,omitempty"`

	Phone    string   `json:"phone,omitempty"`
	Telegram string   `json:"telegram,omitempty"`
	Benefits []string `json:"benefits,omitempty"`

	Raw json.RawMessage `json:"raw,omitempty"`
}

// HasContacts reports whether the record carries a phone or telegram handle.
func (v *Vacancy) HasContacts() bool {
	return v.Phone != "" || v.Telegram != ""
}

// ListItem is a summary row from a listing page.
type ListItem struct {
	SourceID   string
	StatusCode int
}

// ListPage is one page of a source listing.
type ListPage struct {
	Page    int
	Items   []ListItem
	HasMore bool
}

// Source defines the interface for vacancy sources.
type Source interface {
	// Name returns the stable identifier stored in jobs.source.
	Name() string

	// FetchList fetches one listing page.
	// Parameters:
	//   - ctx: context for cancellation and deadlines.
	//   - page: 1-based page number.
	// Returns:
	//   - *ListPage: page items and whether more pages follow.
	//   - error: non-nil if the page could not be fetched.
	FetchList(ctx context.Context, page int) (*ListPage, error)

	// FetchDetail fetches the full record for one source id.
	// Parameters:
	//   - ctx: context for cancellation and deadlines.
	//   - sourceID: id within the source.
	// Returns:
	//   - *Vacancy: the record, or nil when the source no longer has it.
	//   - error: non-nil on transport, HTTP or decoding failure.
	FetchDetail(ctx context.Context, sourceID string) (*Vacancy, error)
}

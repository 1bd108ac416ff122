package osonish

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/timmy/jobimport/internal/source"
)

// Detail payload paths. The API wraps records in "data"; older versions
// return them bare.
const (
	pathID            = "id"
	pathTitle         = "title"
	pathTitleRu       = "title_ru"
	pathDescription   = "description"
	pathDescriptionRu = "description_ru"
	pathCompany       = "company.name"
	pathCompanyFlat   = "company_name"
	pathSalaryMin     = "salary_min"
	pathSalaryMax     = "salary_max"
	pathWorkType      = "work_type"
	pathWorkMode      = "work_mode"
	pathGender        = "gender"
	pathEducation     = "education"
	pathStatus        = "status"
	pathForWhom       = "for_whom"
	pathCount         = "count"
	pathBenefits      = "benefits"
	pathRegionID      = "filial.region.id"
	pathRegionName    = "filial.region.name_uz"
	pathDistrictID    = "filial.city.id"
	pathDistrictName  = "filial.city.name_uz"
	pathCategoryID    = "mmk_position.id"
	pathCategoryName  = "mmk_position.name"
	pathPhone         = "hr.phone"
	pathTelegram      = "hr.telegram"
)

func unwrap(body []byte) (gjson.Result, error) {
	if !gjson.ValidBytes(body) {
		return gjson.Result{}, source.ErrMalformed
	}
	root := gjson.ParseBytes(body)
	if data := root.Get("data"); data.IsObject() || data.IsArray() {
		return data, nil
	}
	if !root.IsObject() && !root.IsArray() {
		return gjson.Result{}, source.ErrMalformed
	}
	return root, nil
}

// parseList reads a listing page. Items are either under data.data with
// current_page/last_page, or a bare array.
func parseList(body []byte, page, pageSize int) (*source.ListPage, error) {
	root, err := unwrap(body)
	if err != nil {
		return nil, err
	}

	items := root
	if root.IsObject() {
		items = root.Get("data")
	}
	if !items.IsArray() {
		return nil, fmt.Errorf("%w: listing has no item array", source.ErrMalformed)
	}

	lp := &source.ListPage{Page: page}
	items.ForEach(func(_, item gjson.Result) bool {
		id := strings.TrimSpace(item.Get(pathID).String())
		if id == "" {
			return true
		}
		lp.Items = append(lp.Items, source.ListItem{
			SourceID:   id,
			StatusCode: int(item.Get(pathStatus).Int()),
		})
		return true
	})

	if last := root.Get("last_page"); last.Exists() {
		current := root.Get("current_page").Int()
		if current == 0 {
			current = int64(page)
		}
		lp.HasMore = current < last.Int()
	} else {
		lp.HasMore = len(lp.Items) >= pageSize && len(lp.Items) > 0
	}
	return lp, nil
}

// parseDetail flattens one vacancy payload. Raw keeps the record object
// exactly as received.
func parseDetail(body []byte) (*source.Vacancy, error) {
	rec, err := unwrap(body)
	if err != nil {
		return nil, err
	}
	if !rec.IsObject() {
		return nil, fmt.Errorf("%w: detail is not an object", source.ErrMalformed)
	}

	id := strings.TrimSpace(rec.Get(pathID).String())
	if id == "" {
		return nil, fmt.Errorf("%w: detail has no id", source.ErrMalformed)
	}

	v := &source.Vacancy{
		SourceID:      id,
		TitleUz:       str(rec, pathTitle),
		TitleRu:       str(rec, pathTitleRu),
		DescriptionUz: str(rec, pathDescription),
		DescriptionRu: str(rec, pathDescriptionRu),
		Company:       str(rec, pathCompany, pathCompanyFlat),

		SalaryMin: rec.Get(pathSalaryMin).Int(),
		SalaryMax: rec.Get(pathSalaryMax).Int(),

		WorkTypeCode:  code(rec.Get(pathWorkType)),
		WorkModeCode:  code(rec.Get(pathWorkMode)),
		GenderCode:    code(rec.Get(pathGender)),
		EducationCode: code(rec.Get(pathEducation)),
		StatusCode:    code(rec.Get(pathStatus)),
		Count:         int(rec.Get(pathCount).Int()),

		RegionSourceID:   str(rec, pathRegionID),
		RegionName:       str(rec, pathRegionName),
		DistrictSourceID: str(rec, pathDistrictID),
		DistrictName:     str(rec, pathDistrictName),
		CategorySourceID: str(rec, pathCategoryID),
		CategoryName:     str(rec, pathCategoryName),

		Phone:    str(rec, pathPhone),
		Telegram: str(rec, pathTelegram),

		Raw: json.RawMessage(rec.Raw),
	}

	rec.Get(pathForWhom).ForEach(func(_, item gjson.Result) bool {
		if c := code(item); c > 0 {
			v.ForWhom = append(v.ForWhom, c)
		}
		return true
	})
	rec.Get(pathBenefits).ForEach(func(_, item gjson.Result) bool {
		name := item.String()
		if item.IsObject() {
			name = str(item, "name_uz", "name")
		}
		if name = strings.TrimSpace(name); name != "" {
			v.Benefits = append(v.Benefits, name)
		}
		return true
	})

	return v, nil
}

// str returns the first non-empty string found at paths.
func str(r gjson.Result, paths ...string) string {
	for _, p := range paths {
		if s := strings.TrimSpace(r.Get(p).String()); s != "" {
			return s
		}
	}
	return ""
}

// code reads a numeric code given either as a number, a numeric string or
// an object with an id.
func code(r gjson.Result) int {
	if r.IsObject() {
		r = r.Get("id")
	}
	return int(r.Int())
}

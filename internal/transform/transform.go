// Package transform maps flat source vacancies onto canonical job drafts.
package transform

import (
	"errors"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/timmy/jobimport/internal/domain"
	"github.com/timmy/jobimport/internal/geo"
	"github.com/timmy/jobimport/internal/source"
)

// ErrNoSourceID is returned for records without a dedup key.
var ErrNoSourceID = errors.New("vacancy has no source id")

// Raw payload fallbacks, tried after the flat fields.
var (
	phonePaths        = []string{"contact.phone", "company.phone", "phone"}
	telegramPaths     = []string{"contact.telegram", "company.telegram", "telegram"}
	regionNamePaths   = []string{"filial.region.name_uz", "filial.region.name_ru", "region.name_uz", "region.name_ru", "region_name"}
	districtNamePaths = []string{"filial.city.name_uz", "filial.city.name_ru", "filial.district.name_uz", "district.name_uz", "district_name"}
	titlePaths        = []string{"title_uz", "name", "position"}
	companyPaths      = []string{"company.name", "employer.name", "company_name"}

	regionIDPaths     = []string{"filial.region.id", "region.id", "region_id"}
	districtIDPaths   = []string{"filial.city.id", "filial.district.id", "district.id", "district_id"}
	categoryIDPaths   = []string{"mmk_position.id", "category.id", "category_id"}
	categoryNamePaths = []string{"mmk_position.name", "category.name_uz", "category.name"}
)

// Mapper turns source vacancies into drafts. Geo and Categories are built
// once per run; either may be nil, leaving the matching ids null.
type Mapper struct {
	Source     string
	Geo        *geo.Index
	Categories *geo.CategoryIndex
}

// Transform maps one vacancy. It never touches the store.
func (m *Mapper) Transform(v *source.Vacancy) (*domain.JobDraft, error) {
	if v == nil || strings.TrimSpace(v.SourceID) == "" {
		return nil, ErrNoSourceID
	}
	raw := gjson.ParseBytes(v.Raw)

	c := domain.JobContent{
		TitleUz:        firstNonEmpty(v.TitleUz, rawString(raw, titlePaths...), v.TitleRu),
		TitleRu:        v.TitleRu,
		DescriptionUz:  CleanHTML(v.DescriptionUz),
		DescriptionRu:  CleanHTML(v.DescriptionRu),
		CompanyName:    firstNonEmpty(v.Company, rawString(raw, companyPaths...)),
		EmploymentType: EmploymentType(v.WorkTypeCode),
		WorkMode:       WorkMode(v.WorkModeCode),
		Gender:         Gender(v.GenderCode),
		Education:      Education(v.EducationCode),
		Phone:          NormalizePhone(firstNonEmpty(v.Phone, rawString(raw, phonePaths...))),
		Telegram:       NormalizeTelegram(firstNonEmpty(v.Telegram, rawString(raw, telegramPaths...))),
		Benefits:       domain.StringArray(v.Benefits),
		VacancyCount:   v.Count,
		RawSourceJSON:  domain.RawJSON(v.Raw),
	}
	if c.Benefits == nil {
		c.Benefits = domain.StringArray{}
	}
	if c.VacancyCount < 1 {
		c.VacancyCount = 1
	}
	c.SalaryMin, c.SalaryMax = Salary(v.SalaryMin, v.SalaryMax)
	applyEligibility(&c, v.ForWhom)

	m.locate(&c, v, raw)
	c.CategoryID = m.categorize(v, firstNonEmpty(c.TitleUz, c.TitleRu))

	return &domain.JobDraft{
		Key:          domain.SourceKey{Source: m.Source, SourceID: strings.TrimSpace(v.SourceID)},
		Content:      c,
		SourceStatus: SourceStatus(v.StatusCode),
	}, nil
}

// Reclassify re-runs location and category matching for a stored job,
// reading source ids and names back out of its raw payload.
func (m *Mapper) Reclassify(j *domain.Job) domain.Classification {
	raw := gjson.ParseBytes(j.RawSourceJSON)
	v := &source.Vacancy{
		SourceID:         j.SourceID,
		RegionSourceID:   rawString(raw, regionIDPaths...),
		RegionName:       j.RegionName,
		DistrictSourceID: rawString(raw, districtIDPaths...),
		DistrictName:     j.DistrictName,
		CategorySourceID: rawString(raw, categoryIDPaths...),
		CategoryName:     rawString(raw, categoryNamePaths...),
	}

	var c domain.JobContent
	m.locate(&c, v, raw)
	c.CategoryID = m.categorize(v, firstNonEmpty(j.TitleUz, j.TitleRu))
	return c.Classification()
}

func (m *Mapper) categorize(v *source.Vacancy, title string) *int64 {
	if m.Categories == nil {
		return nil
	}
	cat := m.Categories.Resolve(m.Source, v.CategorySourceID, v.CategoryName, title)
	if cat == nil {
		return nil
	}
	id := cat.ID
	return &id
}

// locate resolves region and district. A resolved district decides the
// region, and stored names always come from the canonical rows.
func (m *Mapper) locate(c *domain.JobContent, v *source.Vacancy, raw gjson.Result) {
	regionNames := withFallbacks(v.RegionName, raw, regionNamePaths)
	districtNames := withFallbacks(v.DistrictName, raw, districtNamePaths)
	c.RegionName = firstNonEmpty(regionNames...)
	c.DistrictName = firstNonEmpty(districtNames...)
	if m.Geo == nil {
		return
	}

	region := m.Geo.ResolveRegion(m.Source, v.RegionSourceID, regionNames...)
	var regionID *int64
	if region != nil {
		regionID = &region.ID
	}

	district := m.Geo.ResolveDistrict(m.Source, v.DistrictSourceID, regionID, districtNames...)
	if district != nil && district.RegionID != nil && (region == nil || region.ID != *district.RegionID) {
		if r, ok := m.Geo.Region(*district.RegionID); ok {
			region = r
		}
	}

	if region != nil {
		id := region.ID
		c.RegionID = &id
		c.RegionName = region.Name
	}
	if district != nil {
		id := district.ID
		c.DistrictID = &id
		c.DistrictName = district.Name
	}
}

func applyEligibility(c *domain.JobContent, codes []int) {
	for _, code := range codes {
		switch code {
		case 1:
			c.IsForStudents = true
		case 2:
			c.IsForGraduates = true
		case 3:
			c.IsForDisabled = true
		case 4:
			c.IsForWomen = true
		}
	}
}

// Salary drops non-positive bounds and orders the rest.
func Salary(min, max int64) (*int64, *int64) {
	var lo, hi *int64
	if min > 0 {
		lo = &min
	}
	if max > 0 {
		hi = &max
	}
	if lo != nil && hi != nil && *lo > *hi {
		lo, hi = hi, lo
	}
	return lo, hi
}

// EmploymentType maps the source work type code.
func EmploymentType(code int) domain.EmploymentType {
	switch code {
	case 2:
		return domain.EmploymentPartTime
	case 3:
		return domain.EmploymentContract
	case 4:
		return domain.EmploymentInternship
	case 5:
		return domain.EmploymentTemporary
	default:
		return domain.EmploymentFullTime
	}
}

// WorkMode maps the source work mode code.
func WorkMode(code int) domain.WorkMode {
	switch code {
	case 2:
		return domain.WorkModeRemote
	case 3:
		return domain.WorkModeHybrid
	default:
		return domain.WorkModeOnsite
	}
}

// Gender maps the source gender code.
func Gender(code int) domain.Gender {
	switch code {
	case 1:
		return domain.GenderMale
	case 2:
		return domain.GenderFemale
	default:
		return domain.GenderAny
	}
}

// Education maps the source education code.
func Education(code int) domain.Education {
	switch code {
	case 1:
		return domain.EducationSecondary
	case 2:
		return domain.EducationVocational
	case 3:
		return domain.EducationHigher
	default:
		return domain.EducationAny
	}
}

// SourceStatus maps the source status code. Only 2 means filled.
func SourceStatus(code int) domain.SourceStatus {
	if code == 2 {
		return domain.SourceStatusFilled
	}
	return domain.SourceStatusActive
}

func withFallbacks(flat string, raw gjson.Result, paths []string) []string {
	names := make([]string, 0, len(paths)+1)
	if s := strings.TrimSpace(flat); s != "" {
		names = append(names, s)
	}
	if !raw.Exists() {
		return names
	}
	for _, p := range paths {
		if s := strings.TrimSpace(raw.Get(p).String()); s != "" {
			names = append(names, s)
		}
	}
	return names
}

func rawString(raw gjson.Result, paths ...string) string {
	if !raw.Exists() {
		return ""
	}
	for _, p := range paths {
		if s := strings.TrimSpace(raw.Get(p).String()); s != "" {
			return s
		}
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}

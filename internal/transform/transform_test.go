package transform

import (
	"context"
	"encoding/json"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/timmy/jobimport/internal/domain"
	"github.com/timmy/jobimport/internal/geo"
	"github.com/timmy/jobimport/internal/source"
)

func ptr(v int64) *int64 { return &v }

func testMapper(mappings ...domain.SourceMapping) *Mapper {
	ids := geo.NewIDMap(mappings)
	regions := []domain.Region{
		{ID: 1, NameUz: "Toshkent shahri", NameRu: "г. Ташкент"},
		{ID: 2, NameUz: "Andijon viloyati", NameRu: "Андижанская область"},
		{ID: 3, NameUz: "Namangan viloyati", NameRu: "Наманганская область"},
	}
	districts := []domain.District{
		{ID: 20, RegionID: ptr(2), NameUz: "Asaka tumani"},
		{ID: 30, RegionID: ptr(3), NameUz: "Chust tumani"},
	}
	cats := []domain.Category{
		{ID: 5, NameUz: "Savdo", Keywords: domain.StringArray{"sotuvchi", "kassir"}},
	}
	return &Mapper{
		Source:     "osonish",
		Geo:        geo.NewIndex(regions, districts, ids),
		Categories: geo.NewCategoryIndex(cats, ids),
	}
}

func TestTransformRegionFromRawByName(t *testing.T) {
	raw := `{"id":140,"title":"Sotuvchi","filial":{"region":{"name_uz":"Andijon viloyati"}}}`
	v := &source.Vacancy{SourceID: "140", TitleUz: "Sotuvchi", Raw: json.RawMessage(raw)}

	d, err := testMapper().Transform(v)
	require.NoError(t, err)

	assert.Equal(t, domain.SourceKey{Source: "osonish", SourceID: "140"}, d.Key)
	require.NotNil(t, d.Content.RegionID)
	assert.Equal(t, int64(2), *d.Content.RegionID)
	assert.Equal(t, "Andijon viloyati", d.Content.RegionName)
	assert.Nil(t, d.Content.DistrictID)
	require.NotNil(t, d.Content.CategoryID)
	assert.Equal(t, int64(5), *d.Content.CategoryID)

	assert.Equal(t, "Andijon viloyati", gjson.GetBytes(d.Content.RawSourceJSON, "filial.region.name_uz").String())
	assert.JSONEq(t, raw, string(d.Content.RawSourceJSON))
}

func TestTransformIDMapBeatsNames(t *testing.T) {
	m := testMapper(domain.SourceMapping{Source: "osonish", Kind: domain.MappingKindRegion, ExternalID: "14", CanonicalID: 3})
	v := &source.Vacancy{SourceID: "1", RegionSourceID: "14", RegionName: "Andijon viloyati"}

	d, err := m.Transform(v)
	require.NoError(t, err)
	require.NotNil(t, d.Content.RegionID)
	assert.Equal(t, int64(3), *d.Content.RegionID)
	assert.Equal(t, "Namangan viloyati", d.Content.RegionName)
}

func TestTransformDistrictForcesRegion(t *testing.T) {
	v := &source.Vacancy{SourceID: "1", RegionName: "Toshkent shahri", DistrictName: "Chust tumani"}

	d, err := testMapper().Transform(v)
	require.NoError(t, err)
	require.NotNil(t, d.Content.DistrictID)
	assert.Equal(t, int64(30), *d.Content.DistrictID)
	require.NotNil(t, d.Content.RegionID)
	assert.Equal(t, int64(3), *d.Content.RegionID)
	assert.Equal(t, "Namangan viloyati", d.Content.RegionName)
	assert.Equal(t, "Chust tumani", d.Content.DistrictName)
}

func TestTransformUnmappedLocationKeepsSourceName(t *testing.T) {
	v := &source.Vacancy{SourceID: "1", RegionName: "Atlantis"}

	d, err := testMapper().Transform(v)
	require.NoError(t, err)
	assert.Nil(t, d.Content.RegionID)
	assert.Nil(t, d.Content.CategoryID)
	assert.Equal(t, "Atlantis", d.Content.RegionName)
}

func TestTransformContactsFallBackToRaw(t *testing.T) {
	v := &source.Vacancy{
		SourceID: "1",
		Raw:      json.RawMessage(`{"contact":{"phone":"90 123 45 67","telegram":"https://t.me/hr_uz"}}`),
	}

	d, err := testMapper().Transform(v)
	require.NoError(t, err)
	assert.Equal(t, "+998901234567", d.Content.Phone)
	assert.Equal(t, "@hr_uz", d.Content.Telegram)

	v.Phone = "+998 (71) 200-00-00"
	d, err = testMapper().Transform(v)
	require.NoError(t, err)
	assert.Equal(t, "+998712000000", d.Content.Phone, "flat field wins")
}

func TestTransformEligibility(t *testing.T) {
	d, err := testMapper().Transform(&source.Vacancy{SourceID: "1", ForWhom: []int{1, 3, 4, 9}})
	require.NoError(t, err)
	assert.True(t, d.Content.IsForStudents)
	assert.False(t, d.Content.IsForGraduates)
	assert.True(t, d.Content.IsForDisabled)
	assert.True(t, d.Content.IsForWomen)
}

func TestSalary(t *testing.T) {
	testCases := []struct {
		name     string
		min, max int64
		wantMin  *int64
		wantMax  *int64
	}{
		{name: "both set", min: 100, max: 200, wantMin: ptr(100), wantMax: ptr(200)},
		{name: "swapped", min: 300, max: 200, wantMin: ptr(200), wantMax: ptr(300)},
		{name: "zero min", min: 0, max: 200, wantMax: ptr(200)},
		{name: "negative max", min: 100, max: -1, wantMin: ptr(100)},
		{name: "none"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			lo, hi := Salary(tc.min, tc.max)
			assert.Equal(t, tc.wantMin, lo)
			assert.Equal(t, tc.wantMax, hi)
		})
	}
}

func TestCodeTables(t *testing.T) {
	assert.Equal(t, domain.EmploymentFullTime, EmploymentType(0))
	assert.Equal(t, domain.EmploymentPartTime, EmploymentType(2))
	assert.Equal(t, domain.EmploymentTemporary, EmploymentType(5))
	assert.Equal(t, domain.EmploymentFullTime, EmploymentType(42))

	assert.Equal(t, domain.WorkModeOnsite, WorkMode(1))
	assert.Equal(t, domain.WorkModeRemote, WorkMode(2))
	assert.Equal(t, domain.WorkModeHybrid, WorkMode(3))

	assert.Equal(t, domain.GenderAny, Gender(0))
	assert.Equal(t, domain.GenderFemale, Gender(2))

	assert.Equal(t, domain.EducationHigher, Education(3))
	assert.Equal(t, domain.EducationAny, Education(7))

	assert.Equal(t, domain.SourceStatusActive, SourceStatus(1))
	assert.Equal(t, domain.SourceStatusFilled, SourceStatus(2))
	assert.Equal(t, domain.SourceStatusActive, SourceStatus(0))
}

func TestTransformDefaults(t *testing.T) {
	d, err := testMapper().Transform(&source.Vacancy{SourceID: " 7 ", TitleRu: "Повар"})
	require.NoError(t, err)
	assert.Equal(t, "7", d.Key.SourceID)
	assert.Equal(t, "Повар", d.Content.TitleUz)
	assert.Equal(t, 1, d.Content.VacancyCount)
	assert.Equal(t, domain.StringArray{}, d.Content.Benefits)
	assert.Equal(t, domain.SourceStatusActive, d.SourceStatus)
	assert.True(t, d.IsActive())
}

func TestTransformRejectsMissingID(t *testing.T) {
	_, err := testMapper().Transform(&source.Vacancy{TitleUz: "x"})
	assert.ErrorIs(t, err, ErrNoSourceID)

	_, err = testMapper().Transform(nil)
	assert.ErrorIs(t, err, ErrNoSourceID)
}

func TestCleanHTML(t *testing.T) {
	in := `<p>Talablar:</p><ul><li>Tajriba &amp; mas'uliyat</li><li>Rus tili</li></ul>Aloqa<br>+998 90<script>x()</script>`
	assert.Equal(t, "Talablar:\n- Tajriba & mas'uliyat\n- Rus tili\nAloqa\n+998 90", CleanHTML(in))
	assert.Equal(t, "plain text", CleanHTML("  plain   text "))
	assert.Equal(t, "", CleanHTML(""))
}

func TestNormalizePhone(t *testing.T) {
	testCases := []struct {
		name string
		in   string
		want string
	}{
		{name: "international", in: "+998 90 123 45 67", want: "+998901234567"},
		{name: "local mobile", in: "90 123 45 67", want: "+998901234567"},
		{name: "two numbers keep the first", in: "+998 90 123 45 67, +998 91 234 56 78", want: "+998901234567"},
		{name: "semicolon list", in: "93 111 22 33; 94 555 66 77", want: "+998931112233"},
		{name: "word separator", in: "97 700 11 22 yoki 99 800 33 44", want: "+998977001122"},
		{name: "local extension dropped", in: "+998 90 123-45-67 (ichki 12)", want: "+998901234567"},
		{name: "russian extension dropped", in: "+998 90 123-45-67 доб. 305", want: "+998901234567"},
		{name: "trunk prefix", in: "8 (90) 123-45-67", want: "+998901234567"},
		{name: "no digits", in: "telefon yo'q", want: ""},
		{name: "empty", in: "  ", want: ""},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, NormalizePhone(tc.in))
		})
	}
}

func TestNormalizeTelegram(t *testing.T) {
	assert.Equal(t, "@hr_uz", NormalizeTelegram("@hr_uz"))
	assert.Equal(t, "@hr_uz", NormalizeTelegram("hr_uz"))
	assert.Equal(t, "@hr_uz", NormalizeTelegram("https://t.me/hr_uz?start=1"))
	assert.Equal(t, "", NormalizeTelegram(" "))
}

func TestTransformAllKeepsOrderAndFoldsFailures(t *testing.T) {
	var in []*source.Vacancy
	for i := 1; i <= 50; i++ {
		in = append(in, &source.Vacancy{SourceID: strconv.Itoa(i)})
	}
	in = append(in, &source.Vacancy{SourceID: ""}, nil)

	drafts, failures, err := testMapper().TransformAll(context.Background(), in, 4)
	require.NoError(t, err)
	require.Len(t, drafts, 50)
	for i, d := range drafts {
		assert.Equal(t, strconv.Itoa(i+1), d.Key.SourceID)
	}
	assert.Len(t, failures, 2)
}

func TestTransformAllCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := testMapper().TransformAll(ctx, []*source.Vacancy{{SourceID: "1"}}, 1)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestReclassifyFromRaw(t *testing.T) {
	m := testMapper(domain.SourceMapping{Source: "osonish", Kind: domain.MappingKindDistrict, ExternalID: "77", CanonicalID: 20})
	job := &domain.Job{
		Source:   "osonish",
		SourceID: "140",
		JobContent: domain.JobContent{
			TitleUz:       "Kassir",
			RegionName:    "Andijon",
			RawSourceJSON: domain.RawJSON(`{"filial":{"city":{"id":77}}}`),
		},
	}

	c := m.Reclassify(job)
	require.NotNil(t, c.DistrictID)
	assert.Equal(t, int64(20), *c.DistrictID)
	require.NotNil(t, c.RegionID)
	assert.Equal(t, int64(2), *c.RegionID)
	assert.Equal(t, "Andijon viloyati", c.RegionName)
	require.NotNil(t, c.CategoryID)
	assert.Equal(t, int64(5), *c.CategoryID)
}

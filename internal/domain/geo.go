package domain

// Region is a top-level canonical location.
type Region struct {
	ID     int64  `gorm:"primaryKey" json:"id"`
	NameUz string `gorm:"type:text;not null" json:"name_uz"`
	NameRu string `gorm:"type:text" json:"name_ru"`
	NameEn string `gorm:"type:text" json:"name_en"`
}

// TableName returns the database table name for Region.
func (Region) TableName() string {
	return "regions"
}

// Names returns every display name of the region, uz first.
func (r Region) Names() []string {
	return []string{r.NameUz, r.NameRu, r.NameEn}
}

// District is a canonical location below a region.
type District struct {
	ID       int64  `gorm:"primaryKey" json:"id"`
	RegionID *int64 `gorm:"index:idx_districts_region" json:"region_id"`
	NameUz   string `gorm:"type:text;not null" json:"name_uz"`
	NameRu   string `gorm:"type:text" json:"name_ru"`
	NameEn   string `gorm:"type:text" json:"name_en"`
}

// TableName returns the database table name for District.
func (District) TableName() string {
	return "districts"
}

// Names returns every display name of the district, uz first.
func (d District) Names() []string {
	return []string{d.NameUz, d.NameRu, d.NameEn}
}

// Category is a flat canonical job category.
type Category struct {
	ID              int64       `gorm:"primaryKey" json:"id"`
	NameUz          string      `gorm:"type:text;not null" json:"name_uz"`
	NameRu          string      `gorm:"type:text" json:"name_ru"`
	Icon            string      `gorm:"type:text" json:"icon"`
	Keywords        StringArray `gorm:"type:text" json:"keywords"`
	ExcludeKeywords StringArray `gorm:"type:text" json:"exclude_keywords"`
}

// TableName returns the database table name for Category.
func (Category) TableName() string {
	return "categories"
}

package domain

import (
	"fmt"
	"time"
)

// SourceStatus is the liveness of a listing as last observed at its source.
type SourceStatus string

const (
	SourceStatusActive          SourceStatus = "active"
	SourceStatusFilled          SourceStatus = "filled"
	SourceStatusRemovedAtSource SourceStatus = "removed_at_source"
)

// EmploymentType values.
type EmploymentType string

const (
	EmploymentFullTime   EmploymentType = "full_time"
	EmploymentPartTime   EmploymentType = "part_time"
	EmploymentContract   EmploymentType = "contract"
	EmploymentInternship EmploymentType = "internship"
	EmploymentTemporary  EmploymentType = "temporary"
)

// WorkMode values.
type WorkMode string

const (
	WorkModeOnsite WorkMode = "onsite"
	WorkModeRemote WorkMode = "remote"
	WorkModeHybrid WorkMode = "hybrid"
)

// Gender requirement of a vacancy.
type Gender string

const (
	GenderAny    Gender = "any"
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

// Education requirement of a vacancy.
type Education string

const (
	EducationAny        Education = "any"
	EducationSecondary  Education = "secondary"
	EducationVocational Education = "vocational"
	EducationHigher     Education = "higher"
)

// SourceKey is the dedup key of an imported listing.
type SourceKey struct {
	Source   string
	SourceID string
}

// String renders the key as "source:source_id".
func (k SourceKey) String() string {
	return fmt.Sprintf("%s:%s", k.Source, k.SourceID)
}

// JobContent holds the columns refreshed on every import.
type JobContent struct {
	TitleUz        string         `gorm:"type:text" json:"title_uz"`
	TitleRu        string         `gorm:"type:text" json:"title_ru"`
	DescriptionUz  string         `gorm:"type:text" json:"description_uz"`
	DescriptionRu  string         `gorm:"type:text" json:"description_ru"`
	CompanyName    string         `gorm:"type:text" json:"company_name"`
	SalaryMin      *int64         `json:"salary_min"`
	SalaryMax      *int64         `json:"salary_max"`
	EmploymentType EmploymentType `gorm:"type:text;default:full_time" json:"employment_type"`
	WorkMode       WorkMode       `gorm:"type:text;default:onsite" json:"work_mode"`
	Gender         Gender         `gorm:"type:text;default:any" json:"gender"`
	Education      Education      `gorm:"type:text;default:any" json:"education"`
	Phone          string         `gorm:"type:text" json:"phone,omitempty"`
	Telegram       string         `gorm:"type:text" json:"telegram,omitempty"`
	Benefits       StringArray    `gorm:"type:text" json:"benefits"`
	VacancyCount   int            `gorm:"default:1" json:"vacancy_count"`

	RegionID     *int64 `gorm:"index:idx_jobs_region" json:"region_id"`
	DistrictID   *int64 `gorm:"index:idx_jobs_district" json:"district_id"`
	RegionName   string `gorm:"type:text" json:"region_name"`
	DistrictName string `gorm:"type:text" json:"district_name"`
	CategoryID   *int64 `gorm:"index:idx_jobs_category" json:"category_id"`

	IsForStudents  bool `gorm:"default:false" json:"is_for_students"`
	IsForDisabled  bool `gorm:"default:false" json:"is_for_disabled"`
	IsForWomen     bool `gorm:"default:false" json:"is_for_women"`
	IsForGraduates bool `gorm:"default:false" json:"is_for_graduates"`

	RawSourceJSON RawJSON `gorm:"type:text" json:"raw_source_json"`
}

// Job is the canonical row for one vacancy.
// (Source, SourceID) is immutable once the row exists.
type Job struct {
	ID       string `gorm:"type:text;primaryKey" json:"id"`
	Source   string `gorm:"type:text;not null;index:idx_jobs_source_key,unique" json:"source"`
	SourceID string `gorm:"type:text;not null;index:idx_jobs_source_key,unique" json:"source_id"`

	JobContent

	IsActive      bool         `gorm:"not null;index:idx_jobs_active" json:"is_active"`
	SourceStatus  SourceStatus `gorm:"type:text;default:active" json:"source_status"`
	LastSeenAt    *time.Time   `json:"last_seen_at,omitempty"`
	LastCheckedAt *time.Time   `json:"last_checked_at,omitempty"`
	LastSyncedAt  *time.Time   `json:"last_synced_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for Job.
func (Job) TableName() string {
	return "jobs"
}

// JobDraft is a transformed source record ready to be upserted.
type JobDraft struct {
	Key          SourceKey
	Content      JobContent
	SourceStatus SourceStatus
}

// IsActive reports whether the draft describes a live listing.
func (d *JobDraft) IsActive() bool {
	return d.SourceStatus != SourceStatusFilled && d.SourceStatus != SourceStatusRemovedAtSource
}

// LifecycleUpdate is the patch the sync engine writes. LastSeenAt is
// left untouched when nil.
type LifecycleUpdate struct {
	IsActive      bool
	SourceStatus  SourceStatus
	LastSeenAt    *time.Time
	LastCheckedAt time.Time
	LastSyncedAt  time.Time
}

// Classification is the subset of JobContent produced by the normalizer.
type Classification struct {
	RegionID     *int64
	DistrictID   *int64
	RegionName   string
	DistrictName string
	CategoryID   *int64
}

// Classification returns the normalizer-owned columns of the content.
func (c *JobContent) Classification() Classification {
	return Classification{
		RegionID:     c.RegionID,
		DistrictID:   c.DistrictID,
		RegionName:   c.RegionName,
		DistrictName: c.DistrictName,
		CategoryID:   c.CategoryID,
	}
}

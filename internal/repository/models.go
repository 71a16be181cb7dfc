package repository

import (
	"time"
)

// JobState is the lifecycle state of a recognition job.
type JobState string

const (
	JobStateSubmitted  JobState = "SUBMITTED"
	JobStateProcessing JobState = "PROCESSING"
	JobStateSuccess    JobState = "SUCCESS"
	JobStateFailed     JobState = "FAILED"
)

// Terminal reports whether the state admits no further mutation.
func (s JobState) Terminal() bool {
	return s == JobStateSuccess || s == JobStateFailed
}

// RecognitionJob is one enqueued recognition request and its eventual outcome.
// Created at intake, mutated only by the executor, never deleted here.
type RecognitionJob struct {
	ID          uint      `gorm:"primaryKey"`
	JobID       string    `gorm:"column:job_id;uniqueIndex;size:64"`
	UserID      string    `gorm:"column:user_id;index;size:64"`
	State       JobState  `gorm:"column:state;size:16"`
	ErrorCode   string    `gorm:"column:error_code;size:64"`
	Payload     string    `gorm:"column:payload;type:text"`
	MealID      *uint     `gorm:"column:meal_id"`
	ImageKey    string    `gorm:"column:image_key;size:255"`
	ContentType string    `gorm:"column:content_type;size:64"`
	MealType    string    `gorm:"column:meal_type;size:32"`
	MealDate    string    `gorm:"column:meal_date;size:10"`
	Comment     string    `gorm:"column:comment;type:text"`
	CreatedAt   time.Time `gorm:"column:created_at"`
	UpdatedAt   time.Time `gorm:"column:updated_at"`
}

// TableName overrides the default table name.
func (RecognitionJob) TableName() string {
	return "recognition_jobs"
}

// Meal groups recognized items under one meal context.
type Meal struct {
	ID        uint      `gorm:"primaryKey"`
	UserID    string    `gorm:"column:user_id;index;size:64"`
	Type      string    `gorm:"column:meal_type;size:32"`
	Date      string    `gorm:"column:meal_date;size:10"`
	Comment   string    `gorm:"column:comment;type:text"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

// TableName overrides the default table name.
func (Meal) TableName() string {
	return "meals"
}

// MealItem is one recognized food item after numeric normalization.
type MealItem struct {
	ID          uint      `gorm:"primaryKey"`
	MealID      uint      `gorm:"column:meal_id;index"`
	JobID       string    `gorm:"column:job_id;index;size:64"`
	Name        string    `gorm:"column:name;size:255"`
	WeightGrams int       `gorm:"column:weight_grams"`
	Calories    float64   `gorm:"column:calories"`
	Protein     float64   `gorm:"column:protein"`
	Fat         float64   `gorm:"column:fat"`
	Carbs       float64   `gorm:"column:carbohydrates"`
	Confidence  *float64  `gorm:"column:confidence"`
	CreatedAt   time.Time `gorm:"column:created_at"`
}

// TableName overrides the default table name.
func (MealItem) TableName() string {
	return "meal_items"
}

// DailyUsage counts recognitions per user per UTC day.
type DailyUsage struct {
	ID     uint   `gorm:"primaryKey"`
	UserID string `gorm:"column:user_id;size:64;uniqueIndex:idx_usage_user_day"`
	Day    string `gorm:"column:day;size:10;uniqueIndex:idx_usage_user_day"`
	Count  int    `gorm:"column:count"`
}

// TableName overrides the default table name.
func (DailyUsage) TableName() string {
	return "daily_usages"
}

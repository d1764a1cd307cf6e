package models

import "time"

type Candidate struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	JobID          uint      `gorm:"index;not null" json:"job_id"`
	Name           *string   `gorm:"type:text" json:"name,omitempty"`
	Email          *string   `gorm:"type:text" json:"email,omitempty"`
	ResumeFilePath string    `gorm:"type:text" json:"resume_file_path,omitempty"`
	ResumeText     string    `gorm:"type:text" json:"-"`
	VectorID       *string   `gorm:"type:text;uniqueIndex" json:"vector_id,omitempty"`
	CreatedAt      time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`

	// Relations
	Evaluation *Evaluation `gorm:"foreignKey:CandidateID;constraint:OnDelete:CASCADE" json:"evaluation,omitempty"`
}

func (Candidate) TableName() string {
	return "candidates"
}

// DisplayName returns the parsed name or "Unknown".
func (c *Candidate) DisplayName() string {
	if c.Name == nil || *c.Name == "" {
		return "Unknown"
	}
	return *c.Name
}

package models

import (
	"encoding/json"
	"math"
	"time"

	"gorm.io/datatypes"
)

type Recommendation string

const (
	StrongMatch   Recommendation = "Strong Match"
	GoodMatch     Recommendation = "Good Match"
	ModerateMatch Recommendation = "Moderate Match"
	WeakMatch     Recommendation = "Weak Match"
)

// Sub-score weights of the overall score. The remaining 15% is unscored.
const (
	WeightTechnical  = 0.30
	WeightExperience = 0.40
	WeightEducation  = 0.15
)

const (
	MinScore = 0.0
	MaxScore = 100.0
)

type Evaluation struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	CandidateID     uint           `gorm:"uniqueIndex;not null" json:"candidate_id"`
	OverallScore    float64        `gorm:"not null" json:"overall_score"`
	TechnicalScore  float64        `gorm:"not null" json:"technical_score"`
	ExperienceScore float64        `gorm:"not null" json:"experience_score"`
	EducationScore  float64        `gorm:"not null" json:"education_score"`
	Strengths       datatypes.JSON `gorm:"type:jsonb" json:"strengths"`
	Concerns        datatypes.JSON `gorm:"type:jsonb" json:"concerns"`
	Recommendation  Recommendation `gorm:"type:text" json:"recommendation"`
	AIAnalysis      string         `gorm:"type:text" json:"ai_analysis,omitempty"`
	CreatedAt       time.Time      `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt       time.Time      `gorm:"default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Evaluation) TableName() string {
	return "evaluations"
}

func (e *Evaluation) StrengthList() []string {
	return decodeStrings(e.Strengths)
}

func (e *Evaluation) ConcernList() []string {
	return decodeStrings(e.Concerns)
}

func (e *Evaluation) SetStrengths(items []string) {
	e.Strengths = encodeStrings(items)
}

func (e *Evaluation) SetConcerns(items []string) {
	e.Concerns = encodeStrings(items)
}

// ClampScore bounds a sub-score to [0,100]. NaN becomes 0.
func ClampScore(v float64) float64 {
	if math.IsNaN(v) || v < MinScore {
		return MinScore
	}
	if v > MaxScore {
		return MaxScore
	}
	return v
}

// OverallScore blends the sub-scores with the fixed weights.
func OverallScore(technical, experience, education float64) float64 {
	return ClampScore(
		WeightTechnical*ClampScore(technical) +
			WeightExperience*ClampScore(experience) +
			WeightEducation*ClampScore(education),
	)
}

// RecommendationFor maps an overall score to its band.
func RecommendationFor(overall float64) Recommendation {
	switch {
	case overall >= 80:
		return StrongMatch
	case overall >= 65:
		return GoodMatch
	case overall >= 50:
		return ModerateMatch
	default:
		return WeakMatch
	}
}

// ParseRecommendation accepts a label case-insensitively.
func ParseRecommendation(label string) (Recommendation, bool) {
	for _, r := range []Recommendation{StrongMatch, GoodMatch, ModerateMatch, WeakMatch} {
		if equalFoldTrim(string(r), label) {
			return r, true
		}
	}
	return "", false
}

func encodeStrings(items []string) datatypes.JSON {
	if items == nil {
		items = []string{}
	}
	b, err := json.Marshal(items)
	if err != nil {
		return datatypes.JSON("[]")
	}
	return datatypes.JSON(b)
}

func decodeStrings(raw datatypes.JSON) []string {
	items := []string{}
	if len(raw) == 0 {
		return items
	}
	if err := json.Unmarshal(raw, &items); err != nil {
		return []string{}
	}
	return items
}

// Package entity 定义领域实体
package entity

import (
	"time"
)

// AnalysisScenePoint 场景要点
type AnalysisScenePoint struct {
	Title   string `json:"title,omitempty"`
	Summary string `json:"summary,omitempty"`
}

// AnalysisCharacterState 人物状态要点
type AnalysisCharacterState struct {
	Character string `json:"character"`
	State     string `json:"state"`
}

// AnalysisScores 质量评分
type AnalysisScores struct {
	Pacing      float64 `json:"pacing,omitempty"`
	Dialogue    float64 `json:"dialogue,omitempty"`
	Description float64 `json:"description,omitempty"`
	Overall     float64 `json:"overall,omitempty"`
}

// ChapterAnalysis 章节分析结果，每章一条
type ChapterAnalysis struct {
	ID                string                   `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ChapterID         string                   `json:"chapter_id" gorm:"type:uuid;uniqueIndex;not null"`
	ProjectID         string                   `json:"project_id" gorm:"type:uuid;index;not null"`
	PlotStage         string                   `json:"plot_stage,omitempty" gorm:"type:varchar(50)"`
	Conflict          string                   `json:"conflict,omitempty" gorm:"type:text"`
	EmotionalArc      string                   `json:"emotional_arc,omitempty" gorm:"type:text"`
	Hooks             []string                 `json:"hooks,omitempty" gorm:"type:jsonb;serializer:json"`
	Foreshadows       []string                 `json:"foreshadows,omitempty" gorm:"type:jsonb;serializer:json"`
	PlotPoints        []string                 `json:"plot_points,omitempty" gorm:"type:jsonb;serializer:json"`
	CharacterStates   []AnalysisCharacterState `json:"character_states,omitempty" gorm:"type:jsonb;serializer:json"`
	Scenes            []AnalysisScenePoint     `json:"scenes,omitempty" gorm:"type:jsonb;serializer:json"`
	Pacing            string                   `json:"pacing,omitempty" gorm:"type:varchar(50)"`
	Scores            *AnalysisScores          `json:"scores,omitempty" gorm:"type:jsonb;serializer:json"`
	Report            string                   `json:"report,omitempty" gorm:"type:text"`
	Suggestions       []string                 `json:"suggestions,omitempty" gorm:"type:jsonb;serializer:json"`
	DialogueRatio     float64                  `json:"dialogue_ratio,omitempty"`
	DescriptionRatio  float64                  `json:"description_ratio,omitempty"`
	CreatedAt         time.Time                `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt         time.Time                `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName 指定表名
func (ChapterAnalysis) TableName() string {
	return "chapter_analyses"
}

// NewChapterAnalysis 创建新的章节分析记录
func NewChapterAnalysis(chapterID, projectID string) *ChapterAnalysis {
	now := time.Now()
	return &ChapterAnalysis{
		ChapterID: chapterID,
		ProjectID: projectID,
		Scores:    &AnalysisScores{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

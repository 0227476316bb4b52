// Package entity 定义领域实体
package entity

import (
	"strconv"
	"time"
)

// MemoryFragmentKind 记忆片段类型
type MemoryFragmentKind string

const (
	MemoryKindChapterSummary MemoryFragmentKind = "chapter_summary"
	MemoryKindHook           MemoryFragmentKind = "hook"
	MemoryKindForeshadow     MemoryFragmentKind = "foreshadow"
	MemoryKindPlotPoint      MemoryFragmentKind = "plot_point"
	MemoryKindCharacterEvent MemoryFragmentKind = "character_event"
)

// ForeshadowState 伏笔状态
type ForeshadowState string

const (
	ForeshadowStateNone     ForeshadowState = "none"
	ForeshadowStatePlanted  ForeshadowState = "planted"
	ForeshadowStateResolved ForeshadowState = "resolved"
)

// MemoryFragment 语义索引的故事片段，是 C3 检索与 C7 组装提示的基础单位
type MemoryFragment struct {
	ID               string             `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	TenantID         string             `json:"tenant_id" gorm:"type:uuid;index;not null"`
	ProjectID        string             `json:"project_id" gorm:"type:uuid;index;not null"`
	ChapterID        string             `json:"chapter_id,omitempty" gorm:"type:uuid;index"`
	Kind             MemoryFragmentKind `json:"kind" gorm:"type:varchar(50);not null"`
	Title            string             `json:"title,omitempty" gorm:"type:varchar(255)"`
	Content          string             `json:"content" gorm:"type:text;not null"`
	Importance       float64            `json:"importance" gorm:"default:0.5"`
	Tags             []string           `json:"tags,omitempty" gorm:"type:jsonb;serializer:json"`
	RelatedCharacters []string          `json:"related_characters,omitempty" gorm:"type:jsonb;serializer:json"`
	TimelineIndex    int                `json:"timeline_index" gorm:"default:0"`
	TextPosition     int                `json:"text_position" gorm:"default:-1"`
	TextLength       int                `json:"text_length" gorm:"default:0"`
	ForeshadowState  ForeshadowState    `json:"foreshadow_state,omitempty" gorm:"type:varchar(20);default:'none'"`
	VectorHandle     string             `json:"vector_handle,omitempty" gorm:"type:varchar(128);index"`
	CreatedAt        time.Time          `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt        time.Time          `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName 指定表名
func (MemoryFragment) TableName() string {
	return "memory_fragments"
}

// NewMemoryFragment 创建新记忆片段，默认 (position,length)=(-1,0)，关键字定位失败时保留此默认值
func NewMemoryFragment(tenantID, projectID, chapterID string, kind MemoryFragmentKind, content string, importance float64, timelineIndex int) *MemoryFragment {
	now := time.Now()
	return &MemoryFragment{
		TenantID:        tenantID,
		ProjectID:       projectID,
		ChapterID:       chapterID,
		Kind:            kind,
		Content:         content,
		Importance:      importance,
		TimelineIndex:   timelineIndex,
		TextPosition:    -1,
		TextLength:      0,
		ForeshadowState: ForeshadowStateNone,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// SetLocation 记录关键字在章节正文中的定位结果
func (m *MemoryFragment) SetLocation(position, length int) {
	m.TextPosition = position
	m.TextLength = length
	m.UpdatedAt = time.Now()
}

// DedupKey 去重键 (chapter_id, kind, timeline_index)
func (m *MemoryFragment) DedupKey() string {
	return m.ChapterID + "|" + string(m.Kind) + "|" + strconv.Itoa(m.TimelineIndex)
}

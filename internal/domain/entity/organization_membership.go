// Package entity 定义领域实体
package entity

import (
	"time"
)

// MembershipStatus 成员关系状态
type MembershipStatus string

const (
	MembershipStatusActive   MembershipStatus = "active"
	MembershipStatusInactive MembershipStatus = "inactive"
	MembershipStatusExpelled MembershipStatus = "expelled"
)

// OrganizationMembership 角色-组织边，position/rank/loyalty 描述成员在组织内的状态
type OrganizationMembership struct {
	ID             string           `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ProjectID      string           `json:"project_id" gorm:"type:uuid;index;not null"`
	CharacterID    string           `json:"character_id" gorm:"type:uuid;index;not null"`
	OrganizationID string           `json:"organization_id" gorm:"type:uuid;index;not null"`
	Position       string           `json:"position,omitempty" gorm:"type:varchar(100)"`
	Rank           string           `json:"rank,omitempty" gorm:"type:varchar(100)"`
	Loyalty        float64          `json:"loyalty" gorm:"default:0.5"`
	Status         MembershipStatus `json:"status" gorm:"type:varchar(20);default:'active'"`
	CreatedAt      time.Time        `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt      time.Time        `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName 指定表名
func (OrganizationMembership) TableName() string {
	return "organization_memberships"
}

// NewOrganizationMembership 创建新的成员关系
func NewOrganizationMembership(projectID, characterID, organizationID string) *OrganizationMembership {
	now := time.Now()
	return &OrganizationMembership{
		ProjectID:      projectID,
		CharacterID:    characterID,
		OrganizationID: organizationID,
		Loyalty:        0.5,
		Status:         MembershipStatusActive,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// DedupKey 去重键 (project, character, organization)，用于 last-wins 去重
func (m *OrganizationMembership) DedupKey() string {
	return m.ProjectID + "|" + m.CharacterID + "|" + m.OrganizationID
}

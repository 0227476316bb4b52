// Package entity 定义领域实体
package entity

import (
	"time"
)

// ToolPluginTransport 插件传输方式
type ToolPluginTransport string

const (
	ToolPluginTransportStdio            ToolPluginTransport = "stdio"
	ToolPluginTransportSSE              ToolPluginTransport = "sse"
	ToolPluginTransportStreamableHTTP   ToolPluginTransport = "streamable_http"
)

// ToolPluginStatus 插件观测状态
type ToolPluginStatus string

const (
	ToolPluginStatusPending  ToolPluginStatus = "pending"
	ToolPluginStatusActive   ToolPluginStatus = "active"
	ToolPluginStatusError    ToolPluginStatus = "error"
	ToolPluginStatusDegraded ToolPluginStatus = "degraded"
)

// ToolDescriptor 缓存的工具定义
type ToolDescriptor struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	SchemaJSON  string `json:"schema_json,omitempty"`
}

// ToolPlugin 租户范围的外部工具端点描述符
type ToolPlugin struct {
	ID           string              `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	TenantID     string              `json:"tenant_id" gorm:"type:uuid;index;not null"`
	PluginName   string              `json:"plugin_name" gorm:"type:varchar(100);not null"`
	Transport    ToolPluginTransport `json:"transport" gorm:"type:varchar(30);not null"`
	Command      string              `json:"command,omitempty" gorm:"type:varchar(500)"`
	URL          string              `json:"url,omitempty" gorm:"type:varchar(500)"`
	Env          map[string]string   `json:"env,omitempty" gorm:"type:jsonb;serializer:json"`
	Headers      map[string]string   `json:"headers,omitempty" gorm:"type:jsonb;serializer:json"`
	Enabled      bool                `json:"enabled" gorm:"default:true"`
	Status       ToolPluginStatus    `json:"status" gorm:"type:varchar(20);default:'pending'"`
	LastError    string              `json:"last_error,omitempty" gorm:"type:text"`
	CachedTools  []ToolDescriptor    `json:"cached_tools,omitempty" gorm:"type:jsonb;serializer:json"`
	CachedAt     *time.Time          `json:"cached_at,omitempty"`
	CreatedAt    time.Time           `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt    time.Time           `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName 指定表名
func (ToolPlugin) TableName() string {
	return "tool_plugins"
}

// NewToolPlugin 创建新插件描述符，初始状态 pending
func NewToolPlugin(tenantID, pluginName string, transport ToolPluginTransport) *ToolPlugin {
	now := time.Now()
	return &ToolPlugin{
		TenantID:   tenantID,
		PluginName: pluginName,
		Transport:  transport,
		Enabled:    true,
		Status:     ToolPluginStatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// MarkActive 探活成功
func (p *ToolPlugin) MarkActive() {
	p.Status = ToolPluginStatusActive
	p.LastError = ""
	p.UpdatedAt = time.Now()
}

// MarkError 探活或调用失败
func (p *ToolPlugin) MarkError(errMsg string) {
	p.Status = ToolPluginStatusError
	p.LastError = errMsg
	p.UpdatedAt = time.Now()
}

// MarkDegraded 健康检查判定为降级
func (p *ToolPlugin) MarkDegraded() {
	p.Status = ToolPluginStatusDegraded
	p.UpdatedAt = time.Now()
}

// RefreshTools 刷新缓存的工具列表
func (p *ToolPlugin) RefreshTools(tools []ToolDescriptor) {
	now := time.Now()
	p.CachedTools = tools
	p.CachedAt = &now
	p.UpdatedAt = now
}

// Package postgres 提供 PostgreSQL Repository 实现
package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"z-novel-ai-api/internal/domain/entity"
)

// ToolPluginRepository 工具插件仓储实现
type ToolPluginRepository struct {
	client *Client
}

// NewToolPluginRepository 创建工具插件仓储
func NewToolPluginRepository(client *Client) *ToolPluginRepository {
	return &ToolPluginRepository{client: client}
}

func (r *ToolPluginRepository) Create(ctx context.Context, plugin *entity.ToolPlugin) error {
	ctx, span := tracer.Start(ctx, "postgres.ToolPluginRepository.Create")
	defer span.End()

	db := getGormDB(ctx, r.client)
	if err := db.Create(plugin).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create tool plugin: %w", err)
	}
	return nil
}

func (r *ToolPluginRepository) GetByID(ctx context.Context, id string) (*entity.ToolPlugin, error) {
	ctx, span := tracer.Start(ctx, "postgres.ToolPluginRepository.GetByID")
	defer span.End()

	db := getGormDB(ctx, r.client)
	var plugin entity.ToolPlugin
	if err := db.First(&plugin, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get tool plugin: %w", err)
	}
	return &plugin, nil
}

func (r *ToolPluginRepository) GetByName(ctx context.Context, tenantID, pluginName string) (*entity.ToolPlugin, error) {
	ctx, span := tracer.Start(ctx, "postgres.ToolPluginRepository.GetByName")
	defer span.End()

	db := getGormDB(ctx, r.client)
	var plugin entity.ToolPlugin
	err := db.Where("tenant_id = ? AND plugin_name = ?", tenantID, pluginName).First(&plugin).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get tool plugin by name: %w", err)
	}
	return &plugin, nil
}

func (r *ToolPluginRepository) Update(ctx context.Context, plugin *entity.ToolPlugin) error {
	ctx, span := tracer.Start(ctx, "postgres.ToolPluginRepository.Update")
	defer span.End()

	db := getGormDB(ctx, r.client)
	if err := db.Save(plugin).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to update tool plugin: %w", err)
	}
	return nil
}

func (r *ToolPluginRepository) Delete(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "postgres.ToolPluginRepository.Delete")
	defer span.End()

	db := getGormDB(ctx, r.client)
	if err := db.Delete(&entity.ToolPlugin{}, "id = ?", id).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to delete tool plugin: %w", err)
	}
	return nil
}

func (r *ToolPluginRepository) ListByTenant(ctx context.Context, tenantID string) ([]*entity.ToolPlugin, error) {
	ctx, span := tracer.Start(ctx, "postgres.ToolPluginRepository.ListByTenant")
	defer span.End()

	db := getGormDB(ctx, r.client)
	var plugins []*entity.ToolPlugin
	if err := db.Where("tenant_id = ?", tenantID).Order("created_at ASC").Find(&plugins).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list tool plugins: %w", err)
	}
	return plugins, nil
}

func (r *ToolPluginRepository) ListEnabled(ctx context.Context, tenantID string) ([]*entity.ToolPlugin, error) {
	ctx, span := tracer.Start(ctx, "postgres.ToolPluginRepository.ListEnabled")
	defer span.End()

	db := getGormDB(ctx, r.client)
	var plugins []*entity.ToolPlugin
	err := db.Where("tenant_id = ? AND enabled = ?", tenantID, true).Order("created_at ASC").Find(&plugins).Error
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list enabled tool plugins: %w", err)
	}
	return plugins, nil
}

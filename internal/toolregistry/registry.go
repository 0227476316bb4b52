package toolregistry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"z-novel-ai-api/internal/domain/entity"
	"z-novel-ai-api/internal/domain/repository"
	"z-novel-ai-api/pkg/logger"
)

// Registry 按租户缓存工具插件连接，负责探活与工具发现缓存。
type Registry struct {
	pluginRepo repository.ToolPluginRepository

	mu      sync.Mutex
	clients map[string]Client // keyed by plugin ID

	callTimeout time.Duration
}

// NewRegistry 创建工具注册中心。
func NewRegistry(pluginRepo repository.ToolPluginRepository, callTimeout time.Duration) *Registry {
	if callTimeout <= 0 {
		callTimeout = 15 * time.Second
	}
	return &Registry{
		pluginRepo:  pluginRepo,
		clients:     make(map[string]Client),
		callTimeout: callTimeout,
	}
}

// ListEnabled 刷新并返回租户下全部启用插件的工具清单（按插件聚合）。
func (r *Registry) ListEnabled(ctx context.Context, tenantID string) (map[string][]entity.ToolDescriptor, error) {
	plugins, err := r.pluginRepo.ListEnabled(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	out := make(map[string][]entity.ToolDescriptor, len(plugins))
	for _, p := range plugins {
		tools, err := r.ensureTools(ctx, p)
		if err != nil {
			logger.Warn(ctx, "tool plugin probe failed", "plugin", p.PluginName, "error", err.Error())
			p.MarkError(err.Error())
			_ = r.pluginRepo.Update(ctx, p)
			continue
		}
		out[p.PluginName] = tools
	}
	return out, nil
}

func (r *Registry) ensureTools(ctx context.Context, plugin *entity.ToolPlugin) ([]entity.ToolDescriptor, error) {
	client, err := r.clientFor(ctx, plugin)
	if err != nil {
		return nil, err
	}

	tools, err := client.ListTools(ctx)
	if err != nil {
		r.invalidate(plugin.ID)
		return nil, err
	}

	plugin.MarkActive()
	plugin.RefreshTools(tools)
	if err := r.pluginRepo.Update(ctx, plugin); err != nil {
		logger.Warn(ctx, "failed to persist refreshed tool cache", "plugin", plugin.PluginName, "error", err.Error())
	}
	return tools, nil
}

func (r *Registry) clientFor(ctx context.Context, plugin *entity.ToolPlugin) (Client, error) {
	r.mu.Lock()
	if c, ok := r.clients[plugin.ID]; ok {
		r.mu.Unlock()
		return c, nil
	}
	r.mu.Unlock()

	c, err := Dial(ctx, plugin)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.clients[plugin.ID] = c
	r.mu.Unlock()
	return c, nil
}

func (r *Registry) invalidate(pluginID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.clients[pluginID]; ok {
		_ = c.Close()
		delete(r.clients, pluginID)
	}
}

// Call 调用租户下某插件暴露的工具，超时由 ToolCallTimeout 控制。
func (r *Registry) Call(ctx context.Context, tenantID, pluginName, toolName string, args map[string]any) (map[string]any, error) {
	plugin, err := r.pluginRepo.GetByName(ctx, tenantID, pluginName)
	if err != nil {
		return nil, err
	}
	if plugin == nil {
		return nil, fmt.Errorf("tool plugin not found: %s", pluginName)
	}
	if !plugin.Enabled {
		return nil, fmt.Errorf("tool plugin disabled: %s", pluginName)
	}

	client, err := r.clientFor(ctx, plugin)
	if err != nil {
		plugin.MarkError(err.Error())
		_ = r.pluginRepo.Update(ctx, plugin)
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, r.callTimeout)
	defer cancel()

	result, err := client.Call(callCtx, toolName, args)
	if err != nil {
		r.invalidate(plugin.ID)
		plugin.MarkError(err.Error())
		_ = r.pluginRepo.Update(ctx, plugin)
		return nil, err
	}
	return result, nil
}

// CloseAll 关闭全部已建立的插件连接。
func (r *Registry) CloseAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, c := range r.clients {
		_ = c.Close()
		delete(r.clients, id)
	}
}

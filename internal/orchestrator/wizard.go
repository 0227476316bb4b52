package orchestrator

import (
	stdcontext "context"
	"encoding/json"
	"fmt"
	"strings"

	"z-novel-ai-api/internal/domain/entity"
	"z-novel-ai-api/pkg/logger"
)

// rawWorld 镜像 world_v1 提示词要求模型输出的字段。
type rawWorld struct {
	Genre      string   `json:"genre"`
	POV        string   `json:"pov"`
	Tone       string   `json:"tone"`
	Time       string   `json:"time"`
	Location   string   `json:"location"`
	Atmosphere string   `json:"atmosphere"`
	Rules      []string `json:"rules"`
}

// rawRelationRef/rawOrgRef/rawCharacter 镜像 characters_batch_v1 的批次条目结构。
type rawRelationRef struct {
	TargetName   string  `json:"target_name"`
	RelationType string  `json:"relation_type"`
	Strength     float64 `json:"strength"`
}

type rawOrgRef struct {
	Name     string  `json:"name"`
	Position string  `json:"position"`
	Rank     string  `json:"rank"`
	Loyalty  float64 `json:"loyalty"`
}

type rawCharacter struct {
	Name          string           `json:"name"`
	Type          string           `json:"type"` // character | organization
	Role          string           `json:"role"`
	Personality   string           `json:"personality"`
	Background    string           `json:"background"`
	Relations     []rawRelationRef `json:"relations"`
	Organizations []rawOrgRef      `json:"organizations"`
}

// WizardWorldInput 描述向导 W1 的请求参数。
type WizardWorldInput struct {
	TenantID     string
	OwnerID      string
	Title        string
	Theme        string
	Genre        string
	ExistingWorld string
	Provider     string
}

// WizardWorld 生成世界观设定并创建项目，自动绑定第一个全局写作风格预设为项目默认风格。
func (o *Orchestrator) WizardWorld(ctx stdcontext.Context, in WizardWorldInput) (*entity.Project, error) {
	var world rawWorld
	err := o.generateJSONObject(ctx, "wizard_world", in.Provider, "world_v1", map[string]any{
		"genre":         orDefault(in.Genre, in.Theme),
		"inspiration":   orDefault(in.Theme, in.Title),
		"existing_world": orDefault(in.ExistingWorld, "未设定"),
	}, "existing_world", o.maxRetries(), &world)
	if err != nil {
		return nil, err
	}

	project := entity.NewProject(in.TenantID, in.OwnerID, in.Title)
	project.Genre = orDefault(world.Genre, in.Genre)
	project.Description = fmt.Sprintf("基调：%s；时间背景：%s；空间背景：%s；氛围：%s", world.Tone, world.Time, world.Location, world.Atmosphere)
	project.Settings.POV = world.POV
	if project.WorldSettings == nil {
		project.WorldSettings = &entity.WorldSettings{}
	}
	project.WorldSettings.Locations = append(project.WorldSettings.Locations, world.Location)

	lockCtx, release, err := o.tenants.WriteLock(ctx, in.TenantID)
	if err != nil {
		return nil, err
	}
	defer release()

	err = o.withTenantTx(lockCtx, in.TenantID, func(txCtx stdcontext.Context) error {
		if err := o.projectRepo.Create(txCtx, project); err != nil {
			return fmt.Errorf("create project: %w", err)
		}
		style, err := o.writingStyleRepo.FirstGlobal(txCtx)
		if err != nil {
			logger.Warn(txCtx, "failed to load first global writing style preset", "error", err.Error())
			return nil
		}
		if style == nil {
			return nil
		}
		binding := entity.NewProjectDefaultStyle(project.ID, style.ID)
		if err := o.defaultStyleRepo.Set(txCtx, binding); err != nil {
			logger.Warn(txCtx, "failed to bind default writing style preset", "error", err.Error())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return project, nil
}

// WizardCharactersInput 描述向导 W2 的请求参数。
type WizardCharactersInput struct {
	TenantID      string
	ProjectID     string
	TargetCount   int
	Provider      string
}

// WizardCharactersResult 汇总人物生成结果，便于向导界面展示进度。
type WizardCharactersResult struct {
	CharactersCreated     int
	OrganizationsCreated  int
	RelationsCreated      int
	MembershipsCreated    int
}

// WizardCharacters 按 BatchSize.Characters 分批生成人物/组织，两阶段持久化：
// 先落库全部实体，再用累积的 名称->ID 映射落库关系与组织成员关系，
// 丢弃任何引用了批次外名称的边（过滤模型幻觉引用）。
func (o *Orchestrator) WizardCharacters(ctx stdcontext.Context, in WizardCharactersInput) (*WizardCharactersResult, error) {
	project, err := o.projectRepo.GetByID(ctx, in.ProjectID)
	if err != nil || project == nil {
		return nil, fmt.Errorf("load project: %w", err)
	}
	worldSummary := worldSummaryFor(project)

	batchSize := o.batchSizeFor("characters")
	target := in.TargetCount
	if target <= 0 {
		target = batchSize
	}

	var allChars []rawCharacter
	knownNames := make([]string, 0, target)

	for _, bounds := range partitionCount(target, batchSize) {
		offset, end := bounds[0], bounds[1]
		items, err := o.generateJSONArray(ctx, "wizard_characters", in.Provider, "characters_batch_v1", map[string]any{
			"world_summary": worldSummary,
			"known_names":   orDefault(strings.Join(knownNames, "、"), "未设定"),
			"batch_size":    end - offset,
			"batch_offset":  offset,
		}, "world_summary", o.maxRetries())
		if err != nil {
			return nil, err
		}
		for _, raw := range items {
			var c rawCharacter
			if err := json.Unmarshal(raw, &c); err != nil {
				logger.Warn(ctx, "skip malformed character item", "error", err.Error())
				continue
			}
			if strings.TrimSpace(c.Name) == "" {
				continue
			}
			allChars = append(allChars, c)
			knownNames = append(knownNames, c.Name)
		}
	}

	lockCtx, release, err := o.tenants.WriteLock(ctx, in.TenantID)
	if err != nil {
		return nil, err
	}
	defer release()

	result := &WizardCharactersResult{}
	err = o.withTenantTx(lockCtx, in.TenantID, func(txCtx stdcontext.Context) error {
		nameToID := make(map[string]string, len(allChars))

		for _, c := range allChars {
			entType := entity.EntityTypeCharacter
			if c.Type == "organization" {
				entType = entity.EntityTypeOrganization
				result.OrganizationsCreated++
			} else {
				result.CharactersCreated++
			}
			se := entity.NewStoryEntity(in.ProjectID, c.Name, entType, entity.ImportanceSecondary)
			se.Description = strings.TrimSpace(c.Role + "：" + c.Background)
			se.Attributes.Personality = c.Personality
			if err := o.entityRepo.Create(txCtx, se); err != nil {
				logger.Warn(txCtx, "failed to create wizard character entity", "name", c.Name, "error", err.Error())
				continue
			}
			nameToID[c.Name] = se.ID
		}

		var relations []*entity.Relation
		var memberships []*entity.OrganizationMembership
		for _, c := range allChars {
			sourceID, ok := nameToID[c.Name]
			if !ok {
				continue
			}
			for _, rel := range c.Relations {
				targetID, ok := nameToID[rel.TargetName]
				if !ok {
					continue // 幻觉引用：目标不在本次生成的批次内，丢弃
				}
				r := entity.NewRelation(in.ProjectID, sourceID, targetID, normalizeRelationType(rel.RelationType))
				r.UpdateStrength(rel.Strength / 100)
				relations = append(relations, r)
			}
			for _, org := range c.Organizations {
				orgID, ok := nameToID[org.Name]
				if !ok {
					continue // 幻觉引用：组织不在本次生成的批次内，丢弃
				}
				m := entity.NewOrganizationMembership(in.ProjectID, sourceID, orgID)
				m.Position = org.Position
				m.Rank = org.Rank
				if org.Loyalty > 0 {
					m.Loyalty = clamp01(org.Loyalty / 100)
				}
				memberships = append(memberships, m)
			}
		}

		for _, r := range relations {
			if err := o.relationRepo.Create(txCtx, r); err != nil {
				logger.Warn(txCtx, "failed to create wizard relation", "error", err.Error())
				continue
			}
			result.RelationsCreated++
		}
		if len(memberships) > 0 {
			if err := o.membershipRepo.CreateBatch(txCtx, memberships); err != nil {
				logger.Warn(txCtx, "failed to create wizard organization memberships", "error", err.Error())
			} else {
				result.MembershipsCreated = len(memberships)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "wizard characters batch complete",
		"project_id", in.ProjectID,
		"character_count", result.CharactersCreated,
		"organization_count", result.OrganizationsCreated,
		"relation_count", result.RelationsCreated,
		"membership_count", result.MembershipsCreated,
	)
	return result, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func normalizeRelationType(s string) entity.RelationType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "friend", "朋友":
		return entity.RelationTypeFriend
	case "enemy", "敌人":
		return entity.RelationTypeEnemy
	case "family", "家人":
		return entity.RelationTypeFamily
	case "lover", "恋人":
		return entity.RelationTypeLover
	case "subordinate", "下属":
		return entity.RelationTypeSubordinate
	case "mentor", "师父", "导师":
		return entity.RelationTypeMentor
	case "rival", "对手":
		return entity.RelationTypeRival
	default:
		return entity.RelationTypeAlly
	}
}

// WizardOutlineInput 描述向导 W3 的请求参数。
type WizardOutlineInput struct {
	TenantID  string
	ProjectID string
	Provider  string
}

// WizardOutline 用 outline_complete_v1 生成固定 5 章的开篇大纲并创建配对草稿章节。
func (o *Orchestrator) WizardOutline(ctx stdcontext.Context, in WizardOutlineInput) (*OutlineContinueResult, error) {
	project, err := o.projectRepo.GetByID(ctx, in.ProjectID)
	if err != nil || project == nil {
		return nil, fmt.Errorf("load project: %w", err)
	}

	lockCtx, release, err := o.tenants.WriteLock(ctx, in.TenantID)
	if err != nil {
		return nil, err
	}
	defer release()

	items, err := o.generateJSONArray(lockCtx, "wizard_outline", in.Provider, "outline_complete_v1", map[string]any{
		"world_summary":      worldSummaryFor(project),
		"characters_summary": o.charactersSummary(lockCtx, in.ProjectID),
	}, "world_summary", o.maxRetries())
	if err != nil {
		return nil, err
	}

	result := &OutlineContinueResult{Mode: "wizard"}
	err = o.withTenantTx(lockCtx, in.TenantID, func(txCtx stdcontext.Context) error {
		created, chCreated, err := o.persistOutlineBatch(txCtx, in.ProjectID, items, 0)
		result.OutlinesCreated = created
		result.ChaptersCreated = chCreated
		return err
	})
	if err != nil {
		return result, err
	}
	return result, nil
}

package tools

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"nutracoach/pkg/store"
)

// NutritionStore is the data access surface tools are allowed to touch.
type NutritionStore interface {
	GetProfile(username string) (*store.Profile, error)
	SumDailyNutrition(username, intakeDate string) (*store.DailyTotals, error)
}

// ToolContext contains the dependencies injected into tool instances.
type ToolContext struct {
	Store NutritionStore
}

// ToolFactory creates a tool instance configured for a specific context.
type ToolFactory func(ctx ToolContext) (Tool, error)

// ToolMeta contains metadata about a tool for discovery and dispatch.
// RequiresUser marks tools whose semantics depend on the authenticated
// caller; the dispatcher injects the identity into their arguments.
type ToolMeta struct {
	Name         string
	Description  string
	InputSchema  InputSchema
	RequiresUser bool
}

// toolDescriptor contains the factory and metadata for a tool.
type toolDescriptor struct {
	meta    ToolMeta
	factory ToolFactory
}

// immutableRegistry is the global, read-only tool registry.
type immutableRegistry struct {
	mu     sync.RWMutex
	sealed bool
	tools  map[string]toolDescriptor
}

// Global registry instance - initialized in init().
//
//nolint:gochecknoglobals // Factory pattern requires global registry
var globalRegistry = &immutableRegistry{
	tools: make(map[string]toolDescriptor),
}

// Register adds a tool factory to the global registry.
// Panics if called after the registry is sealed.
func Register(name string, factory ToolFactory, meta *ToolMeta) {
	globalRegistry.mu.Lock()
	defer globalRegistry.mu.Unlock()

	if globalRegistry.sealed {
		panic(fmt.Sprintf("tool registry sealed - cannot register tool '%s'", name))
	}

	globalRegistry.tools[name] = toolDescriptor{
		meta:    *meta,
		factory: factory,
	}
}

// Seal prevents further tool registrations.
// Called automatically when the first Provider is created.
func Seal() {
	globalRegistry.mu.Lock()
	defer globalRegistry.mu.Unlock()
	globalRegistry.sealed = true
}

// ListTools returns metadata for all registered tools, sorted by name.
func ListTools() []ToolMeta {
	globalRegistry.mu.RLock()
	defer globalRegistry.mu.RUnlock()

	result := make([]ToolMeta, 0, len(globalRegistry.tools))
	for _, desc := range globalRegistry.tools {
		result = append(result, desc.meta)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

// Provider creates and manages tool instances for one dependency context.
type Provider struct {
	ctx   ToolContext
	tools map[string]Tool
	mu    sync.Mutex
}

// NewProvider creates a new Provider for the given context.
// Automatically seals the global registry on first use.
func NewProvider(ctx ToolContext) *Provider {
	Seal() // Ensure registry is immutable

	return &Provider{
		ctx:   ctx,
		tools: make(map[string]Tool),
	}
}

// Get retrieves a tool instance, creating it lazily if needed.
func (p *Provider) Get(name string) (Tool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	// Return cached instance if available
	if tool, ok := p.tools[name]; ok {
		return tool, nil
	}

	globalRegistry.mu.RLock()
	desc, exists := globalRegistry.tools[name]
	globalRegistry.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("tool '%s' not registered", name)
	}

	tool, err := desc.factory(p.ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create tool '%s': %w", name, err)
	}

	p.tools[name] = tool
	return tool, nil
}

// Meta returns the metadata for one registered tool.
func (p *Provider) Meta(name string) (ToolMeta, bool) {
	globalRegistry.mu.RLock()
	defer globalRegistry.mu.RUnlock()
	desc, ok := globalRegistry.tools[name]
	return desc.meta, ok
}

// List returns metadata for all registered tools.
func (p *Provider) List() []ToolMeta {
	return ListTools()
}

// Definitions returns the tool definitions for an LLM request.
func (p *Provider) Definitions() []ToolDefinition {
	metas := ListTools()
	defs := make([]ToolDefinition, len(metas))
	for i := range metas {
		defs[i] = ToolDefinition{
			Name:        metas[i].Name,
			Description: metas[i].Description,
			InputSchema: metas[i].InputSchema,
		}
	}
	return defs
}

// PromptDocumentation returns prompt documentation for all tools.
func (p *Provider) PromptDocumentation() string {
	var doc strings.Builder
	for _, meta := range ListTools() {
		tool, err := p.Get(meta.Name)
		if err != nil {
			continue
		}
		doc.WriteString(tool.PromptDocumentation())
		doc.WriteString("\n")
	}
	return doc.String()
}

// init registers the four nutrition tools in the global registry.
//
//nolint:gochecknoinits // Factory pattern requires init() for tool registration
func init() {
	Register(ToolGetUserProfile, createProfileTool, &ToolMeta{
		Name:         ToolGetUserProfile,
		Description:  "Get the user's stored profile: age, sex, height, weight, activity level, and goal",
		InputSchema:  profileSchema(),
		RequiresUser: true,
	})

	Register(ToolGetTodayNutrition, createTodayNutritionTool, &ToolMeta{
		Name:         ToolGetTodayNutrition,
		Description:  "Get the user's total logged nutrition for today: calories, protein, carbs, and fat",
		InputSchema:  todayNutritionSchema(),
		RequiresUser: true,
	})

	Register(ToolCalculateDailyNeed, createCalculateNeedsTool, &ToolMeta{
		Name:        ToolCalculateDailyNeed,
		Description: "Calculate daily caloric and macro needs from explicit body parameters",
		InputSchema: calculateNeedsSchema(),
	})

	Register(ToolGetUserDailyNeeds, createUserNeedsTool, &ToolMeta{
		Name:         ToolGetUserDailyNeeds,
		Description:  "Calculate the user's daily caloric and macro needs from their stored profile",
		InputSchema:  userNeedsSchema(),
		RequiresUser: true,
	})
}

func createProfileTool(ctx ToolContext) (Tool, error) {
	if ctx.Store == nil {
		return nil, fmt.Errorf("profile tool requires a store")
	}
	return NewProfileTool(ctx.Store), nil
}

func createTodayNutritionTool(ctx ToolContext) (Tool, error) {
	if ctx.Store == nil {
		return nil, fmt.Errorf("today nutrition tool requires a store")
	}
	return NewTodayNutritionTool(ctx.Store), nil
}

func createCalculateNeedsTool(_ ToolContext) (Tool, error) {
	return NewCalculateNeedsTool(), nil
}

func createUserNeedsTool(ctx ToolContext) (Tool, error) {
	if ctx.Store == nil {
		return nil, fmt.Errorf("user needs tool requires a store")
	}
	return NewUserNeedsTool(ctx.Store), nil
}

func profileSchema() InputSchema {
	return NewProfileTool(nil).Definition().InputSchema
}

func todayNutritionSchema() InputSchema {
	return NewTodayNutritionTool(nil).Definition().InputSchema
}

func calculateNeedsSchema() InputSchema {
	return NewCalculateNeedsTool().Definition().InputSchema
}

func userNeedsSchema() InputSchema {
	return NewUserNeedsTool(nil).Definition().InputSchema
}

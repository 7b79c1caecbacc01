package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino/compose"

	errx "github.com/alexwox/research-assistant/internal/core/error"
	logx "github.com/alexwox/research-assistant/pkg/logger"

	"github.com/alexwox/research-assistant/internal/agent/graph/conversations"
	"github.com/alexwox/research-assistant/internal/agent/graph/nodes"
	"github.com/alexwox/research-assistant/internal/agent/graph/observers"
	"github.com/alexwox/research-assistant/internal/agent/graph/tools"
	"github.com/alexwox/research-assistant/internal/agent/model"
)

// Runner is a thin wrapper to execute the compiled graph with the public QueryInput.
type Runner interface {
	Run(ctx context.Context, in model.QueryInput) (*model.ResearchResult, error)
}

// Config holds everything needed to compose the full research graph end-to-end.
// This is a convenience layer over GraphConfig that also constructs the
// synthesis model and MessagesManager.
type Config struct {
	APIKey           string
	BaseURL          string
	Synthesis        model.SynthesisModelConfig
	Conversation     model.ConversationConfig
	ConversationRepo model.ConversationRepository

	Search           tools.SearchService
	Knowledge        tools.KnowledgeService
	SearchMaxResults int
	ToolTimeout      time.Duration

	// Today supplies the date rendered into the system prompt. Defaults to
	// time.Now; injectable for tests.
	Today func() time.Time
}

// GraphConfig holds all configuration needed to build the graph
type GraphConfig struct {
	SynthesisModel  *nodes.SynthesisModel
	MessagesManager *conversations.MessagesManager
	Tools           tools.Config
	ToolMaxCalls    int
	MaxRetries      int
	Today           func() time.Time
}

// GraphBuilder handles the construction of the research conversation graph
type GraphBuilder struct {
	config *GraphConfig
	graph  *compose.Graph[model.QueryInput, *model.SynthesisOutcome]
}

type graphRunner struct {
	runnable compose.Runnable[model.QueryInput, *model.SynthesisOutcome]
	mm       *conversations.MessagesManager
}

func (r *graphRunner) Run(ctx context.Context, in model.QueryInput) (*model.ResearchResult, error) {
	out, err := r.runnable.Invoke(ctx, model.QueryInput{
		ConversationID: in.ConversationID,
		Query:          in.Query,
	}, compose.WithCallbacks(observers.NewAllCallbacks()))
	if err != nil {
		return nil, err
	}
	if out == nil {
		return nil, fmt.Errorf("graph produced no outcome")
	}

	if !out.Valid {
		// Failed runs contribute nothing to the transcript.
		return nil, errx.NewSynthesisFailure(out.Attempts, out.RawPayload)
	}

	if err := r.mm.SaveExchange(ctx, in.ConversationID, in.Query, out.Result.Render()); err != nil {
		// The answer is already synthesized; losing one turn of history is
		// preferable to failing the run.
		logx.Error().Err(err).Str("conversation_id", in.ConversationID).Msg("Failed to save exchange")
	}

	return out.Result, nil
}

// BuildResearchGraph composes the synthesis model, MessagesManager, builds
// the graph, and returns a Runner.
func BuildResearchGraph(ctx context.Context, cfg Config) (Runner, error) {
	if cfg.ConversationRepo == nil {
		return nil, fmt.Errorf("conversation repo is nil")
	}
	if cfg.Search == nil {
		return nil, fmt.Errorf("search service is nil")
	}
	if cfg.Knowledge == nil {
		return nil, fmt.Errorf("knowledge service is nil")
	}

	sm, err := nodes.NewSynthesisModel(ctx, nodes.SynthesisModelConfig{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Config:  &cfg.Synthesis,
	})
	if err != nil {
		return nil, err
	}

	mm := conversations.NewMessagesManager(cfg.ConversationRepo, cfg.Conversation)

	today := cfg.Today
	if today == nil {
		today = time.Now
	}

	runnable, err := BuildGraph(ctx, &GraphConfig{
		SynthesisModel:  sm,
		MessagesManager: mm,
		Tools: tools.Config{
			Search:           cfg.Search,
			Knowledge:        cfg.Knowledge,
			SearchMaxResults: cfg.SearchMaxResults,
			Timeout:          cfg.ToolTimeout,
		},
		ToolMaxCalls: cfg.Conversation.Tools.MaxCalls,
		MaxRetries:   cfg.Synthesis.MaxRetries,
		Today:        today,
	})
	if err != nil {
		return nil, err
	}

	logx.Debug().Msg("Research graph built successfully")
	return &graphRunner{runnable: runnable, mm: mm}, nil
}

// BuildGraph constructs and returns the compiled research graph
func BuildGraph(ctx context.Context, config *GraphConfig) (compose.Runnable[model.QueryInput, *model.SynthesisOutcome], error) {
	// Basic config validation
	if config == nil {
		return nil, fmt.Errorf("graph config is nil")
	}
	if config.SynthesisModel == nil || config.SynthesisModel.Model == nil {
		return nil, fmt.Errorf("synthesis model is not properly initialized")
	}
	if config.MessagesManager == nil {
		return nil, fmt.Errorf("messages manager is nil")
	}
	if config.Today == nil {
		config.Today = time.Now
	}

	builder := &GraphBuilder{
		config: config,
		graph: compose.NewGraph[model.QueryInput, *model.SynthesisOutcome](
			compose.WithGenLocalState(func(ctx context.Context) *model.AppState {
				return &model.AppState{}
			}),
		),
	}

	if err := builder.setupTools(ctx); err != nil {
		return nil, err
	}

	builder.addNodes()
	builder.addEdges()

	if err := builder.addBranches(); err != nil {
		return nil, err
	}

	return builder.compile(ctx)
}

// setupTools configures the research tools and binds them to the synthesis model
func (b *GraphBuilder) setupTools(ctx context.Context) error {
	researchTools := tools.GetResearchTools(b.config.Tools)
	toolInfos, err := tools.GetToolInfos(ctx, researchTools)
	if err != nil {
		logx.Error().Err(err).Msg("Failed to get tool infos")
		return fmt.Errorf("failed to get tool infos: %w", err)
	}

	if err := b.config.SynthesisModel.BindResearchTools(ctx, toolInfos); err != nil {
		logx.Error().Err(err).Msg("Failed to bind tools to synthesis model")
		return fmt.Errorf("failed to bind tools to synthesis model: %w", err)
	}

	toolsNode, err := compose.NewToolNode(ctx, &compose.ToolsNodeConfig{
		Tools: researchTools,
		// Independent lookups in one round run concurrently.
		ExecuteSequentially: false,
		UnknownToolsHandler: func(ctx context.Context, name, input string) (string, error) {
			// Gracefully handle hallucinated or malformed tool calls (e.g., empty name)
			logx.Warn().
				Str("tool_name", name).
				Str("arguments", input).
				Msg("Unknown or invalid tool call; returning fallback result")
			// Return a compact, structured message the model can use to proceed
			return fmt.Sprintf("{\"error\":\"unknown_tool\",\"name\":%q,\"note\":\"ignored\"}", name), nil
		},
		ToolArgumentsHandler: func(ctx context.Context, name, arguments string) (string, error) {
			// Best-effort sanitize; never fail hard here
			var m map[string]any
			if err := json.Unmarshal([]byte(arguments), &m); err != nil {
				// keep original if not JSON
				return arguments, nil
			}

			// query: string (required by both tools)
			if v, ok := m["query"]; ok {
				switch vv := v.(type) {
				case string:
					m["query"] = strings.TrimSpace(vv)
				default:
					// coerce non-string to string
					m["query"] = strings.TrimSpace(fmt.Sprint(v))
				}
			}

			if name == tools.ToolWebSearch {
				// query_number: number (optional)
				if v, ok := m["query_number"]; ok {
					switch vv := v.(type) {
					case float64:
						// JSON numbers decode as float64
						m["query_number"] = int(vv)
					case string:
						if n, err := strconv.Atoi(strings.TrimSpace(vv)); err == nil {
							m["query_number"] = n
						} else {
							delete(m, "query_number")
						}
					default:
						delete(m, "query_number")
					}
				}
			}

			b, err := json.Marshal(m)
			if err != nil {
				// fallback to original
				return arguments, nil
			}
			return string(b), nil
		},
	})
	if err != nil {
		logx.Error().Err(err).Msg("Failed to create tools node")
		return fmt.Errorf("failed to create tools node: %w", err)
	}

	b.graph.AddToolsNode(nodes.NodeToolExecutor, toolsNode,
		compose.WithStatePreHandler(nodes.NewToolExecutorPreHandler(b.config.ToolMaxCalls)),
	)

	return nil
}

// addNodes adds all processing nodes to the graph
func (b *GraphBuilder) addNodes() {
	b.graph.AddLambdaNode(nodes.NodeInputConverter,
		nodes.NewInputConverterNode(b.config.MessagesManager, b.config.Today),
		compose.WithStatePreHandler(nodes.NewInputConverterPreHandler()),
	)

	b.graph.AddChatModelNode(nodes.NodeSynthesisChatModel,
		b.config.SynthesisModel.Model,
		compose.WithStatePreHandler(nodes.NewSynthesisChatModelPreHandler(b.config.ToolMaxCalls)),
		compose.WithStatePostHandler(nodes.NewSynthesisChatModelPostHandler(b.config.SynthesisModel.Name)),
	)

	b.graph.AddLambdaNode(nodes.NodeResultParser,
		nodes.NewResultParserNode(),
		compose.WithStatePostHandler(nodes.NewResultParserPostHandler()),
	)

	b.graph.AddLambdaNode(nodes.NodeRetryAssembler,
		nodes.NewRetryAssemblerNode(),
	)
}

// addEdges creates the main flow connections between nodes
func (b *GraphBuilder) addEdges() {
	edges := [][2]string{
		{compose.START, nodes.NodeInputConverter},
		{nodes.NodeInputConverter, nodes.NodeSynthesisChatModel},
		{nodes.NodeToolExecutor, nodes.NodeSynthesisChatModel},
		{nodes.NodeRetryAssembler, nodes.NodeSynthesisChatModel},
	}

	for _, edge := range edges {
		b.graph.AddEdge(edge[0], edge[1])
	}
}

// addBranches creates conditional routing branches
func (b *GraphBuilder) addBranches() error {
	toolBranch := compose.NewGraphBranch(
		nodes.NewToolRouteCondition(),
		map[string]bool{
			nodes.NodeToolExecutor: true,
			nodes.NodeResultParser: true,
		},
	)
	if err := b.graph.AddBranch(nodes.NodeSynthesisChatModel, toolBranch); err != nil {
		logx.Error().Err(err).Msg("Error adding tool route branch")
		return fmt.Errorf("error adding tool route branch: %w", err)
	}

	retryBranch := compose.NewGraphBranch(
		nodes.NewSynthesisRetryCondition(b.config.MaxRetries),
		map[string]bool{
			nodes.NodeRetryAssembler: true,
			compose.END:              true,
		},
	)
	if err := b.graph.AddBranch(nodes.NodeResultParser, retryBranch); err != nil {
		logx.Error().Err(err).Msg("Error adding retry branch")
		return fmt.Errorf("error adding retry branch: %w", err)
	}

	return nil
}

// compile finalizes and compiles the graph
func (b *GraphBuilder) compile(ctx context.Context) (compose.Runnable[model.QueryInput, *model.SynthesisOutcome], error) {
	// Limit total run steps to avoid infinite loops in branching or retries
	maxSteps := 10 + b.config.ToolMaxCalls*2 + b.config.MaxRetries*2
	if maxSteps < 20 {
		maxSteps = 20
	}

	runnable, err := b.graph.Compile(ctx, compose.WithMaxRunSteps(maxSteps))
	if err != nil {
		logx.Error().Err(err).Msg("Error compiling graph")
		return nil, fmt.Errorf("error compiling graph: %w", err)
	}

	logx.Debug().Msg("Graph compiled successfully")
	return runnable, nil
}

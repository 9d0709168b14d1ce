package agent

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ashureev/goal-architect/internal/config"
	"github.com/ashureev/goal-architect/internal/domain"
	"github.com/ashureev/goal-architect/internal/llm"
	"github.com/ashureev/goal-architect/internal/metrics"
)

// Reply is the structured object a stage model is asked to produce. Only
// the fields a stage's prompt mentions are expected to be set.
type Reply struct {
	Intent        string  `json:"intent"`
	IsComplete    bool    `json:"is_complete"`
	ToUser        *string `json:"to_user"`
	GoalID        string  `json:"goal_id"`
	Summary       string  `json:"summary"`
	RerouteReason string  `json:"reroute_reason"`

	GoalDetails        *GoalDetails        `json:"goal_details"`
	Milestones         []MilestoneProposal `json:"milestones"`
	DailyPlan          []domain.PlanBlock  `json:"daily_plan"`
	CapturedReflection *string             `json:"captured_reflection"`
	Updates            []TrackerUpdate     `json:"updates"`
}

// GoalDetails is the goal payload of the goal formulator.
type GoalDetails struct {
	What string `json:"what"`
	Why  string `json:"why"`
	When string `json:"when"`
}

// MilestoneProposal is one milestone proposed by the milestone formulator.
// ID is a local reference used only by DependsOn within the same proposal.
type MilestoneProposal struct {
	ID        string            `json:"id"`
	DependsOn []string          `json:"depends_on"`
	Statement string            `json:"statement"`
	Trackers  []TrackerProposal `json:"trackers"`
}

// TrackerProposal is a tracker definition attached to a proposed milestone.
// Strategy stays a plain string so an unknown value is reported back to the
// model instead of failing the whole reply.
type TrackerProposal struct {
	Strategy               string     `json:"aggregation_strategy"`
	Unit                   string     `json:"unit"`
	LogPrompt              string     `json:"log_prompt"`
	TargetRange            []*float64 `json:"target_range"`
	WindowNumDays          *int       `json:"window_num_days"`
	NumWindowsToCompletion *int       `json:"num_windows_to_completion"`
}

// TrackerUpdate is one value gathered by the tracking logger.
type TrackerUpdate struct {
	TrackerID     string  `json:"tracker_id"`
	Date          string  `json:"date"`
	Value         float64 `json:"value"`
	Justification string  `json:"justification"`
}

// Env carries the collaborators stages need. It is built once per process.
type Env struct {
	Repo    Repository
	Metrics *metrics.Metrics
	Now     func() time.Time
}

func (e *Env) now() time.Time {
	if e.Now != nil {
		return e.Now().UTC()
	}
	return time.Now().UTC()
}

// Variant is the stage-specific part of a node.
type Variant interface {
	// Stage identifies the variant.
	Stage() domain.Stage

	// Prompt is the fixed system instruction.
	Prompt() string

	// DomainContext renders repository facts for the second system message.
	// An empty string means the stage needs none.
	DomainContext(ctx context.Context, env *Env, state *domain.PlanState) (string, error)

	// Observe records routing metadata from any structured reply.
	Observe(state *domain.PlanState, reply *Reply)

	// Ready reports whether reply carries the payload needed to complete.
	Ready(reply *Reply) bool

	// Commit persists the payload and records it in structured data.
	// Errors matching domain.IsValidation are returned to the model.
	Commit(ctx context.Context, env *Env, state *domain.PlanState, reply *Reply) error
}

// Node runs one stage: assemble, invoke, extract, update.
type Node struct {
	variant   Variant
	client    llm.Client
	assembler *Assembler
	env       *Env
	model     config.StageModel
	timeout   time.Duration
	logger    *slog.Logger
}

// NodeConfig configures a node's model call.
type NodeConfig struct {
	Model   config.StageModel
	Timeout time.Duration
}

// NewNode creates a node for variant.
func NewNode(variant Variant, client llm.Client, env *Env, cfg NodeConfig, logger *slog.Logger) *Node {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &Node{
		variant:   variant,
		client:    client,
		assembler: NewAssembler(env),
		env:       env,
		model:     cfg.Model,
		timeout:   cfg.Timeout,
		logger:    logger.With("stage", variant.Stage().String()),
	}
}

// Stage returns the stage the node serves.
func (n *Node) Stage() domain.Stage {
	return n.variant.Stage()
}

// Run executes the node against a copy of in. On a model failure the
// original state is returned untouched together with a nil error. A
// non-nil error means the stage could not persist its artifact; in is
// returned unchanged in that case too.
func (n *Node) Run(ctx context.Context, in *domain.PlanState) (*domain.PlanState, error) {
	stage := n.variant.Stage()
	log := n.logger.With("thread_id", in.ThreadID)

	state, err := in.Clone()
	if err != nil {
		return in, err
	}

	messages, err := n.assembler.Assemble(ctx, state, n.variant)
	if err != nil {
		n.env.Metrics.NodeRun(stage.String(), "context_error")
		return in, err
	}

	reply, err := n.invoke(ctx, messages)
	if err != nil {
		log.Warn("Model invocation failed",
			"error", err,
			"transient", llm.IsTransient(err),
			"timeout", llm.IsTimeout(err),
			"canceled", llm.IsCanceled(err),
		)
		n.env.Metrics.NodeRun(stage.String(), "model_error")
		return in, nil
	}

	state.Append(domain.Message{Role: domain.RoleAssistant, Content: reply, Stage: stage})

	var out Reply
	if !llm.DecodeObject(reply, &out) {
		// Free text: keep talking in the same stage.
		state.Say(stage, reply)
		state.UserMessageConsumed = true
		n.env.Metrics.NodeRun(stage.String(), "unstructured")
		log.Debug("Reply carried no structured object")
		return state, nil
	}

	if out.ToUser != nil && *out.ToUser != "" {
		state.Say(stage, *out.ToUser)
	}
	n.variant.Observe(state, &out)

	if out.IsComplete && n.variant.Ready(&out) {
		if err := n.variant.Commit(ctx, n.env, state, &out); err != nil {
			if domain.IsValidation(err) {
				log.Info("Stage payload rejected", "error", err)
				state.Append(domain.Message{
					Role:    domain.RoleSystem,
					Content: fmt.Sprintf("The proposal could not be saved: %v. Correct it and ask the user to confirm again.", err),
					Stage:   stage,
				})
				state.Say(stage, "I couldn't save that yet: "+err.Error()+". Let's fix it together.")
				state.UserMessageConsumed = true
				n.env.Metrics.NodeRun(stage.String(), "rejected")
				return state, nil
			}
			n.env.Metrics.NodeRun(stage.String(), "commit_error")
			return in, fmt.Errorf("commit %s payload: %w", stage, err)
		}

		next := DoneStage(stage)
		state.TransitionTo(next)
		state.CurrentContext = []domain.Message{}
		state.UserMessageConsumed = true
		n.env.Metrics.NodeRun(stage.String(), "complete")
		log.Info("Stage complete", "next_stage", next.String())
		return state, nil
	}

	if next := Route(stage, out.Intent); next != stage {
		// The user message stays pending so the next stage answers it.
		state.TransitionTo(next)
		n.env.Metrics.NodeRun(stage.String(), "routed")
		log.Info("Routing by intent", "intent", out.Intent, "next_stage", next.String(), "reroute_reason", out.RerouteReason)
		return state, nil
	}

	state.UserMessageConsumed = true
	n.env.Metrics.NodeRun(stage.String(), "stay")
	return state, nil
}

func (n *Node) invoke(ctx context.Context, messages []llm.Message) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	start := time.Now()
	resp, err := n.client.Invoke(callCtx, llm.Request{
		Messages:    messages,
		Model:       n.model.Model,
		Temperature: n.model.Temperature,
		MaxTokens:   n.model.MaxTokens,
	})
	n.env.Metrics.ModelCall(n.variant.Stage().String(), time.Since(start))
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

package agent

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ashureev/goal-architect/internal/config"
	"github.com/ashureev/goal-architect/internal/domain"
	"github.com/ashureev/goal-architect/internal/llm"
	"github.com/ashureev/goal-architect/internal/llm/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGraph(t *testing.T, client llm.Client, env *Env, maxHops int) *Graph {
	t.Helper()
	g, err := BuildGraph(client, env, config.StageSettings{}, time.Second, maxHops, nil)
	require.NoError(t, err)
	return g
}

func TestGoalToMilestoneConversation(t *testing.T) {
	t.Parallel()
	repo := newTestStore(t)
	env := newTestEnv(repo)
	mock := &testutil.MockClient{Replies: []string{
		`{"intent": "GOAL_FORMATION", "summary": "get fit", "to_user": null}`,
		`{"is_complete": false, "to_user": "What would being fit look like for you?"}`,
		`{"is_complete": true, "to_user": "Saved your goal.", "goal_details": {"what": "Run a 10k", "why": "energy", "when": "2026-06-01"}}`,
		`{"is_complete": false, "to_user": "Let's break this into milestones."}`,
	}}
	g := newTestGraph(t, mock, env, DefaultMaxHops)

	state := domain.NewPlanState("thread-e2e", testUser)
	state.BeginTurn("I want to get fit")
	out, err := g.Run(context.Background(), state)
	require.NoError(t, err)

	assert.Equal(t, domain.StageGoalFormulator, out.Stage)
	require.Len(t, out.ToUser, 1)
	assert.Equal(t, domain.StageGoalFormulator, out.ToUser[0].Agent)
	assert.Equal(t, "What would being fit look like for you?", out.ToUser[0].Message)
	require.Equal(t, 2, mock.CallCount())

	// The goal formulator saw the message the orchestrator routed on.
	goalReq := mock.Requests()[1]
	assert.Equal(t, llm.Message{Role: "user", Content: "I want to get fit"}, goalReq.Messages[len(goalReq.Messages)-1])
	assert.Equal(t, goalFormulatorPrompt, goalReq.Messages[0].Content)

	out.BeginTurn("Run a 10k by June for more energy. Yes, save it.")
	out, err = g.Run(context.Background(), out)
	require.NoError(t, err)

	assert.Equal(t, domain.StageMilestoneFormulator, out.Stage)
	require.Len(t, out.ToUser, 2)
	assert.Equal(t, domain.StageGoalFormulator, out.ToUser[0].Agent)
	assert.Equal(t, domain.StageMilestoneFormulator, out.ToUser[1].Agent)
	assert.Equal(t, 4, mock.CallCount())

	goals, err := repo.GetGoalsForUser(context.Background(), testUser)
	require.NoError(t, err)
	require.Len(t, goals, 1)
	assert.Equal(t, goals[0].GoalID, out.StructuredData.GoalID)

	// The milestone formulator started fresh with the committed goal in view.
	msReq := mock.Requests()[3]
	require.Len(t, msReq.Messages, 2)
	assert.Equal(t, milestoneFormulatorPrompt, msReq.Messages[0].Content)
	assert.True(t, strings.Contains(msReq.Messages[1].Content, "Run a 10k"))
	require.Len(t, out.CurrentContext, 1)
	assert.Equal(t, domain.RoleAssistant, out.CurrentContext[0].Role)

	// History keeps everything, in order.
	var users int
	for _, m := range out.MessageHistory {
		if m.Role == domain.RoleUser {
			users++
		}
	}
	assert.Equal(t, 2, users)
}

func TestGraphHopLimitYields(t *testing.T) {
	t.Parallel()
	env := newTestEnv(newTestStore(t))
	mock := &testutil.MockClient{Replies: []string{
		`{"intent": "GOAL_FORMATION"}`,
		`{"intent": "ORCHESTRATOR"}`,
		`{"intent": "GOAL_FORMATION"}`,
		`{"intent": "ORCHESTRATOR"}`,
		`{"intent": "GOAL_FORMATION"}`,
	}}
	g := newTestGraph(t, mock, env, 3)

	state := domain.NewPlanState("thread-loop", testUser)
	state.BeginTurn("hmm")
	out, err := g.Run(context.Background(), state)
	require.NoError(t, err)

	assert.Equal(t, 3, mock.CallCount())
	assert.Equal(t, domain.StageGoalFormulator, out.Stage)
	assert.False(t, out.UserMessageConsumed)
}

func TestGraphStopsAfterHandOffIntroduction(t *testing.T) {
	t.Parallel()
	repo := newTestStore(t)
	env := newTestEnv(repo)
	goal := seedGoal(t, repo)
	tracker := seedTracker(t, repo, goal.GoalID, domain.StrategySum)
	mock := &testutil.MockClient{Replies: []string{
		`{"is_complete": true, "to_user": "Logged.", "updates": [{"tracker_id": "` + tracker.TrackerID + `", "value": 3}]}`,
		`{"intent": "GOAL_FORMATION", "to_user": "Want to set a new goal?"}`,
		`{"is_complete": false, "to_user": "should not run"}`,
	}}
	g := newTestGraph(t, mock, env, DefaultMaxHops)

	state := domain.NewPlanState("thread-handoff", testUser)
	state.Stage = domain.StageTrackingLogger
	state.BeginTurn("ran 3k")
	out, err := g.Run(context.Background(), state)
	require.NoError(t, err)

	// The orchestrator routes on, but the message was already answered so
	// the goal formulator waits for the next user turn.
	assert.Equal(t, domain.StageGoalFormulator, out.Stage)
	assert.Equal(t, 2, mock.CallCount())
	require.Len(t, out.ToUser, 2)
	assert.Equal(t, domain.StageTrackingLogger, out.ToUser[0].Agent)
	assert.Equal(t, domain.StageOrchestrator, out.ToUser[1].Agent)
}

func TestGraphModelFailureIsNoOpTurn(t *testing.T) {
	t.Parallel()
	env := newTestEnv(newTestStore(t))
	mock := &testutil.MockClient{Err: llm.NewFatalError(errors.New("invalid api key"))}
	g := newTestGraph(t, mock, env, DefaultMaxHops)

	state := domain.NewPlanState("thread-fail", testUser)
	state.Stage = domain.StagePlanner
	state.BeginTurn("plan my day")
	out, err := g.Run(context.Background(), state)
	require.NoError(t, err)

	assert.Equal(t, domain.StagePlanner, out.Stage)
	assert.Empty(t, out.ToUser)
	assert.Empty(t, out.CurrentContext)
	assert.Equal(t, 1, mock.CallCount())
}

func TestGraphInvalidStageFallsBackToOrchestrator(t *testing.T) {
	t.Parallel()
	env := newTestEnv(newTestStore(t))
	mock := &testutil.MockClient{Replies: []string{"Hello!"}}
	g := newTestGraph(t, mock, env, DefaultMaxHops)

	state := domain.NewPlanState("thread-bad", testUser)
	state.Stage = "retired_stage"
	state.LastUserMessage = "hi"
	out, err := g.Run(context.Background(), state)
	require.NoError(t, err)
	assert.Equal(t, domain.StageOrchestrator, out.Stage)
	assert.Equal(t, orchestratorPrompt, mock.Requests()[0].Messages[0].Content)
}

func TestGraphCommitErrorKeepsLastGoodState(t *testing.T) {
	t.Parallel()
	env := newTestEnv(failingRepo{Repository: newTestStore(t), err: errors.New("database is locked")})
	mock := &testutil.MockClient{Replies: []string{
		`{"intent": "GOAL_FORMATION"}`,
		`{"is_complete": true, "goal_details": {"what": "Learn Spanish"}}`,
	}}
	g := newTestGraph(t, mock, env, DefaultMaxHops)

	state := domain.NewPlanState("thread-err", testUser)
	state.BeginTurn("I want to learn Spanish, save it")
	out, err := g.Run(context.Background(), state)

	require.Error(t, err)
	assert.Equal(t, domain.StageGoalFormulator, out.Stage)
	assert.Empty(t, out.StructuredData.GoalID)
}

func TestNewGraphRequiresEveryStage(t *testing.T) {
	t.Parallel()
	env := newTestEnv(nil)
	node := newTestNode(Orchestrator{}, &testutil.MockClient{}, env)

	_, err := NewGraph([]*Node{node}, 0, nil, nil)
	require.Error(t, err)

	_, err = NewGraph([]*Node{node, node}, 0, nil, nil)
	require.Error(t, err)
}

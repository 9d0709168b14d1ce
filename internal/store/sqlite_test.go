package store

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ashureev/goal-architect/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedTracker(t *testing.T, s *SQLiteStore, userID string, strategy domain.AggregationStrategy) *domain.Tracker {
	t.Helper()
	ctx := context.Background()

	goal := &domain.Goal{UserID: userID, What: "Run a marathon", Why: "health", When: "2027-04-01"}
	require.NoError(t, s.CreateGoal(ctx, goal))

	ms, err := s.CreateMilestones(ctx, userID, goal.GoalID, []domain.Milestone{{
		MilestoneID: "m1",
		Statement:   "Build a base",
		Trackers: []domain.Tracker{{
			LogPrompt: "How far did you run?",
			Unit:      "km",
			Strategy:  strategy,
		}},
	}})
	require.NoError(t, err)
	require.Len(t, ms, 1)
	require.Len(t, ms[0].Trackers, 1)
	return &ms[0].Trackers[0]
}

func TestUserRoundTrip(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	got, err := s.GetUser(ctx, "nobody")
	require.NoError(t, err)
	assert.Nil(t, got)

	now := time.Now()
	require.NoError(t, s.UpsertUser(ctx, &domain.User{
		UserID: "anon_1", Username: "anon-1", LastSeenAt: now, CreatedAt: now, UpdatedAt: now,
	}))
	require.NoError(t, s.UpdateLastSeen(ctx, "anon_1", now.Add(time.Hour)))

	got, err = s.GetUser(ctx, "anon_1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "anon-1", got.Username)
	assert.Equal(t, now.Add(time.Hour).Unix(), got.LastSeenAt.Unix())
}

func TestGoalCRUD(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	err := s.CreateGoal(ctx, &domain.Goal{UserID: "u1"})
	assert.ErrorIs(t, err, domain.ErrInvalidGoal)

	goal := &domain.Goal{UserID: "u1", What: "Learn Spanish", Why: "travel", When: "by summer"}
	require.NoError(t, s.CreateGoal(ctx, goal))
	assert.NotEmpty(t, goal.GoalID)

	goal.When = "by autumn"
	require.NoError(t, s.UpdateGoal(ctx, goal))

	got, err := s.GetGoal(ctx, "u1", goal.GoalID)
	require.NoError(t, err)
	assert.Equal(t, "by autumn", got.When)

	_, err = s.GetGoal(ctx, "u2", goal.GoalID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	err = s.UpdateGoal(ctx, &domain.Goal{UserID: "u1", GoalID: "missing", What: "x"})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	goals, err := s.GetGoalsForUser(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, goals, 1)
}

func TestCreateMilestonesRewritesLocalReferences(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	goal := &domain.Goal{UserID: "u1", What: "Ship a side project"}
	require.NoError(t, s.CreateGoal(ctx, goal))

	created, err := s.CreateMilestones(ctx, "u1", goal.GoalID, []domain.Milestone{
		{MilestoneID: "a", Statement: "Pick an idea"},
		{MilestoneID: "b", Statement: "Build an MVP", DependsOn: []string{"a"}},
	})
	require.NoError(t, err)
	require.Len(t, created, 2)
	assert.NotEqual(t, "a", created[0].MilestoneID)
	assert.Equal(t, []string{created[0].MilestoneID}, created[1].DependsOn)
	assert.Equal(t, domain.MilestonePending, created[1].Status)

	// A later batch may depend on an existing milestone by its stored ID.
	later, err := s.CreateMilestones(ctx, "u1", goal.GoalID, []domain.Milestone{
		{MilestoneID: "c", Statement: "Launch", DependsOn: []string{created[1].MilestoneID}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{created[1].MilestoneID}, later[0].DependsOn)

	all, err := s.GetMilestones(ctx, "u1", goal.GoalID)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "Launch", all[2].Statement)
}

func TestCreateMilestonesRejectsInvalidGraph(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	goal := &domain.Goal{UserID: "u1", What: "Write a book"}
	require.NoError(t, s.CreateGoal(ctx, goal))

	tests := []struct {
		name  string
		batch []domain.Milestone
	}{
		{"cycle", []domain.Milestone{
			{MilestoneID: "a", Statement: "Outline", DependsOn: []string{"b"}},
			{MilestoneID: "b", Statement: "Draft", DependsOn: []string{"a"}},
		}},
		{"dangling", []domain.Milestone{
			{MilestoneID: "a", Statement: "Outline", DependsOn: []string{"does-not-exist"}},
		}},
	}
	for _, tt := range tests {
		_, err := s.CreateMilestones(ctx, "u1", goal.GoalID, tt.batch)
		assert.ErrorIs(t, err, domain.ErrInvalidMilestoneGraph, tt.name)
	}

	all, err := s.GetMilestones(ctx, "u1", goal.GoalID)
	require.NoError(t, err)
	assert.Empty(t, all, "rejected batches must not write anything")

	_, err = s.CreateMilestones(ctx, "u1", "no-such-goal", []domain.Milestone{{Statement: "x"}})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestActiveMilestonesAndStatus(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	goal := &domain.Goal{UserID: "u1", What: "Get fit"}
	require.NoError(t, s.CreateGoal(ctx, goal))
	created, err := s.CreateMilestones(ctx, "u1", goal.GoalID, []domain.Milestone{
		{Statement: "Walk daily"}, {Statement: "Run 5k"},
	})
	require.NoError(t, err)

	require.NoError(t, s.UpdateMilestoneStatus(ctx, "u1", created[0].MilestoneID, domain.MilestoneCompleted))
	assert.ErrorIs(t, s.UpdateMilestoneStatus(ctx, "u1", "missing", domain.MilestoneActive), domain.ErrNotFound)

	active, err := s.GetActiveMilestones(ctx, "u1", goal.GoalID)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "Run 5k", active[0].Statement)

	active, err = s.GetActiveMilestones(ctx, "u1", "")
	require.NoError(t, err)
	assert.Len(t, active, 1)
}

func TestCreateTrackerRequiresMilestone(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	err := s.CreateTracker(ctx, &domain.Tracker{UserID: "u1", MilestoneID: "missing", Strategy: domain.StrategySum})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	tr := seedTracker(t, s, "u1", domain.StrategySum)
	extra := &domain.Tracker{UserID: "u1", MilestoneID: tr.MilestoneID, Strategy: domain.StrategyMax, Unit: "kg"}
	require.NoError(t, s.CreateTracker(ctx, extra))

	got, err := s.GetTracker(ctx, "u1", extra.TrackerID)
	require.NoError(t, err)
	assert.Equal(t, domain.StrategyMax, got.Strategy)
	assert.Nil(t, got.LastLogDate)
}

func TestLogAndAggregateSumIsOrderIndependent(t *testing.T) {
	t.Parallel()

	values := []float64{3, 5, 7}
	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	orders := [][]int{{0, 1, 2}, {2, 1, 0}, {1, 2, 0}}

	for _, order := range orders {
		s := newTestStore(t)
		tr := seedTracker(t, s, "u1", domain.StrategySum)
		for _, i := range order {
			_, err := s.LogAndAggregate(context.Background(), domain.LogEntry{
				UserID: "u1", TrackerID: tr.TrackerID,
				Timestamp: base.Add(time.Duration(i) * time.Hour), Value: values[i],
			})
			require.NoError(t, err)
		}
		got, err := s.GetTracker(context.Background(), "u1", tr.TrackerID)
		require.NoError(t, err)
		assert.Equal(t, 15.0, got.CurrentValue, "order %v", order)
		assert.EqualValues(t, 3, got.LogCount)
	}
}

func TestLogAndAggregateSumConcurrent(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	tr := seedTracker(t, s, "u1", domain.StrategySum)

	const writers = 10
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.LogAndAggregate(context.Background(), domain.LogEntry{
				UserID: "u1", TrackerID: tr.TrackerID,
				Timestamp: time.Now().Add(time.Duration(i) * time.Second), Value: 2,
			})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	got, err := s.GetTracker(context.Background(), "u1", tr.TrackerID)
	require.NoError(t, err)
	assert.Equal(t, float64(2*writers), got.CurrentValue)

	logs, err := s.GetHistoryLogs(context.Background(), "u1", tr.TrackerID, 100)
	require.NoError(t, err)
	assert.Len(t, logs, writers)
}

func TestLogAndAggregateLatestKeepsNewestValue(t *testing.T) {
	t.Parallel()

	for _, strategy := range []domain.AggregationStrategy{domain.StrategyAll, domain.StrategyOneTime} {
		s := newTestStore(t)
		ctx := context.Background()
		tr := seedTracker(t, s, "u1", strategy)

		t1 := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
		t2 := t1.Add(24 * time.Hour)

		res, err := s.LogAndAggregate(ctx, domain.LogEntry{UserID: "u1", TrackerID: tr.TrackerID, Timestamp: t2, Value: 9})
		require.NoError(t, err)
		assert.True(t, res.Applied)

		res, err = s.LogAndAggregate(ctx, domain.LogEntry{UserID: "u1", TrackerID: tr.TrackerID, Timestamp: t1, Value: 4})
		require.NoError(t, err)
		assert.False(t, res.Applied, "older entry must not overwrite")
		assert.Equal(t, 9.0, res.CurrentValue)
		require.NotNil(t, res.LastLogDate)
		assert.True(t, res.LastLogDate.Equal(t2))

		// Equal timestamps do not overwrite either.
		res, err = s.LogAndAggregate(ctx, domain.LogEntry{UserID: "u1", TrackerID: tr.TrackerID, Timestamp: t2, Value: 1})
		require.NoError(t, err)
		assert.False(t, res.Applied)

		logs, err := s.GetHistoryLogs(ctx, "u1", tr.TrackerID, 0)
		require.NoError(t, err)
		require.Len(t, logs, 3, "history keeps every entry")
		assert.True(t, logs[0].Timestamp.Equal(t2))
		assert.True(t, logs[2].Timestamp.Equal(t1))
	}
}

func TestLogAndAggregateFolds(t *testing.T) {
	t.Parallel()

	tests := []struct {
		strategy domain.AggregationStrategy
		want     float64
	}{
		{domain.StrategyMin, 2},
		{domain.StrategyMax, 8},
		{domain.StrategyMean, 5},
	}
	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	for _, tt := range tests {
		s := newTestStore(t)
		tr := seedTracker(t, s, "u1", tt.strategy)
		for i, v := range []float64{5, 8, 2} {
			_, err := s.LogAndAggregate(context.Background(), domain.LogEntry{
				UserID: "u1", TrackerID: tr.TrackerID, Timestamp: base.Add(time.Duration(-i) * time.Hour), Value: v,
			})
			require.NoError(t, err)
		}
		got, err := s.GetTracker(context.Background(), "u1", tr.TrackerID)
		require.NoError(t, err)
		assert.InDelta(t, tt.want, got.CurrentValue, 1e-9, string(tt.strategy))
		require.NotNil(t, got.LastLogDate)
		assert.True(t, got.LastLogDate.Equal(base), "last_log_date tracks the newest entry")
	}
}

func TestLogAndAggregateErrors(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.LogAndAggregate(ctx, domain.LogEntry{UserID: "u1", Timestamp: time.Now()})
	assert.ErrorIs(t, err, domain.ErrInvalidLogEntry)

	_, err = s.LogAndAggregate(ctx, domain.LogEntry{UserID: "u1", TrackerID: "missing", Timestamp: time.Now(), Value: 1})
	assert.True(t, errors.Is(err, domain.ErrNotFound), "got %v", err)
}

func TestLogAndAggregateBatchAppliesInOrder(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()
	tr := seedTracker(t, s, "u1", domain.StrategySum)

	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	results, err := s.LogAndAggregateBatch(ctx, []domain.LogEntry{
		{UserID: "u1", TrackerID: tr.TrackerID, Timestamp: base, Value: 3},
		{UserID: "u1", TrackerID: tr.TrackerID, Timestamp: base.Add(time.Hour), Value: 2},
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, 3.0, results[0].CurrentValue)
	assert.Equal(t, 5.0, results[1].CurrentValue)
	assert.True(t, results[1].Applied)

	got, err := s.GetTracker(ctx, "u1", tr.TrackerID)
	require.NoError(t, err)
	assert.Equal(t, 5.0, got.CurrentValue)
	assert.EqualValues(t, 2, got.LogCount)
}

func TestLogAndAggregateBatchRollsBackOnFailure(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()
	tr := seedTracker(t, s, "u1", domain.StrategySum)

	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	batch := []domain.LogEntry{
		{UserID: "u1", TrackerID: tr.TrackerID, Timestamp: base, Value: 3},
		{UserID: "u1", TrackerID: "retired", Timestamp: base.Add(time.Hour), Value: 2},
	}
	_, err := s.LogAndAggregateBatch(ctx, batch)
	require.ErrorIs(t, err, domain.ErrNotFound)

	got, err := s.GetTracker(ctx, "u1", tr.TrackerID)
	require.NoError(t, err)
	assert.Zero(t, got.CurrentValue)
	assert.Zero(t, got.LogCount)
	logs, err := s.GetHistoryLogs(ctx, "u1", tr.TrackerID, 0)
	require.NoError(t, err)
	assert.Empty(t, logs)

	// Retrying the corrected batch counts each update exactly once.
	batch[1].TrackerID = tr.TrackerID
	_, err = s.LogAndAggregateBatch(ctx, batch)
	require.NoError(t, err)
	got, err = s.GetTracker(ctx, "u1", tr.TrackerID)
	require.NoError(t, err)
	assert.Equal(t, 5.0, got.CurrentValue)
	assert.EqualValues(t, 2, got.LogCount)
}

func TestLogAndAggregateBatchValidatesBeforeWriting(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()
	tr := seedTracker(t, s, "u1", domain.StrategySum)

	_, err := s.LogAndAggregateBatch(ctx, []domain.LogEntry{
		{UserID: "u1", TrackerID: tr.TrackerID, Timestamp: time.Now(), Value: 3},
		{UserID: "u1", Timestamp: time.Now(), Value: 1},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidLogEntry)

	got, err := s.GetTracker(ctx, "u1", tr.TrackerID)
	require.NoError(t, err)
	assert.Zero(t, got.LogCount)

	results, err := s.LogAndAggregateBatch(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestGetTrackerLogsSince(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()
	tr := seedTracker(t, s, "u1", domain.StrategySum)

	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		_, err := s.LogAndAggregate(ctx, domain.LogEntry{
			UserID: "u1", TrackerID: tr.TrackerID, Timestamp: base.AddDate(0, 0, i), Value: 1,
		})
		require.NoError(t, err)
	}

	logs, err := s.GetTrackerLogsSince(ctx, "u1", tr.TrackerID, base.AddDate(0, 0, 3))
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.True(t, logs[0].Timestamp.Before(logs[1].Timestamp))
}

func TestStateRoundTrip(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	got, err := s.LoadState(ctx, "thread-1")
	require.NoError(t, err)
	assert.Nil(t, got)

	state := domain.NewPlanState("thread-1", "u1")
	state.Stage = domain.StageGoalFormulator
	state.Append(domain.Message{Role: domain.RoleUser, Content: "I want to get fit"})
	state.StructuredData.Goal = &domain.Goal{What: "Run 5k"}
	require.NoError(t, s.SaveState(ctx, state))

	state.Stage = domain.StageMilestoneFormulator
	require.NoError(t, s.SaveState(ctx, state))

	got, err = s.LoadState(ctx, "thread-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, domain.StageMilestoneFormulator, got.Stage)
	assert.Len(t, got.MessageHistory, 1)
	assert.Equal(t, "Run 5k", got.StructuredData.Goal.What)
}

func TestReflectionsAndPlans(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	plan, err := s.GetLatestDailyPlan(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, plan)

	require.NoError(t, s.CreateReflection(ctx, &domain.Reflection{UserID: "u1", Text: "Mornings work better"}))
	refs, err := s.GetRecentReflections(ctx, "u1", 3)
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, "Mornings work better", refs[0].Text)

	err = s.SaveDailyPlan(ctx, &domain.DailyPlan{UserID: "u1"})
	assert.Error(t, err)

	require.NoError(t, s.SaveDailyPlan(ctx, &domain.DailyPlan{
		UserID: "u1",
		Blocks: []domain.PlanBlock{{Activity: "Run", Type: "exercise", StartTime: domain.ClockTime{7, 0}, EndTime: domain.ClockTime{7, 45}}},
	}))
	plan, err = s.GetLatestDailyPlan(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, plan)
	assert.Equal(t, "Run", plan.Blocks[0].Activity)
	assert.NotEmpty(t, plan.Date)
}

func TestGetFullUserState(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	tr := seedTracker(t, s, "u1", domain.StrategySum)
	empty := &domain.Goal{UserID: "u1", What: "Read more"}
	require.NoError(t, s.CreateGoal(ctx, empty))
	seedTracker(t, s, "someone-else", domain.StrategySum)

	dash, err := s.GetFullUserState(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, dash.Goals, 2)

	var withMilestones *domain.GoalTree
	for i := range dash.Goals {
		if len(dash.Goals[i].Milestones) > 0 {
			withMilestones = &dash.Goals[i]
		}
	}
	require.NotNil(t, withMilestones)
	require.Len(t, withMilestones.Milestones, 1)
	require.Len(t, withMilestones.Milestones[0].Trackers, 1)
	assert.Equal(t, tr.TrackerID, withMilestones.Milestones[0].Trackers[0].TrackerID)
}

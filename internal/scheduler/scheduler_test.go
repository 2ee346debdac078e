package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/Armin-kho/doviz-board/internal/logger"
	"github.com/Armin-kho/doviz-board/internal/snapshot"
	"github.com/Armin-kho/doviz-board/internal/utils"
)

type MockRefresher struct{ mock.Mock }

func (m *MockRefresher) Refresh(ctx context.Context) (*snapshot.Snapshot, error) {
	args := m.Called(ctx)
	snap, _ := args.Get(0).(*snapshot.Snapshot)
	return snap, args.Error(1)
}

func (m *MockRefresher) RefreshWorldGold(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func at(hour, minute int) time.Time {
	return time.Date(2025, 3, 1, hour, minute, 0, 0, utils.IstanbulLoc())
}

func TestDue(t *testing.T) {
	s := New(&MockRefresher{}, Config{}, logger.Nop())

	cases := []struct {
		t                   time.Time
		snapshot, worldGold bool
	}{
		{at(9, 10), true, false},
		{at(9, 11), false, false},
		{at(12, 0), true, true},
		{at(13, 0), true, false},
		{at(0, 0), true, true},
		{at(18, 30), true, false},
	}
	for _, c := range cases {
		snap, world := s.Due(c.t)
		assert.Equal(t, c.snapshot, snap, c.t.Format("15:04"))
		assert.Equal(t, c.worldGold, world, c.t.Format("15:04"))
	}
}

func TestDueUsesIstanbulClock(t *testing.T) {
	s := New(&MockRefresher{}, Config{}, logger.Nop())
	// 09:00 UTC is 12:00 in Istanbul.
	_, world := s.Due(time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC))
	assert.True(t, world)
}

func TestRunTickOrdersWorldGoldFirst(t *testing.T) {
	m := &MockRefresher{}
	var order []string
	m.On("RefreshWorldGold", mock.Anything).Run(func(mock.Arguments) { order = append(order, "world") }).Return(nil)
	m.On("Refresh", mock.Anything).Run(func(mock.Arguments) { order = append(order, "snapshot") }).
		Return(&snapshot.Snapshot{LastUpdate: at(12, 0)}, nil)

	New(m, Config{}, logger.Nop()).RunTick(at(12, 0))
	assert.Equal(t, []string{"world", "snapshot"}, order)
}

func TestRunTickSurvivesFailures(t *testing.T) {
	m := &MockRefresher{}
	m.On("RefreshWorldGold", mock.Anything).Return(errors.New("all providers failed"))
	m.On("Refresh", mock.Anything).Return(nil, snapshot.ErrNoSourceData)

	s := New(m, Config{}, logger.Nop())
	s.RunTick(at(6, 0))
	s.RunTick(at(6, 7))

	m.AssertNumberOfCalls(t, "RefreshWorldGold", 1)
	m.AssertNumberOfCalls(t, "Refresh", 1)
}

func TestStartStop(t *testing.T) {
	m := &MockRefresher{}
	m.On("RefreshWorldGold", mock.Anything).Return(nil).Maybe()
	m.On("Refresh", mock.Anything).Return(&snapshot.Snapshot{}, nil).Maybe()

	s := New(m, Config{}, logger.Nop())
	s.Start()
	s.Stop()
}

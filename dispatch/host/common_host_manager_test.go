package host

import (
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/twitter/dispatch/common/stats"
)

func TestCommonHostManagerSelect(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	membership := NewMockMembership(ctrl)
	membership.EXPECT().WorkerGroupMembers().
		Return(map[string][]string{"default": {"b:1", "a:1"}}, nil).Times(4)

	m := NewCommonHostManager(NewRoundRobin(), membership, nil)
	assert.NoError(t, m.Start())
	defer m.Stop()

	var picked []string
	for i := 0; i < 3; i++ {
		h, ok := m.Select("default")
		assert.True(t, ok)
		picked = append(picked, h.Address)
	}
	assert.Equal(t, []string{"a:1", "b:1", "a:1"}, picked)

	_, ok := m.Select("other")
	assert.False(t, ok)
}

func TestCommonHostManagerMembershipError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	membership := NewMockMembership(ctrl)
	membership.EXPECT().WorkerGroupMembers().Return(nil, errors.New("cluster view unavailable"))

	stat := stats.NewCustomStatsReceiver(stats.NewFinagleStatsRegistry)
	m := NewCommonHostManager(NewRandom(1), membership, stat)
	_, ok := m.Select("default")
	assert.False(t, ok)
	assert.Equal(t, int64(1), stat.Scope("hostmanager").Counter(stats.HostSelectNoHostCounter).Count())
}

func TestCommonHostManagerSelectFrom(t *testing.T) {
	m := NewCommonHostManager(NewRoundRobin(), &staticMembership{}, nil)

	_, err := m.SelectFrom(nil)
	assert.Equal(t, ErrNoHostAvailable, err)

	workers := []HostWorker{
		{Host: Host{Address: "b:1", WorkerGroup: "g"}, DeclaredWeight: 5},
		{Host: Host{Address: "a:1", WorkerGroup: "g"}, DeclaredWeight: 7},
	}
	w, err := m.SelectFrom(workers)
	assert.NoError(t, err)
	assert.Equal(t, workers[1], w)
	w, err = m.SelectFrom(workers)
	assert.NoError(t, err)
	assert.Equal(t, workers[0], w)
}

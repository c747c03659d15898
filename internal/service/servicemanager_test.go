package service_test

import (
	"github.com/larkwiot/bookscout/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"sync/atomic"
	"testing"
	"time"
)

type toggleService struct {
	name       string
	configured bool
	healthy    atomic.Bool
}

func (s *toggleService) Name() string {
	return s.name
}

func (s *toggleService) SelfCheck() (bool, string) {
	if !s.configured {
		return false, "not configured"
	}
	return true, ""
}

func (s *toggleService) HealthCheck() (bool, string) {
	if !s.healthy.Load() {
		return false, "unreachable"
	}
	return true, ""
}

func newManager(t *testing.T) *service.ServiceManager {
	svcmgr := service.NewServiceManager(time.Hour, nil)
	t.Cleanup(svcmgr.Close)
	return svcmgr
}

func TestServicesStartLive(t *testing.T) {
	svcmgr := newManager(t)
	svcmgr.Manage(&toggleService{name: "backend", configured: true})

	assert.Len(t, svcmgr.GetLiveServices(), 1)
	assert.True(t, svcmgr.AllUp())
}

func TestDownAndRecovered(t *testing.T) {
	svcmgr := newManager(t)
	backend := &toggleService{name: "backend", configured: true}
	kakao := &toggleService{name: "kakao", configured: false}
	svcmgr.Manage(backend)
	svcmgr.Manage(kakao)

	svcmgr.CheckAll()
	assert.Empty(t, svcmgr.GetLiveServices())
	assert.False(t, svcmgr.AllUp())

	statuses := svcmgr.Statuses()
	require.Len(t, statuses, 2)
	assert.Equal(t, service.Status{Name: "backend", Up: false, Reason: "unreachable"}, statuses[0])
	assert.Equal(t, service.Status{Name: "kakao", Up: false, Reason: "not configured"}, statuses[1])

	backend.healthy.Store(true)
	svcmgr.CheckAll()

	live := svcmgr.GetLiveServices()
	require.Len(t, live, 1)
	assert.Equal(t, "backend", live[0].Name())
}

func TestWatcherRunsChecks(t *testing.T) {
	svcmgr := service.NewServiceManager(10*time.Millisecond, nil)
	defer svcmgr.Close()

	svcmgr.Manage(&toggleService{name: "backend", configured: true})

	assert.Eventually(t, func() bool {
		return !svcmgr.AllUp()
	}, time.Second, 10*time.Millisecond)
}

func TestCloseTwice(t *testing.T) {
	svcmgr := service.NewServiceManager(time.Hour, nil)
	svcmgr.Close()
	svcmgr.Close()
}

// Package service tracks whether external collaborators are reachable.
package service

import (
	"github.com/charmbracelet/log"
	"github.com/samber/lo"
	"sort"
	"sync"
	"time"
)

type Service interface {
	Name() string
	SelfCheck() (bool, string)
	HealthCheck() (bool, string)
}

type Status struct {
	Name   string `json:"name"`
	Up     bool   `json:"up"`
	Reason string `json:"reason,omitempty"`
}

type ServiceManager struct {
	services            []Service
	servicesLock        sync.RWMutex
	statuses            map[string]Status
	statusesLock        sync.RWMutex
	healthCheckInterval time.Duration
	quit                chan struct{}
	closed              sync.Once
	logger              *log.Logger
}

func NewServiceManager(healthCheckInterval time.Duration, logger *log.Logger) *ServiceManager {
	if logger == nil {
		logger = log.Default()
	}

	svcmgr := &ServiceManager{
		services:            make([]Service, 0),
		statuses:            make(map[string]Status),
		healthCheckInterval: healthCheckInterval,
		quit:                make(chan struct{}),
		logger:              logger.WithPrefix("services"),
	}

	go svcmgr.watch()

	return svcmgr
}

// Manage starts tracking service. It counts as up until its first check.
func (dd *ServiceManager) Manage(service Service) {
	dd.servicesLock.Lock()
	defer dd.servicesLock.Unlock()
	dd.statusesLock.Lock()
	defer dd.statusesLock.Unlock()

	dd.services = append(dd.services, service)
	dd.statuses[service.Name()] = Status{Name: service.Name(), Up: true}
}

func (dd *ServiceManager) Close() {
	dd.closed.Do(func() {
		close(dd.quit)
	})
}

func (dd *ServiceManager) watch() {
	ticker := time.NewTicker(dd.healthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-dd.quit:
			return
		case <-ticker.C:
			dd.CheckAll()
		}
	}
}

// CheckAll runs every service's checks once. A service that comes back is
// marked live again.
func (dd *ServiceManager) CheckAll() {
	dd.servicesLock.RLock()
	services := append([]Service(nil), dd.services...)
	dd.servicesLock.RUnlock()

	for _, service := range services {
		up, reason := service.SelfCheck()
		if up {
			up, reason = service.HealthCheck()
		}

		dd.statusesLock.Lock()
		previous := dd.statuses[service.Name()]
		dd.statuses[service.Name()] = Status{Name: service.Name(), Up: up, Reason: reason}
		dd.statusesLock.Unlock()

		switch {
		case !up && previous.Up:
			dd.logger.Warn("service is down", "service", service.Name(), "reason", reason)
		case up && !previous.Up:
			dd.logger.Info("service recovered", "service", service.Name())
		}
	}
}

func (dd *ServiceManager) GetLiveServices() []Service {
	dd.servicesLock.RLock()
	defer dd.servicesLock.RUnlock()
	dd.statusesLock.RLock()
	defer dd.statusesLock.RUnlock()

	return lo.Filter(dd.services, func(service Service, _ int) bool {
		return dd.statuses[service.Name()].Up
	})
}

// Statuses returns the latest check result per service, sorted by name.
func (dd *ServiceManager) Statuses() []Status {
	dd.statusesLock.RLock()
	defer dd.statusesLock.RUnlock()

	statuses := lo.Values(dd.statuses)
	sort.Slice(statuses, func(i, j int) bool {
		return statuses[i].Name < statuses[j].Name
	})
	return statuses
}

func (dd *ServiceManager) AllUp() bool {
	return lo.EveryBy(dd.Statuses(), func(status Status) bool {
		return status.Up
	})
}

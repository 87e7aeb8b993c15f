package modules

import (
	"context"

	"lawwarden.io/warden/internal/api/handlers"
	"lawwarden.io/warden/internal/governance/audit"
	"lawwarden.io/warden/internal/jobs"
	"lawwarden.io/warden/internal/notification"
)

// GovernanceModule records the audit trail and tells offenders about
// enforcement outcomes. It only listens to domain events.
type GovernanceModule struct {
	infra    *Infrastructure
	Audit    *audit.Logger
	Triggers *notification.Triggers
}

// NewGovernanceModule subscribes the audit logger and crime notices to the
// event dispatcher. Notices go to the database inbox and, when Redis is
// configured, to the notice channel.
func NewGovernanceModule(infra *Infrastructure, patrols *PatrolModule) *GovernanceModule {
	m := &GovernanceModule{infra: infra}

	m.Audit = audit.NewLogger(infra.DB.Queries)
	m.Audit.Register(infra.Events)

	senders := notification.MultiSender{notification.NewInboxSender(infra.DB.Queries)}
	if infra.Redis != nil {
		senders = append(senders, notification.NewRedisPublisher(infra.Redis, infra.Config.Redis.Channel))
	}
	m.Triggers = notification.NewTriggers(senders, patrols.Registry, patrols.Graph)
	m.Triggers.Register(infra.Events)
	return m
}

func (m *GovernanceModule) Name() string { return "governance" }

func (m *GovernanceModule) ContributeServerDeps(_ *handlers.ServerDeps) {}

func (m *GovernanceModule) ContributeJobs(deps *jobs.Deps) {
	deps.Notifications = m.infra.DB.Queries
	deps.CrimeRetention = m.infra.Config.River.CrimeRetention
	deps.NotificationRetention = m.infra.Config.River.NotificationRetention
}

func (m *GovernanceModule) Start(context.Context) error { return nil }

func (m *GovernanceModule) Shutdown(context.Context) error { return nil }

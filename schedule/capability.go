package schedule

import "context"

// =============================================================================
// CAPABILITY CHECK - External authorization port
// =============================================================================
// The engine never reads ambient auth state. Every mutating operation takes
// an explicit actor and asks the checker; false is an unconditional Forbidden.
// The decision algorithm behind the check is not this engine's concern.

type Capability string

const (
	CapSchedulePublish   Capability = "schedule:publish"
	CapScheduleAssign    Capability = "schedule:assign"
	CapScheduleManage    Capability = "schedule:manage"
	CapLeaveManage       Capability = "leave:manage"
	CapTimeclockManage   Capability = "timeclock:manage"
	CapComplianceCheck   Capability = "compliance:check"
	CapComplianceSilence Capability = "compliance:silence"
)

// CapabilityChecker answers whether an actor may perform an operation,
// optionally scoped to a location. Implementations live outside the engine.
type CapabilityChecker interface {
	HasCapability(ctx context.Context, actorID UserID, cap Capability, scope LocationID) bool
}

// StaticCapabilities is a fixed actor -> capabilities map. Scope is ignored.
// Intended for tests and single-tenant deployments.
type StaticCapabilities map[UserID][]Capability

func (s StaticCapabilities) HasCapability(_ context.Context, actorID UserID, cap Capability, _ LocationID) bool {
	for _, c := range s[actorID] {
		if c == cap {
			return true
		}
	}
	return false
}

// AllowAll grants every capability to every actor. Tests only.
type AllowAll struct{}

func (AllowAll) HasCapability(context.Context, UserID, Capability, LocationID) bool { return true }

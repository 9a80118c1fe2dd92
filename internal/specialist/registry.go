package specialist

import (
	"sort"
	"sync"

	"github.com/zulandar/signalbox/internal/intent"
)

// Registry maps vendor tags to specialists. GENERIC is always present and
// answers for any vendor without a registered specialist.
type Registry struct {
	mu       sync.RWMutex
	byVendor map[intent.Vendor]Specialist
	safety   Specialist
}

// NewRegistry returns a registry holding only the GENERIC and SAFETY
// specialists.
func NewRegistry() *Registry {
	return &Registry{
		byVendor: map[intent.Vendor]Specialist{
			intent.Generic: NewVendorSpecialist(string(intent.Generic),
				"Here is what the reference material says about %s.",
				"If the fault persists, capture the nameplate details and the full fault history."),
		},
		safety: Safety{},
	}
}

// DefaultRegistry returns a registry with the built-in vendor specialists.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(intent.Siemens, NewVendorSpecialist("SIEMENS",
		"For the %s, the Siemens references point to the following.",
		"Read the diagnostic buffer in TIA Portal or on the drive's operator panel and note any accompanying alarms.",
		"Check the active parameter set (p0010/p0970 state) before changing values."))
	r.Register(intent.Rockwell, NewVendorSpecialist("ROCKWELL",
		"For the %s, the Rockwell Automation references point to the following.",
		"Pull the fault queue from the HIM or Studio 5000 and note the fault sub-code.",
		"Confirm the firmware revision matches the drive profile in the project."))
	r.Register(intent.ABB, NewVendorSpecialist("ABB",
		"For the %s, the ABB references point to the following.",
		"Record the fault code and auxiliary code from the control panel event log.",
		"Check that the motor nominal values in parameter group 99 match the nameplate."))
	r.Register(intent.Schneider, NewVendorSpecialist("SCHNEIDER",
		"For the %s, the Schneider Electric references point to the following.",
		"Open the fault history on the Altivar display or in SoMove and note the last fault and its state.",
		"Check the motor control type setting against the connected motor."))
	return r
}

// Register adds or replaces the specialist for a vendor. GENERIC may be
// replaced but never removed.
func (r *Registry) Register(v intent.Vendor, s Specialist) {
	if s == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byVendor[v] = s
}

// Lookup returns the specialist for v, or GENERIC.
func (r *Registry) Lookup(v intent.Vendor) Specialist {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if s, ok := r.byVendor[v]; ok {
		return s
	}
	return r.byVendor[intent.Generic]
}

// Vendors lists the registered vendor tags in sorted order.
func (r *Registry) Vendors() []intent.Vendor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]intent.Vendor, 0, len(r.byVendor))
	for v := range r.byVendor {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Dispatch runs the specialists for in. When the intent is safety-critical
// the SAFETY draft comes first, followed by the vendor draft.
func (r *Registry) Dispatch(in Input) []Draft {
	var drafts []Draft
	if d, ok := r.SafetyDraft(in); ok {
		drafts = append(drafts, d)
	}
	return append(drafts, r.Lookup(in.Intent.Vendor).Answer(in))
}

// SafetyDraft returns the SAFETY draft when the intent is safety-critical.
func (r *Registry) SafetyDraft(in Input) (Draft, bool) {
	if !applies(in.Intent) {
		return Draft{}, false
	}
	return r.safety.Answer(in), true
}

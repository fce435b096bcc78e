package stress

// Settings is the injected configuration provider for the alert policy,
// supplied by an external collaborator and consulted on demand.
type Settings interface {
	// AlertsEnabled reports whether outbound alerting is switched on.
	AlertsEnabled() bool
	// HRPhone returns the destination phone override, or "" for the
	// server-side default.
	HRPhone() string
}

// StaticSettings is a Settings implementation backed by values read at
// startup.
type StaticSettings struct {
	Enabled bool
	Phone   string
}

func (s StaticSettings) AlertsEnabled() bool { return s.Enabled }
func (s StaticSettings) HRPhone() string     { return s.Phone }

package dispatch

// Profile shapes how connection status is reported.
type Profile struct {
	Name string
	// MaxReconnectAttempts is used when the connection config leaves it unset.
	MaxReconnectAttempts int
	// ReportExhaustion exposes HasExhaustedRetries and forwards
	// OnMaxRetriesExhausted. The basic profile never reports exhaustion.
	ReportExhaustion bool
}

var (
	ProfileFull  = Profile{Name: "full", MaxReconnectAttempts: 15, ReportExhaustion: true}
	ProfileBasic = Profile{Name: "basic", MaxReconnectAttempts: 5}
)

// ProfileByName resolves "full" or "basic", defaulting to full.
func ProfileByName(name string) Profile {
	if name == ProfileBasic.Name {
		return ProfileBasic
	}
	return ProfileFull
}

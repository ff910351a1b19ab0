package auth

// Capabilities is the single place role gating is decided; handlers and
// middleware consume it instead of comparing role strings inline.
type Capabilities struct {
	StartCalls      bool
	TogglePresence  bool
	ViewOwnSessions bool
	ManageUsers     bool
}

func CapabilitiesFor(role string) Capabilities {
	switch role {
	case "user":
		return Capabilities{StartCalls: true, ViewOwnSessions: true}
	case "astrologer":
		return Capabilities{TogglePresence: true, ViewOwnSessions: true}
	case "admin":
		return Capabilities{ViewOwnSessions: true, ManageUsers: true}
	default:
		return Capabilities{}
	}
}

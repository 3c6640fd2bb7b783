package workshop

// State is a snapshot of the store. Values handed out by the Store are
// copies; mutating them has no effect on the store.
type State struct {
	Identity    *Identity `json:"identity"`
	Session     *Session  `json:"session"`
	Profile     *Profile  `json:"profile"`
	Loading     bool      `json:"loading"`
	Initialized bool      `json:"initialized"`
}

// Authenticated reports whether an identity is present.
func (s State) Authenticated() bool {
	return s.Identity != nil
}

func (s State) clone() State {
	return State{
		Identity:    cloneIdentity(s.Identity),
		Session:     cloneSession(s.Session),
		Profile:     s.Profile.Clone(),
		Loading:     s.Loading,
		Initialized: s.Initialized,
	}
}

func cloneIdentity(i *Identity) *Identity {
	if i == nil {
		return nil
	}
	c := *i
	if i.CreatedAt != nil {
		t := *i.CreatedAt
		c.CreatedAt = &t
	}
	return &c
}

func cloneSession(s *Session) *Session {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}

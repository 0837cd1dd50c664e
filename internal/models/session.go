package models

import "time"

// Session is a citizen's conversation with its stored profile.
type Session struct {
	ID           string              `json:"id"`
	Profile      CitizenProfile      `json:"profile"`
	Conversation ConversationContext `json:"conversation"`
	CreatedAt    time.Time           `json:"createdAt"`
	LastActivity time.Time           `json:"lastActivity"`
	ExpiresAt    time.Time           `json:"expiresAt,omitempty"`
}

// NewSession starts a session with an empty conversation.
func NewSession(id string, profile CitizenProfile, now time.Time, ttl time.Duration) *Session {
	s := &Session{
		ID:           id,
		Profile:      profile,
		Conversation: NewConversation(id, now),
		CreatedAt:    now,
	}
	s.UpdateActivity(now, ttl)
	return s
}

// IsExpired checks if session has expired
func (s *Session) IsExpired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// UpdateActivity moves the idle deadline. A zero ttl never expires.
func (s *Session) UpdateActivity(now time.Time, ttl time.Duration) {
	s.LastActivity = now
	if ttl > 0 {
		s.ExpiresAt = now.Add(ttl)
	} else {
		s.ExpiresAt = time.Time{}
	}
}

// Clone deep-copies the session.
func (s *Session) Clone() *Session {
	out := *s
	out.Conversation = s.Conversation.Clone()
	out.Profile = s.Profile.Clone()
	return &out
}

// MergeProfile overlays the fields set in update onto the stored profile.
func (s *Session) MergeProfile(update CitizenProfile) {
	p := s.Profile.Clone()
	if update.Age != nil {
		age := *update.Age
		p.Age = &age
	}
	if update.Region != "" {
		p.Region = update.Region
	}
	if update.EducationLevel != "" {
		p.EducationLevel = update.EducationLevel
	}
	if update.Income != nil {
		income := *update.Income
		p.Income = &income
	}
	if update.Occupation != "" {
		p.Occupation = update.Occupation
	}
	for flag, member := range update.Memberships {
		if p.Memberships == nil {
			p.Memberships = make(map[string]bool)
		}
		p.Memberships[flag] = member
	}
	s.Profile = p
}

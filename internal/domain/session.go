package domain

import "time"

// Session is one signed-in client of a user. Token is the opaque handle the
// owner uses to revoke it and is only ever shown to that owner.
type Session struct {
	ID            string     `gorm:"primaryKey;size:36" json:"id"`
	UserID        uint       `gorm:"index;not null" json:"user_id"`
	Token         string     `gorm:"size:64;uniqueIndex;not null" json:"-"`
	UserAgent     string     `gorm:"size:512" json:"user_agent"`
	IP            string     `gorm:"size:64" json:"ip"`
	ExpiresAt     time.Time  `gorm:"index;not null" json:"expires_at"`
	RevokedAt     *time.Time `gorm:"index" json:"revoked_at,omitempty"`
	RevokedReason *string    `gorm:"size:64" json:"revoked_reason,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// SessionView is the wire shape of a session returned to its owner.
type SessionView struct {
	ID        string    `json:"id"`
	Token     string    `json:"token"`
	IPAddress string    `json:"ip_address,omitempty"`
	UserAgent string    `json:"user_agent,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func (s Session) View() SessionView {
	return SessionView{
		ID:        s.ID,
		Token:     s.Token,
		IPAddress: s.IP,
		UserAgent: s.UserAgent,
		CreatedAt: s.CreatedAt,
	}
}

func Views(sessions []Session) []SessionView {
	out := make([]SessionView, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, s.View())
	}
	return out
}

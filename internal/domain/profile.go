package domain

import "time"

// Profile is a seller account connected to the marketplace.
type Profile struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

// Token holds marketplace API credentials for a profile.
type Token struct {
	ID        string
	ProfileID string
	Name      string
	ClientID  string
	APIKey    string
	Active    bool
	CreatedAt time.Time
}

// ProfileType registers one support channel for seller profiles.
type ProfileType struct {
	Type      TicketType
	Sort      int
	CreatedAt time.Time
}

// DeadLetter records an outbound send that ran out of attempts.
type DeadLetter struct {
	ID        string
	TicketID  string
	Channel   TicketType
	Attempts  int
	LastError string
	CreatedAt time.Time
}

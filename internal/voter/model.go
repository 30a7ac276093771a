package voter

import "time"

// Voter is an authenticated account. Anonymous votes have no Voter.
type Voter struct {
	ID       string `gorm:"primaryKey;size:64" json:"id"`
	Username string `gorm:"size:100;index" json:"username"`
	// JoinedAt is when the account first signed in here.
	JoinedAt *time.Time `json:"joinedAt"`
	// ExternalCreatedAt is the creation date of the identity provider account.
	ExternalCreatedAt *time.Time `json:"externalCreatedAt"`
	ShowInLeaderboard bool       `gorm:"not null" json:"showInLeaderboard"`
	CreatedAt         time.Time  `json:"-"`
	UpdatedAt         time.Time  `json:"-"`
}

// Registration is what the auth proxy reports on sign-in.
type Registration struct {
	ID                string     `json:"id" binding:"required"`
	Username          string     `json:"username" binding:"required"`
	ExternalCreatedAt *time.Time `json:"externalCreatedAt"`
}

// Ranked is one row of the top-voter ranking.
type Ranked struct {
	Rank      int    `json:"rank"`
	ID        string `json:"id"`
	Username  string `json:"username"`
	VoteCount int64  `json:"voteCount"`
}

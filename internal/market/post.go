package market

import (
	"time"

	"github.com/google/uuid"
)

// NewPost captures the fields a user supplies when listing something.
type NewPost struct {
	Title          string
	Category       Category
	OwnerID        string
	TimeType       TimeType
	Tags           []string
	LocationString string
}

func newPost(input NewPost, now time.Time) Post {
	category := input.Category
	if category == "" {
		category = CategoryISO
	}
	timeType := input.TimeType
	if timeType == "" {
		timeType = TimeItemPermanent
	}
	tags := append([]string{}, input.Tags...)

	return Post{
		ID:             uuid.New().String(),
		Title:          input.Title,
		Category:       category,
		State:          StateDraft,
		LocationString: input.LocationString,
		TimePosted:     now.Unix(),
		TimeExpires:    now.Add(postLifetime).Unix(),
		OwnerID:        input.OwnerID,
		KarmaDiff:      unappliedKarma,
		TimeType:       timeType,
		Tags:           tags,
	}
}

// claim hands the post to userID. A post that already has an acceptor is
// reassigned.
func (p *Post) claim(userID string, now time.Time) {
	accepted := now.Unix()
	p.AcceptorID = &userID
	p.State = StateAccepted
	p.TimeAccepted = &accepted
}

// Claimed reports whether someone has accepted the post.
func (p Post) Claimed() bool {
	return p.TimeAccepted != nil
}

// Live reports whether the post is listed: Draft and Posted both count, since
// nothing ever promotes a Draft.
func (p Post) Live() bool {
	return p.State == StateDraft || p.State == StatePosted
}

// IsExpired reports whether the 24 hour window has passed. Expiry is derived
// and never written back to State.
func (p Post) IsExpired(now time.Time) bool {
	return now.Unix() >= p.TimeExpires
}

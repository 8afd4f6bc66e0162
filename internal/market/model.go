package market

import (
	"crypto/rand"
	"math/big"
	"time"
)

// Category tells whether a listing offers something or asks for it.
type Category string

const (
	// CategoryISO is an "in search of" listing: the owner is requesting.
	CategoryISO Category = "ISO"
	// CategoryOSI is an offering listing.
	CategoryOSI Category = "OSI"
)

// State is the lifecycle state of a post.
type State string

const (
	StateDraft    State = "Draft"
	StatePosted   State = "Posted"
	StateAccepted State = "Accepted"
	StateExpired  State = "Expired"
)

// TimeType describes the urgency or duration of a listing. Informational only.
type TimeType string

const (
	TimeServiceNow    TimeType = "ServiceNow"
	TimeServiceFuture TimeType = "ServiceFuture"
	TimeItemPermanent TimeType = "ItemPermanant"
	TimeItemLoan      TimeType = "ItemLoan"
)

const (
	// PageSize is the maximum number of posts returned per feed page.
	PageSize = 25

	postLifetime   = 24 * time.Hour
	unappliedKarma = -1
	tokenLength    = 256
	tokenAlphabet  = "234679QWERTYUPADFGHX"
)

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	return c == CategoryISO || c == CategoryOSI
}

// Valid reports whether t is a known time type.
func (t TimeType) Valid() bool {
	switch t {
	case TimeServiceNow, TimeServiceFuture, TimeItemPermanent, TimeItemLoan:
		return true
	}
	return false
}

// User is a marketplace participant identified by a verified phone number.
type User struct {
	ID          string     `json:"uuid"`
	Token       string     `json:"token"`
	PhoneNumber string     `json:"phone_number"`
	Location    [2]float64 `json:"current_location"`
	Karma       int        `json:"karma"`
	Posts       []string   `json:"posts"`
	Verified    string     `json:"verified"`
}

// NewUser creates a user with a fresh bearer token.
func NewUser(id, phoneNumber string) (User, error) {
	token, err := GenerateToken()
	if err != nil {
		return User{}, err
	}
	return User{ID: id, Token: token, PhoneNumber: phoneNumber, Posts: []string{}}, nil
}

// GenerateToken returns a random bearer token.
func GenerateToken() (string, error) {
	alphabetSize := big.NewInt(int64(len(tokenAlphabet)))
	token := make([]byte, tokenLength)
	for i := range token {
		n, err := rand.Int(rand.Reader, alphabetSize)
		if err != nil {
			return "", err
		}
		token[i] = tokenAlphabet[n.Int64()]
	}
	return string(token), nil
}

func (u User) clone() User {
	u.Posts = cloneStrings(u.Posts)
	return u
}

// Post is a marketplace listing.
type Post struct {
	ID             string   `json:"uuid"`
	Title          string   `json:"title"`
	Category       Category `json:"iso_or_osi"`
	State          State    `json:"state"`
	LocationString string   `json:"location_string"`

	TimePosted   int64  `json:"time_posted"`
	TimeExpires  int64  `json:"time_expires"`
	TimeAccepted *int64 `json:"time_accepted"`

	OwnerID    string  `json:"user_owner"`
	AcceptorID *string `json:"user_acceptor"`

	KarmaDiff int    `json:"karma_diff"`
	Views     uint64 `json:"views"`

	TimeType TimeType `json:"time_type"`
	Tags     []string `json:"tags"`
}

func (p Post) clone() Post {
	if p.TimeAccepted != nil {
		v := *p.TimeAccepted
		p.TimeAccepted = &v
	}
	if p.AcceptorID != nil {
		v := *p.AcceptorID
		p.AcceptorID = &v
	}
	p.Tags = cloneStrings(p.Tags)
	return p
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	return append(make([]string, 0, len(in)), in...)
}

// Data is the full marketplace state: the feed (newest first), users keyed
// by id, and pinned post ids. It is also the snapshot document.
type Data struct {
	Feed        []Post          `json:"feed"`
	Users       map[string]User `json:"users"`
	PinnedPosts []string        `json:"pinned_posts"`
}

// Clone returns a deep copy sharing no memory with d.
func (d Data) Clone() Data {
	out := Data{
		Feed:        make([]Post, len(d.Feed)),
		Users:       make(map[string]User, len(d.Users)),
		PinnedPosts: append([]string{}, d.PinnedPosts...),
	}
	for i, p := range d.Feed {
		out.Feed[i] = p.clone()
	}
	for id, u := range d.Users {
		out.Users[id] = u.clone()
	}
	return out
}

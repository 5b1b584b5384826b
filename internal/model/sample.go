package model

import "time"

// RawSample is a single piece of scraped third-party text
type RawSample struct {
	ID             string     `json:"id" yaml:"id"`
	Content        string     `json:"content" yaml:"content"`
	Platform       string     `json:"platform" yaml:"platform"` // reddit, g2, trustpilot, linkedin, ...
	URL            string     `json:"url,omitempty" yaml:"url,omitempty"`
	Author         string     `json:"author,omitempty" yaml:"author,omitempty"`
	SourceTitle    string     `json:"source_title,omitempty" yaml:"source_title,omitempty"`
	CompetitorName string     `json:"competitor_name,omitempty" yaml:"competitor_name,omitempty"`
	SourceType     string     `json:"source_type,omitempty" yaml:"source_type,omitempty"` // review, forum, news, event, interview, ...
	Timestamp      *time.Time `json:"timestamp,omitempty" yaml:"timestamp,omitempty"`
	Engagement     int        `json:"engagement,omitempty" yaml:"engagement,omitempty"` // upvotes, likes, helpful votes
}

// VerificationStatus tracks what is known about a registered source
type VerificationStatus string

const (
	StatusUnverified VerificationStatus = "unverified"
	StatusVerified   VerificationStatus = "verified"
	StatusInvalid    VerificationStatus = "invalid"  // URL dead or content unreachable
	StatusArchived   VerificationStatus = "archived" // retained but excluded from new runs
)

// VerifiedSource is the registry's canonical record of a sample.
// Only the registry creates these; everything else refers to them by ID.
type VerifiedSource struct {
	ID           string             `json:"id"`
	Sample       RawSample          `json:"sample"`
	Status       VerificationStatus `json:"status"`
	ContentHash  string             `json:"content_hash"`
	RegisteredAt time.Time          `json:"registered_at"`
}

// SourceKind is the coarse source-type category used for triangulation
type SourceKind string

const (
	KindVoiceOfCustomer SourceKind = "voice_of_customer" // reviews, testimonials, support tickets
	KindCommunity       SourceKind = "community"         // forums, subreddits, social threads
	KindEvent           SourceKind = "event"             // conference talks, webinars, meetups
	KindExecutive       SourceKind = "executive"         // interviews, leadership posts, podcasts
	KindNews            SourceKind = "news"              // press, trade publications, blogs
	KindUnknown         SourceKind = ""
)

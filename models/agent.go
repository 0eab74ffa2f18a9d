package models

import "time"

// AgentAddressEntry tracks one normalized address across listings. An entry
// becomes blacklisted when it has been seen on enough distinct listings,
// which is the signature of an agent-office address repeated on unrelated
// properties. Blacklisting never reverts.
type AgentAddressEntry struct {
	NormalizedAddress    string
	DistinctListingCount int
	Blacklisted          bool
	FirstSeen            time.Time
	LastSeen             time.Time
}

package model

import (
	"fmt"
	"strconv"
	"strings"
)

// CandidateID identifies one candidate by lineage and generation.
type CandidateID struct {
	Lineage    string
	Generation int
}

// String renders the id as lineage_generation.
func (id CandidateID) String() string {
	return fmt.Sprintf("%s_%d", id.Lineage, id.Generation)
}

// Previous returns the same lineage one generation earlier.
func (id CandidateID) Previous() CandidateID {
	return CandidateID{Lineage: id.Lineage, Generation: id.Generation - 1}
}

// Next returns the same lineage one generation later.
func (id CandidateID) Next() CandidateID {
	return CandidateID{Lineage: id.Lineage, Generation: id.Generation + 1}
}

// ParseCandidateID is the inverse of CandidateID.String. Lineage ids may
// themselves contain underscores; the generation is the last segment.
func ParseCandidateID(s string) (CandidateID, error) {
	idx := strings.LastIndex(s, "_")
	if idx <= 0 || idx == len(s)-1 {
		return CandidateID{}, fmt.Errorf("malformed candidate id %q", s)
	}

	gen, err := strconv.Atoi(s[idx+1:])
	if err != nil {
		return CandidateID{}, fmt.Errorf("malformed candidate id %q: %w", s, err)
	}

	return CandidateID{Lineage: s[:idx], Generation: gen}, nil
}

// Member is one entry of a population.
type Member struct {
	ID     CandidateID
	Source string
}

// Population is an ordered set of candidates of one generation.
type Population []Member

// IDs returns the member ids in population order.
func (p Population) IDs() []CandidateID {
	ids := make([]CandidateID, 0, len(p))
	for _, member := range p {
		ids = append(ids, member.ID)
	}

	return ids
}

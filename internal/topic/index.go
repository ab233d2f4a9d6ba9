package topic

import (
	"slices"

	"github.com/ashureev/horizon-coach/internal/domain"
)

// Index is an insertion-ordered set of topics. Enumeration always follows
// creation order, which makes tie-breaks deterministic.
type Index struct {
	order []string
	byID  map[string]*domain.Topic
}

// NewIndex builds an index from topics in creation order.
func NewIndex(topics ...domain.Topic) *Index {
	idx := &Index{byID: make(map[string]*domain.Topic, len(topics))}
	for i := range topics {
		idx.Add(topics[i].Clone())
	}
	return idx
}

// Add appends a topic. Re-adding a known id replaces it in place.
func (x *Index) Add(t *domain.Topic) {
	if x.byID == nil {
		x.byID = make(map[string]*domain.Topic)
	}
	if _, ok := x.byID[t.ID]; !ok {
		x.order = append(x.order, t.ID)
	}
	x.byID[t.ID] = t
}

// Get returns the topic with id, or nil.
func (x *Index) Get(id string) *domain.Topic {
	if x == nil {
		return nil
	}
	return x.byID[id]
}

// Len returns the number of topics.
func (x *Index) Len() int {
	if x == nil {
		return 0
	}
	return len(x.order)
}

// All returns topics in creation order.
func (x *Index) All() []*domain.Topic {
	if x == nil {
		return nil
	}
	out := make([]*domain.Topic, 0, len(x.order))
	for _, id := range x.order {
		out = append(out, x.byID[id])
	}
	return out
}

// ByMessageCount returns topics ordered by message count descending,
// ties kept in creation order.
func (x *Index) ByMessageCount() []*domain.Topic {
	out := x.All()
	slices.SortStableFunc(out, func(a, b *domain.Topic) int {
		return b.MessageCount - a.MessageCount
	})
	return out
}

// Snapshot returns value copies of all topics in creation order.
func (x *Index) Snapshot() []domain.Topic {
	all := x.All()
	out := make([]domain.Topic, 0, len(all))
	for _, t := range all {
		out = append(out, *t.Clone())
	}
	return out
}

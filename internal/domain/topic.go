package domain

// MaxTopicKeywords caps the keyword set carried by a topic.
const MaxTopicKeywords = 10

// Topic is a keyword-overlap cluster of learner turns.
type Topic struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Keywords     []string `json:"keywords"`
	MessageCount int      `json:"message_count"`
	Mastery      float64  `json:"mastery"`
}

// Clone returns a deep copy of the topic.
func (t *Topic) Clone() *Topic {
	c := *t
	c.Keywords = append([]string(nil), t.Keywords...)
	return &c
}

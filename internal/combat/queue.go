package combat

// Hit is one pending attack. Queued hits are delivered oldest-first by the
// attack loop and abandoned when the attacker disengages.
type Hit struct {
	Target    Actor
	IsAoE     bool
	HasTerror bool
}

type hitQueue struct {
	hits []Hit
}

func (q *hitQueue) push(h Hit) {
	q.hits = append(q.hits, h)
}

// pop removes and returns the oldest hit.
func (q *hitQueue) pop() (Hit, bool) {
	if len(q.hits) == 0 {
		return Hit{}, false
	}
	h := q.hits[0]
	q.hits = q.hits[1:]
	return h, true
}

func (q *hitQueue) clear() {
	q.hits = q.hits[:0]
}

func (q *hitQueue) len() int {
	return len(q.hits)
}

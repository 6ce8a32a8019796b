package crawler

// Frontier is the breadth-first crawl queue. It is owned by the single
// scheduling goroutine, so there is no locking. Duplicate URLs may sit in
// the queue at once; the scheduler's IsKnown check at pop time discards
// the extras.
type Frontier struct {
	queue []string
}

// NewFrontier returns an empty frontier.
func NewFrontier() *Frontier {
	return &Frontier{}
}

// Push appends a URL at the back of the queue.
func (f *Frontier) Push(url string) {
	f.queue = append(f.queue, url)
}

// PushAll appends URLs at the back in order. Used to seed a fresh crawl
// and to restore the pending frontier from a checkpoint.
func (f *Frontier) PushAll(urls []string) {
	f.queue = append(f.queue, urls...)
}

// PushFront returns a URL to the head of the queue. The scheduler uses
// this for the in-flight URL when a shutdown interrupts its fetch, so a
// resumed crawl picks it up first.
func (f *Frontier) PushFront(url string) {
	f.queue = append([]string{url}, f.queue...)
}

// Pop removes and returns the URL at the head of the queue.
func (f *Frontier) Pop() (string, bool) {
	if len(f.queue) == 0 {
		return "", false
	}
	url := f.queue[0]
	f.queue = f.queue[1:]
	return url, true
}

// Len returns the number of queued URLs, duplicates included.
func (f *Frontier) Len() int {
	return len(f.queue)
}

// Snapshot returns a copy of the queue in order for checkpointing.
func (f *Frontier) Snapshot() []string {
	snapshot := make([]string, len(f.queue))
	copy(snapshot, f.queue)
	return snapshot
}

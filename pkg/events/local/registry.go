package local

import (
	"sort"
	"sync"

	"github.com/veesix-networks/aasbus/pkg/events"
)

type subscription struct {
	id   events.SubscriptionID
	info events.SubscriptionInfo
}

// registry holds the active subscriptions. The dispatcher never iterates the
// map itself; it works on a snapshot so subscribe and unsubscribe from
// handlers or other goroutines cannot disturb an ongoing dispatch.
type registry struct {
	mu   sync.RWMutex
	subs map[events.SubscriptionID]*subscription
}

func newRegistry() *registry {
	return &registry{
		subs: make(map[events.SubscriptionID]*subscription),
	}
}

func (r *registry) add(info events.SubscriptionInfo) (events.SubscriptionID, error) {
	if err := info.Validate(); err != nil {
		return "", err
	}

	info.Kinds = append([]events.Kind(nil), info.Kinds...)
	id := events.NewSubscriptionID()

	r.mu.Lock()
	r.subs[id] = &subscription{id: id, info: info}
	r.mu.Unlock()

	return id, nil
}

func (r *registry) remove(id events.SubscriptionID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.subs[id]; !ok {
		return false
	}
	delete(r.subs, id)
	return true
}

func (r *registry) snapshot() []*subscription {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*subscription, 0, len(r.subs))
	for _, s := range r.subs {
		out = append(out, s)
	}
	return out
}

func (r *registry) len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subs)
}

func (r *registry) kindStats() []events.KindStats {
	r.mu.RLock()
	counts := make(map[events.Kind]int)
	for _, s := range r.subs {
		for _, k := range s.info.Kinds {
			counts[k]++
		}
	}
	r.mu.RUnlock()

	out := make([]events.KindStats, 0, len(counts))
	for k, n := range counts {
		out = append(out, events.KindStats{Kind: k.String(), Subscriptions: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Kind < out[j].Kind })
	return out
}

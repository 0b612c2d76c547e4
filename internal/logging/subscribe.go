package logging

// Subscription identifies a registered history callback.
type Subscription struct {
	id     uint64
	logger *Logger
}

// Cancel stops delivery to the subscription. Calling it more than once is
// harmless.
func (s Subscription) Cancel() {
	if s.logger != nil {
		s.logger.Unsubscribe(s)
	}
}

// Subscribe registers fn to receive a copy of the full history after every
// accepted entry and after Clear. Callbacks run synchronously, in
// registration order, and never concurrently with each other. Snapshots
// arrive in history order; when several goroutines log at once a subscriber
// may skip intermediate snapshots, but the last one it receives is the
// current history. A callback may log, but must not block.
func (l *Logger) Subscribe(fn func([]LogEntry)) Subscription {
	l.subMu.Lock()
	defer l.subMu.Unlock()

	l.nextID++
	l.subs = append(l.subs, subscriber{id: l.nextID, fn: fn})
	return Subscription{id: l.nextID, logger: l}
}

// Unsubscribe removes a subscription. Unknown subscriptions are ignored.
func (l *Logger) Unsubscribe(s Subscription) {
	l.subMu.Lock()
	defer l.subMu.Unlock()

	for i, sub := range l.subs {
		if sub.id == s.id {
			l.subs = append(l.subs[:i:i], l.subs[i+1:]...)
			return
		}
	}
}

// Subscribers returns the number of active subscriptions.
func (l *Logger) Subscribers() int {
	l.subMu.RLock()
	defer l.subMu.RUnlock()
	return len(l.subs)
}

// publish queues snapshot, numbered seq, for delivery. If another
// goroutine is already delivering, it picks the snapshot up before it
// returns; a snapshot older than the one queued is discarded.
func (l *Logger) publish(seq uint64, snapshot []LogEntry) {
	l.pubMu.Lock()
	if seq <= l.pendingSeq {
		l.pubMu.Unlock()
		return
	}
	l.pendingSeq = seq
	l.pending = snapshot
	l.hasPending = true
	if l.publishing {
		l.pubMu.Unlock()
		return
	}
	l.publishing = true

	for l.hasPending {
		next := l.pending
		l.pending, l.hasPending = nil, false
		l.pubMu.Unlock()
		l.deliver(next)
		l.pubMu.Lock()
	}
	l.publishing = false
	l.pubMu.Unlock()
}

// deliver hands snapshot to every subscriber. Each subscriber gets its own
// copy so one callback cannot alter what the next one sees.
func (l *Logger) deliver(snapshot []LogEntry) {
	defer func() {
		if r := recover(); r != nil {
			l.pubMu.Lock()
			l.publishing = false
			l.pending, l.hasPending = nil, false
			l.pubMu.Unlock()
			panic(r)
		}
	}()

	l.subMu.RLock()
	subs := make([]subscriber, len(l.subs))
	copy(subs, l.subs)
	l.subMu.RUnlock()

	for i, sub := range subs {
		view := snapshot
		if i < len(subs)-1 {
			view = make([]LogEntry, len(snapshot))
			copy(view, snapshot)
		}
		sub.fn(view)
	}
}

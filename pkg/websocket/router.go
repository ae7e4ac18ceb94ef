package websocket

// router fans connection events out to every current subscriber.
// Callers hold the connection's dispatch lock, so per-connection delivery is serial.
type router struct {
	subs *subscriptions
}

func (r router) message(msg Message) {
	for _, s := range r.subs.Snapshot() {
		if s.OnMessage != nil {
			s.OnMessage(msg)
		}
	}
}

func (r router) open() {
	for _, s := range r.subs.Snapshot() {
		if s.OnOpen != nil {
			s.OnOpen()
		}
	}
}

func (r router) close(err error) {
	for _, s := range r.subs.Snapshot() {
		if s.OnClose != nil {
			s.OnClose(err)
		}
	}
}

func (r router) error(err error) {
	for _, s := range r.subs.Snapshot() {
		if s.OnError != nil {
			s.OnError(err)
		}
	}
}

func (r router) heartbeat() {
	for _, s := range r.subs.Snapshot() {
		if s.OnHeartbeat != nil {
			s.OnHeartbeat()
		}
	}
}

func (r router) exhausted() {
	for _, s := range r.subs.Snapshot() {
		if s.OnMaxRetriesExhausted != nil {
			s.OnMaxRetriesExhausted()
		}
	}
}

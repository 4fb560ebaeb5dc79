package netlink

import (
	"context"
	"sync"
	"time"

	log "speaking-stone-golang/logger"
)

// Supervisor brings the edge link online and keeps it there. Start
// performs ordered bring-up steps and fails fast on the first error;
// afterwards a single event loop owns all state transitions.
type Supervisor struct {
	config  Config
	monitor LinkMonitor

	newMonitor    func(Config) (LinkMonitor, error)
	onStateChange func(old, next State)

	events chan Event

	mu      sync.Mutex
	started bool
	state   State
	attempt int

	ctx    context.Context
	cancel context.CancelFunc
}

type SupervisorOption func(*Supervisor)

// WithMonitor injects a link monitor instead of the default HTTP probe.
func WithMonitor(monitor LinkMonitor) SupervisorOption {
	return func(s *Supervisor) {
		s.newMonitor = func(Config) (LinkMonitor, error) {
			return monitor, nil
		}
	}
}

// WithOnStateChange registers a callback fired on every state
// transition, outside the supervisor's lock.
func WithOnStateChange(fn func(old, next State)) SupervisorOption {
	return func(s *Supervisor) {
		s.onStateChange = fn
	}
}

func NewSupervisor(config Config, opts ...SupervisorOption) *Supervisor {
	s := &Supervisor{
		config: config.withDefaults(),
		state:  StateIdle,
		events: make(chan Event, 8),
	}
	s.newMonitor = func(cfg Config) (LinkMonitor, error) {
		return newHTTPLinkMonitor(cfg.Station.EndpointURL, cfg.ProbeTimeout)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start performs the ordered bring-up: validate config, create the link
// monitor, then launch the event loop. The first failing step returns
// its error immediately and no later step runs. Starting an already
// started supervisor is not an error.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		log.Infof("supervisor already started, endpoint: %s", s.config.Station.EndpointName)
		return nil
	}

	s.config.Station = s.config.Station.Normalize()
	if err := s.config.Station.Validate(); err != nil {
		s.mu.Unlock()
		return err
	}

	monitor, err := s.newMonitor(s.config)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.monitor = monitor

	s.started = true
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	s.setState(StateStarting)
	log.Infof("link init finished, connecting to %s", s.config.Station.EndpointName)

	go s.run()
	s.emit(LinkUpEvent{})
	return nil
}

// Stop tears the supervisor down. Safe to call more than once.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	cancel := s.cancel
	monitor := s.monitor
	s.mu.Unlock()

	cancel()
	if monitor != nil {
		monitor.Close()
	}
	s.setState(StateIdle)
}

func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Online reports whether an address has been acquired.
func (s *Supervisor) Online() bool {
	return s.State() == StateOnline
}

func (s *Supervisor) run() {
	keepalive := time.NewTicker(s.config.ProbeInterval)
	defer keepalive.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case event := <-s.events:
			s.handleEvent(event)
		case <-keepalive.C:
			if s.State() != StateOnline {
				continue
			}
			if _, err := s.probe(); err != nil {
				s.emit(LinkLostEvent{Reason: err.Error()})
			}
		}
	}
}

// handleEvent applies the pure transition function, then performs the
// resulting action.
func (s *Supervisor) handleEvent(event Event) {
	next, action := Reduce(s.State(), event)
	s.setState(next)

	switch action {
	case ActionConnect:
		s.connect()
	case ActionReconnect:
		s.reconnect(event)
	case ActionLogAddress:
		if e, ok := event.(AddressAcquiredEvent); ok {
			log.Infof("connected, got IP: %s", e.Address)
		}
	}
}

// reconnect performs exactly one backoff-delayed attempt for the link
// loss that triggered it.
func (s *Supervisor) reconnect(event Event) {
	reason := ""
	if e, ok := event.(LinkLostEvent); ok {
		reason = e.Reason
	}

	s.mu.Lock()
	s.attempt++
	attempt := s.attempt
	s.mu.Unlock()

	if s.config.Backoff.Exhausted(attempt) {
		log.Errorf("link lost (%s), retry budget exhausted after %d attempts", reason, attempt-1)
		s.setState(StateDisconnected)
		return
	}

	delay := s.config.Backoff.Delay(attempt)
	log.Warnf("link lost (%s), retrying in %s (attempt %d)", reason, delay, attempt)

	select {
	case <-s.ctx.Done():
		return
	case <-time.After(delay):
	}
	s.connect()
}

func (s *Supervisor) connect() {
	address, err := s.probe()
	if err != nil {
		s.emit(LinkLostEvent{Reason: err.Error()})
		return
	}

	s.mu.Lock()
	s.attempt = 0
	s.mu.Unlock()

	s.setState(StateConnected)
	s.emit(AddressAcquiredEvent{Address: address})
}

func (s *Supervisor) probe() (string, error) {
	ctx, cancel := context.WithTimeout(s.ctx, s.config.ProbeTimeout)
	defer cancel()
	return s.monitor.Probe(ctx)
}

func (s *Supervisor) setState(next State) {
	s.mu.Lock()
	old := s.state
	s.state = next
	callback := s.onStateChange
	s.mu.Unlock()

	if old != next && callback != nil {
		callback(old, next)
	}
}

func (s *Supervisor) emit(event Event) {
	select {
	case s.events <- event:
	default:
		log.Warnf("event queue full, dropping %s", event.Kind())
	}
}

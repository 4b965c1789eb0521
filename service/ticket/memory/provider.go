// Package memory provides an in-memory ticket provider used by tests and
// local runs.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/viant/facilitor/service/ticket"
)

// Provider is an in-memory ticket store implementing ticket.Provider.
type Provider struct {
	name    string
	mux     sync.RWMutex
	tickets map[string]*ticket.Ticket
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return p.name
}

// Fetch returns a copy of the stored ticket snapshot.
func (p *Provider) Fetch(_ context.Context, _, key string) (*ticket.Ticket, error) {
	p.mux.RLock()
	defer p.mux.RUnlock()
	aTicket, ok := p.tickets[key]
	if !ok {
		return nil, fmt.Errorf("ticket %q not found", key)
	}
	fields := make(map[string]interface{}, len(aTicket.Fields))
	for k, v := range aTicket.Fields {
		fields[k] = v
	}
	return &ticket.Ticket{Key: aTicket.Key, Fields: fields}, nil
}

// Upsert stores or replaces a ticket snapshot.
func (p *Provider) Upsert(aTicket *ticket.Ticket) {
	p.mux.Lock()
	defer p.mux.Unlock()
	p.tickets[aTicket.Key] = aTicket
}

// New creates an in-memory provider registered under name.
func New(name string) *Provider {
	return &Provider{name: name, tickets: make(map[string]*ticket.Ticket)}
}

package engine

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/viant/facilitor/internal/clock"
	"github.com/viant/facilitor/model/ambiance"
	"github.com/viant/facilitor/policy"
	"github.com/viant/facilitor/service/approval"
	"github.com/viant/facilitor/service/facilitate"
	"github.com/viant/facilitor/service/messaging"
	"github.com/viant/structology/conv"
)

// approvalBridge is the slice of the approval service the driver depends
// on.
type approvalBridge interface {
	Create(ctx context.Context, instance *approval.Instance) error
	Queue() messaging.Queue[approval.Event]
}

// ApprovalParameters configures the approval obtainment of a node.
type ApprovalParameters struct {
	Type            string             `json:"type,omitempty"` // manual (default) or ticket
	Message         string             `json:"message,omitempty"`
	MinimumCount    int                `json:"minimumCount,omitempty"`
	AllowUsers      []string           `json:"allowUsers,omitempty"`
	AllowGroups     []string           `json:"allowGroups,omitempty"`
	TimeoutMinutes  int                `json:"timeoutMinutes,omitempty"`
	TicketProvider  string             `json:"ticketProvider,omitempty"`
	TicketConnector string             `json:"ticketConnector,omitempty"`
	TicketKey       string             `json:"ticketKey,omitempty"`
	Approval        *approval.Criteria `json:"approval,omitempty"`
	Rejection       *approval.Criteria `json:"rejection,omitempty"`
}

// approvalFacilitator parks a node in the approval state machine.  The
// node resumes when the instance reaches a terminal status.
type approvalFacilitator struct {
	approvals approvalBridge
	converter *conv.Converter

	mux     sync.Mutex
	created map[string]string // node runtime id -> instance id
}

func newApprovalFacilitator(approvals approvalBridge) *approvalFacilitator {
	options := conv.DefaultOptions()
	options.ClonePointerData = true
	options.IgnoreUnmapped = true
	options.AccessUnexported = true
	return &approvalFacilitator{
		approvals: approvals,
		converter: conv.NewConverter(options),
		created:   make(map[string]string),
	}
}

func (f *approvalFacilitator) Name() string { return "approval" }

func (f *approvalFacilitator) Facilitate(ctx context.Context, amb *ambiance.Ambiance, parameters map[string]interface{}) (*facilitate.Decision, error) {
	runtimeID := amb.CurrentRuntimeID()

	f.mux.Lock()
	instanceID, exists := f.created[runtimeID]
	f.mux.Unlock()
	if exists {
		// re-facilitation of a node that already parked an instance
		return f.decision(instanceID), nil
	}

	params := &ApprovalParameters{}
	if len(parameters) > 0 {
		if err := f.converter.Convert(parameters, params); err != nil {
			return nil, &facilitate.ConfigurationError{Reason: "invalid approval parameters: " + err.Error()}
		}
	}
	if params.Type == "" {
		params.Type = approval.TypeManual
	}
	instance := &approval.Instance{
		NodeExecutionID:   runtimeID,
		Ambiance:          amb,
		Type:              params.Type,
		Message:           params.Message,
		TicketProvider:    params.TicketProvider,
		TicketConnector:   params.TicketConnector,
		TicketKey:         params.TicketKey,
		ApprovalCriteria:  params.Approval,
		RejectionCriteria: params.Rejection,
		Authorization:     &approval.Authorization{MinimumCount: params.MinimumCount},
	}
	if len(params.AllowUsers) > 0 || len(params.AllowGroups) > 0 {
		instance.Authorization.Policy = &policy.Policy{
			Mode:        policy.ModeList,
			AllowUsers:  params.AllowUsers,
			AllowGroups: params.AllowGroups,
		}
	}
	if params.TimeoutMinutes > 0 {
		deadline := clock.Now().Add(time.Duration(params.TimeoutMinutes) * time.Minute)
		instance.DeadlineAt = &deadline
	}
	if err := f.approvals.Create(ctx, instance); err != nil {
		return nil, err
	}
	f.mux.Lock()
	f.created[runtimeID] = instance.ID
	f.mux.Unlock()
	return f.decision(instance.ID), nil
}

func (f *approvalFacilitator) decision(instanceID string) *facilitate.Decision {
	return &facilitate.Decision{
		Mode:        facilitate.ModeAsync,
		PassThrough: map[string]interface{}{passThroughApproval: instanceID},
	}
}

// consumeApprovalEvents feeds terminal approval outcomes back into the
// execution status pipeline.
func (s *Service) consumeApprovalEvents(ctx context.Context) {
	queue := s.approvals.Queue()
	for {
		msg, err := queue.Consume(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			select {
			case <-s.shutdownCh:
				return
			case <-time.After(100 * time.Millisecond):
			}
			continue
		}
		if msg == nil {
			continue
		}
		instance := msg.T().Instance
		if instance == nil || instance.NodeExecutionID == "" || !instance.IsTerminal() {
			_ = msg.Ack()
			continue
		}
		switch instance.Status {
		case approval.StatusApproved:
			err = s.ResumeNode(ctx, instance.NodeExecutionID, true, "")
		case approval.StatusRejected:
			err = s.ResumeNode(ctx, instance.NodeExecutionID, false, "approval rejected")
		case approval.StatusFailed:
			err = s.ResumeNode(ctx, instance.NodeExecutionID, false, instance.ErrorMessage)
		case approval.StatusExpired:
			err = s.ExpireNode(ctx, instance.NodeExecutionID, "approval expired")
		}
		if err != nil {
			log.Printf("engine: failed to apply approval outcome %s to node %s: %v", instance.Status, instance.NodeExecutionID, err)
		}
		_ = msg.Ack()
	}
}

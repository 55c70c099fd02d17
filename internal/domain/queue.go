package domain

import "time"

// ActionType is the kind of outbound action a queue item carries.
type ActionType string

const (
	ActionConnectionRequest ActionType = "connection_request"
	ActionDirectMessage     ActionType = "direct_message"
)

func (a ActionType) IsValid() bool {
	switch a {
	case ActionConnectionRequest, ActionDirectMessage:
		return true
	}
	return false
}

// ItemStatus tracks the lifecycle of a send-queue item.
// Transitions are monotonic pending→{sent,failed}; failed→pending
// happens only through an explicit operator reset.
type ItemStatus string

const (
	ItemPending ItemStatus = "pending"
	ItemSent    ItemStatus = "sent"
	ItemFailed  ItemStatus = "failed"
)

// SendQueueItem is one durable delivery task. The table it lives in is
// both the backlog and the system of record for delivery outcomes.
type SendQueueItem struct {
	ID              string     `json:"id"`
	CampaignID      string     `json:"campaign_id"`
	ProspectID      string     `json:"prospect_id"`
	AccountID       string     `json:"account_id"`
	ActionType      ActionType `json:"action_type"`
	Message         string     `json:"message"`
	TargetReference string     `json:"target_reference"`
	Status          ItemStatus `json:"status"`
	ErrorMessage    *string    `json:"error_message,omitempty"`
	SentAt          *time.Time `json:"sent_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// Task is the push-transport payload delivered to the worker endpoint,
// base64-encoded JSON in the request body.
type Task struct {
	QueueID        string     `json:"queue_id"`
	CampaignID     string     `json:"campaign_id"`
	ProspectID     string     `json:"prospect_id"`
	AccountID      string     `json:"account_id"`
	Message        string     `json:"message"`
	LinkedInUserID string     `json:"linkedin_user_id"`
	MessageType    ActionType `json:"message_type"`
}

func (t *Task) Validate() error {
	if t.QueueID == "" {
		return ErrInvalidTask
	}
	if t.ProspectID == "" || t.AccountID == "" {
		return ErrInvalidTask
	}
	return nil
}

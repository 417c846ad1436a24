package amqp

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/plataformas-safastway/meu-din-em-casa-sub006/internal/core"
)

// Routing keys on the engine's direct exchange.
const (
	RoutingKeyOccurrenceGenerated = "occurrence.generated"
	RoutingKeyGenerateRequest     = "generate.request"
)

var errMissingFamily = errors.New("familyId is required")

// OccurrenceGeneratedEvent announces one materialized occurrence.
type OccurrenceGeneratedEvent struct {
	TransactionID string     `json:"transactionId"`
	FamilyID      string     `json:"familyId"`
	RecurringID   string     `json:"recurringId"`
	Period        string     `json:"period"`
	Date          core.Date  `json:"date"`
	Kind          core.Kind  `json:"kind"`
	Description   string     `json:"description"`
	Amount        core.Money `json:"amount"`
	Timestamp     time.Time  `json:"timestamp"`
}

// NewOccurrenceGeneratedEvent builds the event for tx
func NewOccurrenceGeneratedEvent(tx core.Transaction) *OccurrenceGeneratedEvent {
	return &OccurrenceGeneratedEvent{
		TransactionID: tx.ID,
		FamilyID:      tx.FamilyID,
		RecurringID:   tx.RecurringID,
		Period:        tx.Period,
		Date:          tx.Date,
		Kind:          tx.Kind,
		Description:   tx.Description,
		Amount:        tx.Amount,
		Timestamp:     time.Now().UTC(),
	}
}

func (m *OccurrenceGeneratedEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func OccurrenceGeneratedEventFromJSON(data []byte) (*OccurrenceGeneratedEvent, error) {
	var msg OccurrenceGeneratedEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// GenerateRequest asks the worker to run generation for one family. A zero
// AsOf means "today" in the worker's timezone.
type GenerateRequest struct {
	FamilyID    string    `json:"familyId"`
	AsOf        core.Date `json:"asOf"`
	RequestedAt time.Time `json:"requestedAt"`
}

func NewGenerateRequest(familyID string, asOf core.Date) *GenerateRequest {
	return &GenerateRequest{
		FamilyID:    familyID,
		AsOf:        asOf,
		RequestedAt: time.Now().UTC(),
	}
}

func (m *GenerateRequest) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// GenerateRequestFromJSON decodes and validates a request body.
func GenerateRequestFromJSON(data []byte) (*GenerateRequest, error) {
	var msg GenerateRequest
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	msg.FamilyID = strings.TrimSpace(msg.FamilyID)
	if msg.FamilyID == "" {
		return nil, errMissingFamily
	}
	return &msg, nil
}

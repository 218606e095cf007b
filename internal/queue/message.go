// Package queue carries orders from intake to the assignment worker over a
// durable RabbitMQ queue.
package queue

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"clinic-orders/internal/exceptions"
	"clinic-orders/internal/models"

	"github.com/goccy/go-json"
)

// timestamp layouts accepted for created_at, zoned first.
var createdAtLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// OrderMessage is the queued form of a RawOrder.
type OrderMessage struct {
	OrderID    int64     `json:"order_id"`
	HospitalID int64     `json:"hospital_id"`
	RawText    string    `json:"raw_text"`
	CreatedBy  int64     `json:"created_by"`
	CreatedAt  time.Time `json:"created_at"`
}

// FromRawOrder builds the message published for an accepted order.
func FromRawOrder(o models.RawOrder) OrderMessage {
	return OrderMessage{
		OrderID:    o.OrderID,
		HospitalID: o.HospitalID,
		RawText:    o.RawText,
		CreatedBy:  o.CreatedBy,
		CreatedAt:  o.CreatedAt,
	}
}

func (m OrderMessage) RawOrder() models.RawOrder {
	return models.RawOrder{
		OrderID:    m.OrderID,
		HospitalID: m.HospitalID,
		RawText:    m.RawText,
		CreatedBy:  m.CreatedBy,
		CreatedAt:  m.CreatedAt,
	}
}

func (m OrderMessage) Encode() ([]byte, error) {
	return json.Marshal(m)
}

type wireMessage struct {
	OrderID    *int64          `json:"order_id"`
	HospitalID json.RawMessage `json:"hospital_id"`
	RawText    string          `json:"raw_text"`
	CreatedBy  int64           `json:"created_by"`
	CreatedAt  string          `json:"created_at"`
}

// DecodeOrderMessage parses a queued order. hospital_id may be a number or a
// numeric string; created_at may omit the zone, in which case UTC is assumed.
func DecodeOrderMessage(body []byte) (*OrderMessage, error) {
	var w wireMessage
	if err := json.Unmarshal(body, &w); err != nil {
		return nil, exceptions.ErrInvalidMessage(err)
	}
	if w.OrderID == nil {
		return nil, exceptions.ErrInvalidMessage(fmt.Errorf("order_id is required"))
	}

	hospitalID, err := decodeFlexibleID(w.HospitalID)
	if err != nil {
		return nil, exceptions.ErrInvalidMessage(fmt.Errorf("hospital_id: %w", err))
	}

	msg := &OrderMessage{
		OrderID:    *w.OrderID,
		HospitalID: hospitalID,
		RawText:    w.RawText,
		CreatedBy:  w.CreatedBy,
	}
	if w.CreatedAt != "" {
		msg.CreatedAt, err = parseCreatedAt(w.CreatedAt)
		if err != nil {
			return nil, exceptions.ErrInvalidMessage(err)
		}
	}
	return msg, nil
}

func decodeFlexibleID(raw json.RawMessage) (int64, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return 0, fmt.Errorf("missing")
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, err
		}
		return strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	}
	var id int64
	if err := json.Unmarshal(raw, &id); err != nil {
		return 0, err
	}
	return id, nil
}

func parseCreatedAt(s string) (time.Time, error) {
	for _, layout := range createdAtLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("created_at: unrecognised timestamp %q", s)
}

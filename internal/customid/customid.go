// Package customid builds and parses the component custom ids that route
// interactions back to the right handler. Every id carries an ns_ prefix so
// unrelated components are ignored.
package customid

import (
	"strconv"
	"strings"
)

const (
	// Dashboard is the ticket-type select on the dashboard message.
	Dashboard = "ns_dashboard"
	// OrderType is the order-type select on the order hub message.
	OrderType = "ns_ordertype"
	// Actions is the claim/close select inside a ticket or order channel.
	Actions = "ns_actions"
	// UserToggle is the add/remove-user select inside a channel.
	UserToggle = "ns_usertoggle"

	orderPayPrefix = "ns_orderpay:"
	ratePrefix     = "ns_rate:"
)

// Action values carried by the Actions select.
const (
	ActionClaim = "claim"
	ActionClose = "close"
)

// OrderPay builds the custom id of the payment-method select that follows
// an order-type selection.
func OrderPay(orderType string) string {
	return orderPayPrefix + orderType
}

// ParseOrderPay extracts the order type from an order-payment custom id.
func ParseOrderPay(id string) (string, bool) {
	if !strings.HasPrefix(id, orderPayPrefix) {
		return "", false
	}
	return id[len(orderPayPrefix):], true
}

// RateRef identifies one rating button on a closure DM.
type RateRef struct {
	ChannelID string
	OpenerID  string
	HandlerID string
	Score     int
}

// Rate builds the custom id for one rating button. The opener id is embedded
// so the handler can reject ratings from anyone else.
func Rate(ref RateRef) string {
	return ratePrefix + ref.ChannelID + ":" + ref.OpenerID + ":" + ref.HandlerID + ":" + strconv.Itoa(ref.Score)
}

// ParseRate extracts a rating reference from a custom id.
func ParseRate(id string) (RateRef, bool) {
	if !strings.HasPrefix(id, ratePrefix) {
		return RateRef{}, false
	}
	parts := strings.Split(id[len(ratePrefix):], ":")
	if len(parts) != 4 {
		return RateRef{}, false
	}
	score, err := strconv.Atoi(parts[3])
	if err != nil || score < 1 || score > 5 {
		return RateRef{}, false
	}
	return RateRef{
		ChannelID: parts[0],
		OpenerID:  parts[1],
		HandlerID: parts[2],
		Score:     score,
	}, true
}

// Recognized reports whether a custom id belongs to this bot.
func Recognized(id string) bool {
	return strings.HasPrefix(id, "ns_")
}

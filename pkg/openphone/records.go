package openphone

import (
	"context"
	"encoding/json"
	"net/url"
)

// PhoneNumber is an OpenPhone workspace phone number.
type PhoneNumber struct {
	ID     string `json:"id"`
	Number string `json:"number"`
}

// Conversation is one message thread and its participant phone numbers.
type Conversation struct {
	ID           string   `json:"id"`
	Participants []string `json:"participants"`
}

// PhoneNumbers streams the workspace's phone numbers.
func PhoneNumbers(ctx context.Context, c Client) (<-chan PhoneNumber, <-chan error) {
	return Stream[PhoneNumber](ctx, c, "phone-numbers", nil)
}

// FirstPhoneNumber returns the workspace's primary phone number.
func FirstPhoneNumber(ctx context.Context, c Client) (PhoneNumber, error) {
	return First[PhoneNumber](ctx, c, "phone-numbers", nil)
}

// Conversations streams all conversations for a phone number.
func Conversations(ctx context.Context, c Client, phoneNumberID string) (<-chan Conversation, <-chan error) {
	params := url.Values{"phoneNumbers": {phoneNumberID}}
	return Stream[Conversation](ctx, c, "conversations", params)
}

// Calls streams the raw call records between a phone number and one
// participant group.
func Calls(ctx context.Context, c Client, phoneNumberID string, participants []string) (<-chan json.RawMessage, <-chan error) {
	return Stream[json.RawMessage](ctx, c, "calls", historyParams(phoneNumberID, participants))
}

// Messages streams the raw message records between a phone number and one
// participant group.
func Messages(ctx context.Context, c Client, phoneNumberID string, participants []string) (<-chan json.RawMessage, <-chan error) {
	return Stream[json.RawMessage](ctx, c, "messages", historyParams(phoneNumberID, participants))
}

func historyParams(phoneNumberID string, participants []string) url.Values {
	params := url.Values{"phoneNumberId": {phoneNumberID}}
	for _, p := range participants {
		params.Add("participants", p)
	}
	return params
}

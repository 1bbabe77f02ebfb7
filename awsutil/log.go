package awsutil

import (
	"github.com/mongodb/grip/message"
)

// MakeAPILogMessage creates a message to log information about an API call.
// Secret values in the input are never included.
func MakeAPILogMessage(op string, secretID string) message.Fields {
	msg := message.Fields{
		"message": "AWS API call",
		"op":      op,
	}
	if secretID != "" {
		msg["secret_id"] = secretID
	}
	return msg
}

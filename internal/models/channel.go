// internal/models/channel.go
package models

import (
	"fmt"
	"strings"
)

// Channel is the medium an outbound reply is delivered over.
type Channel string

const (
	ChannelWhatsApp Channel = "whatsapp"
	ChannelSMS      Channel = "sms"
)

// ParseChannel accepts any casing of a known channel name.
func ParseChannel(s string) (Channel, error) {
	switch Channel(strings.ToLower(strings.TrimSpace(s))) {
	case ChannelWhatsApp:
		return ChannelWhatsApp, nil
	case ChannelSMS:
		return ChannelSMS, nil
	}
	return "", fmt.Errorf("unknown channel %q", s)
}

func (c Channel) Valid() bool {
	return c == ChannelWhatsApp || c == ChannelSMS
}

func (c Channel) String() string {
	return string(c)
}

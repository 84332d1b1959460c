package enums

import (
	"fmt"
	"strings"
)

// ShopState reports whether a shop currently accepts orders.
type ShopState string

const (
	ShopStateOpen   ShopState = "open"
	ShopStateClosed ShopState = "closed"
)

var validShopStates = []ShopState{
	ShopStateOpen,
	ShopStateClosed,
}

func (s ShopState) String() string { return string(s) }

func (s ShopState) IsValid() bool { return oneOf(s, validShopStates) }

// ParseShopState accepts the canonical values plus the on/off and true/false
// toggles partner tooling tends to send.
func ParseShopState(value string) (ShopState, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "open", "on", "true", "1":
		return ShopStateOpen, nil
	case "closed", "off", "false", "0":
		return ShopStateClosed, nil
	}
	return "", fmt.Errorf("invalid shop state %q", value)
}

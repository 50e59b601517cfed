package payment

import (
	"errors"
	"fmt"
	"strings"
)

var ErrUnknownMethod = errors.New("unknown payment method")

// Method is how a member pays for a plan.
type Method string

const (
	MethodCash   Method = "CASH"
	MethodCard   Method = "CARD"
	MethodWallet Method = "WALLET"

	MethodSSLCommerz Method = "SSLCOMMERZ"
	MethodBkash      Method = "BKASH"
	MethodNagad      Method = "NAGAD"
	MethodStripe     Method = "STRIPE"
	MethodMidtrans   Method = "MIDTRANS"
)

// Channel says how a method settles.
type Channel int

const (
	// ChannelDirect settles inside the renewal call.
	ChannelDirect Channel = iota + 1
	// ChannelGateway settles only after the member returns from an external
	// payment page.
	ChannelGateway
)

func (c Channel) String() string {
	switch c {
	case ChannelDirect:
		return "direct"
	case ChannelGateway:
		return "gateway"
	}
	return "unknown"
}

// Channel classifies the method. Every Method constant must be listed here.
func (m Method) Channel() (Channel, error) {
	switch m {
	case MethodCash, MethodCard, MethodWallet:
		return ChannelDirect, nil
	case MethodSSLCommerz, MethodBkash, MethodNagad, MethodStripe, MethodMidtrans:
		return ChannelGateway, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownMethod, string(m))
}

// ParseMethod normalises user input such as "stripe" or " Cash ".
func ParseMethod(s string) (Method, error) {
	m := Method(strings.ToUpper(strings.TrimSpace(s)))
	if _, err := m.Channel(); err != nil {
		return "", err
	}
	return m, nil
}

// Methods lists every supported method in display order.
func Methods() []Method {
	return []Method{
		MethodCash, MethodCard, MethodWallet,
		MethodSSLCommerz, MethodBkash, MethodNagad, MethodStripe, MethodMidtrans,
	}
}

package payment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMethod_Channel(t *testing.T) {
	tests := []struct {
		method Method
		want   Channel
	}{
		{MethodCash, ChannelDirect},
		{MethodCard, ChannelDirect},
		{MethodWallet, ChannelDirect},
		{MethodSSLCommerz, ChannelGateway},
		{MethodBkash, ChannelGateway},
		{MethodNagad, ChannelGateway},
		{MethodStripe, ChannelGateway},
		{MethodMidtrans, ChannelGateway},
	}

	for _, tt := range tests {
		t.Run(string(tt.method), func(t *testing.T) {
			ch, err := tt.method.Channel()
			require.NoError(t, err)
			assert.Equal(t, tt.want, ch)
		})
	}
}

func TestMethods_AllClassified(t *testing.T) {
	for _, m := range Methods() {
		_, err := m.Channel()
		assert.NoError(t, err, m)
	}
}

func TestMethod_UnknownChannel(t *testing.T) {
	_, err := Method("PAYPAL").Channel()
	assert.ErrorIs(t, err, ErrUnknownMethod)
}

func TestParseMethod(t *testing.T) {
	m, err := ParseMethod(" stripe ")
	require.NoError(t, err)
	assert.Equal(t, MethodStripe, m)

	m, err = ParseMethod("Cash")
	require.NoError(t, err)
	assert.Equal(t, MethodCash, m)

	_, err = ParseMethod("")
	assert.ErrorIs(t, err, ErrUnknownMethod)

	_, err = ParseMethod("cheque")
	assert.ErrorIs(t, err, ErrUnknownMethod)
}

func TestChannel_String(t *testing.T) {
	assert.Equal(t, "direct", ChannelDirect.String())
	assert.Equal(t, "gateway", ChannelGateway.String())
	assert.Equal(t, "unknown", Channel(0).String())
}

package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestFormat(t *testing.T) {
	krw := decimal.RequireFromString("74300.4")
	assert.Equal(t, "74300", Format(krw, "KRW"))

	usd := decimal.RequireFromString("227.625")
	assert.Equal(t, "227.63", Format(usd, "USD"))

	assert.Equal(t, "0.00", Format(decimal.Zero, "USD"))
	assert.Equal(t, "0", Format(decimal.Zero, "KRW"))
}

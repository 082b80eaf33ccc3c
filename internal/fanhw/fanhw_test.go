package fanhw

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nexthop-ai/sonic-platform-thermalctl/internal/nhlog"
)

func testLogger() *nhlog.Logger {
	return nhlog.New("fanhw-test", nhlog.LevelError)
}

func TestIPMIFanBank_FansReturnsNamedSlots(t *testing.T) {
	bank := NewIPMIFanBank(testLogger(), "0x3a", "0xd6", 3, "0x64", 10)
	fans := bank.Fans([]string{"FAN1", "FAN2"})
	assert := assert.New(t)
	assert.Len(fans, 3)
	assert.Equal("FAN1", fans[0].Name())
	assert.Equal("FAN2", fans[1].Name())
	assert.Equal("fan2", fans[2].Name())
}

func TestIPMIFan_OutOfRangeSlotReturnsFalse(t *testing.T) {
	bank := NewIPMIFanBank(testLogger(), "0x3a", "0xd6", 2, "0x64", 10)
	fan := &IPMIFan{name: "ghost", bank: bank, slot: 5}
	assert.False(t, fan.SetSpeed(50))
}

func TestIPMIFanBank_SetSlotPanicsOnInvalidPercent(t *testing.T) {
	bank := NewIPMIFanBank(testLogger(), "0x3a", "0xd6", 1, "0x64", 10)
	fan := bank.Fans(nil)[0]
	assert.Panics(t, func() { fan.SetSpeed(150) })
}

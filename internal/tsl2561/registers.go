package tsl2561

// DefaultAddress is the TSL2561 I2C address with the ADDR SEL pin floating.
// Page 7: https://cdn-learn.adafruit.com/downloads/pdf/tsl2561.pdf
const DefaultAddress uint16 = 0x39

// Command register bits. Every register access goes through the command
// register, so these are OR'd onto the low nibble of the target register.
const (
	cmdSelect         byte = 0x80 // select command register
	cmdClearInterrupt byte = 0x40 // clear any pending interrupt
	cmdWordProtocol   byte = 0x20 // read/write word rather than byte
	cmdBlockProtocol  byte = 0x10 // block read/write (unused)
)

// Register map.
const (
	regControl       byte = 0x00
	regTiming        byte = 0x01
	regThreshLowLow  byte = 0x02
	regThreshLowHigh byte = 0x03
	regThreshHighLow byte = 0x04
	regThreshHighHi  byte = 0x05
	regInterruptCtrl byte = 0x06
	regID            byte = 0x0A
	regData0Low      byte = 0x0C
	regData0High     byte = 0x0D
	regData1Low      byte = 0x0E
	regData1High     byte = 0x0F
)

const (
	// controlPowerUp enables the ADC (CONTROL register POWER field).
	controlPowerUp byte = 0x03

	// idPartMask selects the part-number nibble of the ID register;
	// idPartTSL2561 is the value a TSL2561 reports there. The low nibble
	// is the silicon revision and varies.
	idPartMask    byte = 0xF0
	idPartTSL2561 byte = 0x50
)

// command builds the command byte for a register access: select the command
// register, clear pending interrupts, word protocol, target register in the
// low nibble.
func command(reg byte) byte {
	return cmdSelect | cmdClearInterrupt | cmdWordProtocol | (0x0F & reg)
}

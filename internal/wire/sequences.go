package wire

// JTAGToDormant and DormantToSWD are ARM-specified literal bit sequences
// that must be reproduced byte-for-byte (§6). They are listed here in the
// documented byte order; each byte is still clocked onto SWDIO LSB-first.
var (
	JTAGToDormant = []byte{
		0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xBC, 0xE3,
	}

	DormantToSWD = []byte{
		0xFF, 0x92, 0xF3, 0x09, 0x62, 0x95, 0x2D, 0x85, 0x86, 0xE9, 0xAF, 0xDD,
		0xE3, 0xA2, 0x0E, 0xBC, 0x19, 0xA0, 0xF1, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF,
		0xFF, 0xFF, 0xFF, 0xFF, 0x00,
	}
)

package dm

import "github.com/amgspendingspree/pico2-swd-riscv/errs"

// ReadMem16 and ReadMem8 are implemented as read-modify over an aligned
// 32-bit SBA word, little-endian byte ordering (the target's native
// endianness).
func (d *DM) ReadMem16(addr uint32) (uint16, error) {
	if addr%2 != 0 {
		return 0, errs.New(errs.Alignment, "dm.ReadMem16", "addr=%#x", addr)
	}
	word, shift, err := d.readAlignedWord(addr, "dm.ReadMem16")
	if err != nil {
		return 0, err
	}
	return uint16(word >> shift), nil
}

func (d *DM) ReadMem8(addr uint32) (uint8, error) {
	word, shift, err := d.readAlignedWord(addr, "dm.ReadMem8")
	if err != nil {
		return 0, err
	}
	return uint8(word >> shift), nil
}

func (d *DM) WriteMem16(addr uint32, value uint16) error {
	if addr%2 != 0 {
		return errs.New(errs.Alignment, "dm.WriteMem16", "addr=%#x", addr)
	}
	base := addr &^ 3
	shift := (addr % 4) * 8
	word, err := d.ReadMem32(base)
	if err != nil {
		return errs.Wrap(errs.Of(err), "dm.WriteMem16", err)
	}
	mask := uint32(0xFFFF) << shift
	word = (word &^ mask) | (uint32(value) << shift)
	return d.WriteMem32(base, word)
}

func (d *DM) WriteMem8(addr uint32, value uint8) error {
	base := addr &^ 3
	shift := (addr % 4) * 8
	word, err := d.ReadMem32(base)
	if err != nil {
		return errs.Wrap(errs.Of(err), "dm.WriteMem8", err)
	}
	mask := uint32(0xFF) << shift
	word = (word &^ mask) | (uint32(value) << shift)
	return d.WriteMem32(base, word)
}

func (d *DM) readAlignedWord(addr uint32, op string) (word uint32, shift uint32, err error) {
	base := addr &^ 3
	shift = (addr % 4) * 8
	word, err = d.ReadMem32(base)
	if err != nil {
		return 0, 0, errs.Wrap(errs.Of(err), op, err)
	}
	return word, shift, nil
}

// ReadBlock32 reads count consecutive aligned 32-bit words starting at
// addr.
func (d *DM) ReadBlock32(addr uint32, count int) ([]uint32, error) {
	out := make([]uint32, count)
	for i := 0; i < count; i++ {
		v, err := d.ReadMem32(addr + uint32(i*4))
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// WriteBlock32 writes consecutive aligned 32-bit words starting at addr.
func (d *DM) WriteBlock32(addr uint32, words []uint32) error {
	for i, v := range words {
		if err := d.WriteMem32(addr+uint32(i*4), v); err != nil {
			return err
		}
	}
	return nil
}

// Upload writes each word to memory and reads it back for verification.
func (d *DM) Upload(addr uint32, words []uint32) error {
	for i, v := range words {
		a := addr + uint32(i*4)
		if err := d.WriteMem32(a, v); err != nil {
			return err
		}
		got, err := d.ReadMem32(a)
		if err != nil {
			return err
		}
		if got != v {
			return errs.New(errs.Verify, "dm.Upload", "addr=%#x want=%#08x got=%#08x", a, v, got)
		}
	}
	return nil
}

// ExecuteCode uploads words, halts the hart, sets PC to addr, verifies
// the PC write, and resumes.
func (d *DM) ExecuteCode(hart int, addr uint32, words []uint32) error {
	if err := d.Upload(addr, words); err != nil {
		return err
	}
	if err := d.Halt(hart); err != nil && errs.Of(err) != errs.AlreadyHalted {
		return err
	}
	if err := d.WritePC(hart, addr); err != nil {
		return err
	}
	got, err := d.ReadPC(hart)
	if err != nil {
		return err
	}
	if got != addr {
		return errs.New(errs.Verify, "dm.ExecuteCode", "pc=%#08x want=%#08x", got, addr)
	}
	return d.Resume(hart)
}

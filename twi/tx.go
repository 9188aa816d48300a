package twi

import (
	"tinygo.org/x/drivers"

	"walkduino-go/errcode"
)

var _ drivers.I2C = (*Controller)(nil)

// Tx performs one complete transaction in the shape tinygo drivers expect: a
// write of w, a read into r, or a write followed by a repeated-start read when
// both are given. It waits for the bus to release and returns the
// transaction outcome.
func (c *Controller) Tx(addr uint16, w, r []byte) error {
	const op = "twi.tx"
	if addr == 0 || addr > 0x7F {
		return errcode.Wrap(op, errcode.InvalidAddress)
	}
	a := uint8(addr)
	switch {
	case len(w) > 0:
		if err := c.BeginTransmission(a); err != nil {
			return err
		}
		if _, err := c.Write(w); err != nil {
			return &errcode.E{C: errcode.Of(err), Op: op, Err: err}
		}
		if err := c.EndTransmission(len(r)); err != nil {
			return err
		}
	case len(r) > 0:
		if err := c.RequestFrom(a, len(r)); err != nil {
			return err
		}
	default:
		return nil
	}

	n := c.Available()
	c.waitReady()
	if err := c.TransmissionResult(); err != nil {
		return &errcode.E{C: errcode.Of(err), Op: op, Err: err}
	}
	if n < len(r) {
		return &errcode.E{C: errcode.Error, Op: op, Msg: "short read"}
	}
	_, err := c.Read(r)
	return err
}

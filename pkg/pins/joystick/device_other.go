// +build !linux

package joystick

import "errors"

type device struct {
	name    string
	buttons uint8
}

func openDevice(int) (*device, error) {
	return nil, errors.New("joystick is only supported on linux")
}

func (d *device) readButton() (int, bool, error) {
	return 0, false, errors.New("joystick is only supported on linux")
}

func (d *device) close() error {
	return nil
}

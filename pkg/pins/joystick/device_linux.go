// +build linux

package joystick

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"syscall"
	"unsafe"
)

const (
	iocGBUTTONS uint = 0x80016a12
	iocGNAME    uint = 0x80ff6a13

	evINIT uint8 = 0x80
	evBTN  uint8 = 0x01
)

// jsEvent is struct js_event from linux/joystick.h.
type jsEvent struct {
	Time   uint32
	Value  int16
	Type   uint8
	Number uint8
}

type device struct {
	file    *os.File
	name    string
	buttons uint8
}

func openDevice(index int) (*device, error) {
	f, err := os.OpenFile(fmt.Sprintf("/dev/input/js%d", index), os.O_RDONLY, 0666)
	if err != nil {
		return nil, err
	}
	d := &device{file: f}
	errno := d.ioctl(iocGBUTTONS, unsafe.Pointer(&d.buttons))
	if errno == 0 {
		var buf [256]byte
		if errno = d.ioctl(iocGNAME, unsafe.Pointer(&buf)); errno == 0 {
			if pos := bytes.IndexByte(buf[:], 0); pos >= 0 {
				d.name = string(buf[:pos])
			} else {
				d.name = string(buf[:])
			}
		}
	}
	if errno != 0 {
		f.Close()
		return nil, errno
	}
	return d, nil
}

// readButton blocks until the next button event. Axis events are skipped.
func (d *device) readButton() (index int, pressed bool, err error) {
	buf := make([]byte, 8)
	for {
		if _, err = d.file.Read(buf); err != nil {
			return
		}
		var ev jsEvent
		if err = binary.Read(bytes.NewReader(buf), binary.LittleEndian, &ev); err != nil {
			return
		}
		if ev.Type&^evINIT == evBTN {
			return int(ev.Number), ev.Value != 0, nil
		}
	}
}

func (d *device) close() error {
	return d.file.Close()
}

func (d *device) ioctl(req uint, ptr unsafe.Pointer) syscall.Errno {
	_, _, err := syscall.Syscall(syscall.SYS_IOCTL, uintptr(d.file.Fd()), uintptr(req), uintptr(ptr))
	return err
}

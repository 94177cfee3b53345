package display

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"syscall"

	"golang.org/x/sys/unix"
)

// PackTable serializes a transfer table into the wire layout gamma
// protocols expect: all red samples, then green, then blue, each as a
// little-endian uint16.
func PackTable(t *TransferTable) []byte {
	buf := bytes.NewBuffer(make([]byte, 0, (len(t.Red)+len(t.Green)+len(t.Blue))*2))
	for _, v := range t.Red {
		_ = binary.Write(buf, binary.LittleEndian, v)
	}
	for _, v := range t.Green {
		_ = binary.Write(buf, binary.LittleEndian, v)
	}
	for _, v := range t.Blue {
		_ = binary.Write(buf, binary.LittleEndian, v)
	}
	return buf.Bytes()
}

// UnpackTable reverses PackTable for a ramp of the given size. Returns
// an error when the payload does not hold exactly three channels.
func UnpackTable(data []byte, size int) (*TransferTable, error) {
	if len(data) != size*6 {
		return nil, fmt.Errorf("gamma payload is %d bytes, want %d", len(data), size*6)
	}
	t := &TransferTable{
		Red:   make([]uint16, size),
		Green: make([]uint16, size),
		Blue:  make([]uint16, size),
	}
	r := bytes.NewReader(data)
	for _, channel := range [][]uint16{t.Red, t.Green, t.Blue} {
		if err := binary.Read(r, binary.LittleEndian, channel); err != nil {
			return nil, fmt.Errorf("decode gamma channel: %w", err)
		}
	}
	t.Peak = tablePeak(t)
	return t, nil
}

// TableFd writes packed ramp bytes into an anonymous memfd and returns
// the fd positioned at offset 0, ready to hand to the compositor. The
// caller owns the fd and must close it.
func TableFd(data []byte) (int, error) {
	fd, err := unix.MemfdCreate("gamma-ramp", 0)
	if err != nil {
		return -1, fmt.Errorf("memfd_create: %w", err)
	}

	if err := syscall.Ftruncate(fd, int64(len(data))); err != nil {
		syscall.Close(fd)
		return -1, fmt.Errorf("ftruncate: %w", err)
	}

	dupFd, err := syscall.Dup(fd)
	if err != nil {
		syscall.Close(fd)
		return -1, fmt.Errorf("dup: %w", err)
	}
	f := os.NewFile(uintptr(dupFd), "gamma")
	defer f.Close()

	n, err := f.Write(data)
	if err != nil || n != len(data) {
		syscall.Close(fd)
		return -1, fmt.Errorf("write gamma: %w (n=%d want=%d)", err, n, len(data))
	}

	if _, err := syscall.Seek(fd, 0, 0); err != nil {
		syscall.Close(fd)
		return -1, fmt.Errorf("seek: %w", err)
	}
	return fd, nil
}

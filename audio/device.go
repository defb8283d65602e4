package audio

import (
	"fmt"
	"os"

	"golang.org/x/term"
)

// SelectDevice prompts for a microphone on stdin. With a single device
// there is nothing to choose, so it returns immediately.
func SelectDevice(ctx Context) (*DeviceInfo, error) {
	devices, err := ctx.Devices()
	if err != nil {
		return nil, fmt.Errorf("enumerating devices: %w", err)
	}
	if len(devices) == 0 {
		return nil, fmt.Errorf("no capture devices found")
	}
	if len(devices) == 1 {
		return &devices[0], nil
	}

	fd := int(os.Stdin.Fd())
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return nil, fmt.Errorf("setting raw mode: %w", err)
	}
	defer term.Restore(fd, oldState)

	cursor := 0
	render := func() {
		fmt.Print("\r\x1b[J")
		fmt.Print("Select microphone (↑/↓, Enter to confirm):\r\n\r\n")
		for i, d := range devices {
			tag := ""
			if IsBluetooth(d.Name) {
				tag = " \x1b[33m[⚠ Lower audio quality]\x1b[0m"
			}
			if i == cursor {
				fmt.Printf("  \x1b[1;36m▶ %s%s\x1b[0m\r\n", d.Name, tag)
			} else {
				fmt.Printf("    %s%s\r\n", d.Name, tag)
			}
		}
	}
	render()

	up := func() {
		if cursor > 0 {
			cursor--
		}
	}
	down := func() {
		if cursor < len(devices)-1 {
			cursor++
		}
	}

	buf := make([]byte, 3)
	for {
		n, err := os.Stdin.Read(buf)
		if err != nil {
			return nil, fmt.Errorf("reading input: %w", err)
		}

		switch {
		case n == 1 && buf[0] == 13: // Enter
			fmt.Print("\r\n")
			term.Restore(fd, oldState)
			return &devices[cursor], nil
		case n == 1 && buf[0] == 3: // Ctrl+C
			fmt.Print("\r\n")
			term.Restore(fd, oldState)
			os.Exit(130)
		case n == 1 && buf[0] == 'k':
			up()
		case n == 1 && buf[0] == 'j':
			down()
		case n == 3 && buf[0] == 0x1b && buf[1] == '[' && buf[2] == 'A':
			up()
		case n == 3 && buf[0] == 0x1b && buf[1] == '[' && buf[2] == 'B':
			down()
		}

		fmt.Printf("\x1b[%dA", len(devices)+2)
		render()
	}
}

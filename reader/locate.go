package reader

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"

	"go.bug.st/serial/enumerator"
)

// listPorts is replaced in tests.
var listPorts = enumerator.GetDetailedPortsList

// portLocator finds serial ports through the USB enumerator, which also
// supplies the device serial number.
func portLocator(cfg Config) locator {
	return locator{
		serials: true,
		find: func(want int) (port, bool, error) {
			ports, err := listPorts()
			if err != nil {
				return port{}, false, fmt.Errorf("list ports: %w", err)
			}
			if p, ok := matchPort(ports, cfg, want); ok {
				return p, true, nil
			}

			// Non-USB ports (e.g. /dev/serial0) are not enumerated with details.
			if want <= 0 && cfg.Device != "" {
				if _, err := os.Stat(cfg.Device); err == nil {
					return port{path: cfg.Device}, true, nil
				}
			}
			return port{}, false, nil
		},
	}
}

// matchPort picks the first port satisfying the device path, USB ID and serial filters.
func matchPort(ports []*enumerator.PortDetails, cfg Config, want int) (port, bool) {
	for _, pd := range ports {
		if cfg.Device != "" && pd.Name != cfg.Device {
			continue
		}
		if cfg.Device == "" && !pd.IsUSB {
			continue
		}
		if cfg.VID != "" && !strings.EqualFold(pd.VID, cfg.VID) {
			continue
		}
		if cfg.PID != "" && !strings.EqualFold(pd.PID, cfg.PID) {
			continue
		}

		sn, err := strconv.Atoi(strings.TrimSpace(pd.SerialNumber))
		hasSerial := err == nil && sn > 0
		if want > 0 && (!hasSerial || sn != want) {
			continue
		}
		return port{path: pd.Name, serial: sn, hasSerial: hasSerial}, true
	}
	return port{}, false
}

// pathLocator waits for a fixed device node to appear.
func pathLocator(path string) locator {
	return locator{
		find: func(int) (port, bool, error) {
			if _, err := os.Stat(path); err != nil {
				if os.IsNotExist(err) {
					return port{}, false, nil
				}
				return port{}, false, err
			}
			return port{path: path}, true, nil
		},
	}
}

// fifoLocator creates the named pipe if it does not exist yet.
func fifoLocator(path string) locator {
	return locator{
		find: func(int) (port, bool, error) {
			fi, err := os.Stat(path)
			if os.IsNotExist(err) {
				if err := syscall.Mkfifo(path, 0666); err != nil {
					return port{}, false, fmt.Errorf("create named pipe %s: %w", path, err)
				}
				return port{path: path}, true, nil
			}
			if err != nil {
				return port{}, false, err
			}
			if fi.Mode()&os.ModeNamedPipe == 0 {
				return port{}, false, fmt.Errorf("%s is not a named pipe", path)
			}
			return port{path: path}, true, nil
		},
	}
}

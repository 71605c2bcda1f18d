// Package driver holds the registry of wire format drivers. Drivers
// register themselves from init and are selected by the magic that starts
// a message.
package driver

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/d21d3q/gobufr/internal/codec"
	"github.com/d21d3q/gobufr/internal/errs"
	"github.com/d21d3q/gobufr/internal/message"
	"github.com/d21d3q/gobufr/internal/table"
)

// Detection contains the information required to pick a driver.
type Detection struct {
	Magic  string
	Format message.Format
}

// TableSource resolves table identities. *table.Cache implements it.
type TableSource interface {
	Get(table.ID) (*table.Tables, error)
}

// Env is what a driver needs besides the message itself.
type Env struct {
	// Source names the input in parse errors.
	Source string
	Tables TableSource
	Codec  codec.Options
}

// Driver decodes and encodes one wire format.
type Driver interface {
	Name() string
	Decode(ctx context.Context, raw []byte, env Env) (*message.Message, error)
	Encode(ctx context.Context, m *message.Message, env Env) ([]byte, error)
}

var (
	regMu    sync.RWMutex
	registry []registeredDriver
)

type registeredDriver struct {
	detect Detection
	driver Driver
}

// Register stores a driver/detection pair in memory.
func Register(det Detection, drv Driver) {
	regMu.Lock()
	defer regMu.Unlock()
	registry = append(registry, registeredDriver{detect: det, driver: drv})
}

// Lookup returns the driver for a format.
func Lookup(f message.Format) (Driver, error) {
	regMu.RLock()
	defer regMu.RUnlock()
	for _, rd := range registry {
		if rd.detect.Format == f {
			return rd.driver, nil
		}
	}
	return nil, fmt.Errorf("%w: no driver for format %s", errs.ErrUnimplemented, f)
}

// Detect returns the driver whose magic starts raw, ignoring leading
// whitespace.
func Detect(raw []byte, source string) (Driver, message.Format, error) {
	trimmed := bytes.TrimLeft(raw, " \t\r\n")
	regMu.RLock()
	defer regMu.RUnlock()
	for _, rd := range registry {
		if bytes.HasPrefix(trimmed, []byte(rd.detect.Magic)) {
			return rd.driver, rd.detect.Format, nil
		}
	}
	return nil, 0, errs.Parsef(source, len(raw)-len(trimmed), "unrecognized message start")
}

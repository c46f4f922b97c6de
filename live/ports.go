package live

import (
	"errors"
	"fmt"
	"strings"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
)

var ErrNoPort = errors.New("no matching MIDI port")

// Find returns the first port whose name starts with prefix. An empty prefix
// takes the first port.
func Find[T fmt.Stringer](ports []T, prefix string) (T, error) {
	for _, p := range ports {
		if strings.HasPrefix(p.String(), prefix) {
			return p, nil
		}
	}
	var zero T
	if prefix == "" {
		return zero, ErrNoPort
	}
	return zero, fmt.Errorf("%w starting with %q", ErrNoPort, prefix)
}

// Listen opens the input port named by prefix and passes its messages to
// r.Handle until stop is called.
func Listen(driver drivers.Driver, prefix string, r *Router) (stop func(), err error) {
	ins, err := driver.Ins()
	if err != nil {
		return nil, fmt.Errorf("listing MIDI inputs: %w", err)
	}
	in, err := Find(ins, prefix)
	if err != nil {
		return nil, err
	}
	if err := in.Open(); err != nil {
		return nil, fmt.Errorf("opening MIDI input failed: %w", err)
	}
	stop, err = midi.ListenTo(in, r.Handle)
	if err != nil {
		in.Close()
		return nil, fmt.Errorf("listening to %v: %w", in, err)
	}
	return func() {
		stop()
		in.Close()
	}, nil
}

// OpenOut opens the output port named by prefix.
func OpenOut(driver drivers.Driver, prefix string) (drivers.Out, error) {
	outs, err := driver.Outs()
	if err != nil {
		return nil, fmt.Errorf("listing MIDI outputs: %w", err)
	}
	out, err := Find(outs, prefix)
	if err != nil {
		return nil, err
	}
	if err := out.Open(); err != nil {
		return nil, fmt.Errorf("opening MIDI output failed: %w", err)
	}
	return out, nil
}

// Names lists the input and output ports of driver.
func Names(driver drivers.Driver) (ins, outs []string, err error) {
	i, err := driver.Ins()
	if err != nil {
		return nil, nil, err
	}
	o, err := driver.Outs()
	if err != nil {
		return nil, nil, err
	}
	for _, p := range i {
		ins = append(ins, p.String())
	}
	for _, p := range o {
		outs = append(outs, p.String())
	}
	return ins, outs, nil
}

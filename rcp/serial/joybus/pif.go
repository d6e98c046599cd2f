package joybus

// Size of the PIF RAM, the last byte is the PIF command.
const PIFRAMSize = 64

// Number of controller ports. The next channel is the cartridge.
const Ports = 4

// InputSource provides the controller states polled by a game.
type InputSource interface {
	// Present reports if a controller is plugged into port.
	Present(port int) bool

	// Poll returns the current state of the controller in port.
	Poll(port int) Sample
}

// PIF executes the joybus commands a game wrote to the PIF RAM.
type PIF struct {
	Input InputSource
	Paks  [Ports]*ControllerPak
}

// Process executes all commands in ram and stores the responses in place.
func (p *PIF) Process(ram []byte) {
	if len(ram) > PIFRAMSize {
		ram = ram[:PIFRAMSize]
	}
	end := len(ram) - 1
	channel := 0
	for i := 0; i < end; {
		switch ram[i] {
		case CtrlAbort:
			return
		case CtrlNOP, CtrlReset:
			i++
			continue
		case CtrlSkip:
			channel++
			i++
			continue
		}
		if i+1 >= end || ram[i+1] == CtrlAbort {
			return
		}
		cmd := Command(ram[i:])
		n := 2 + int(cmd.txSize()) + int(cmd.rxSize())
		if i+n > end {
			return
		}
		cmd = cmd[:n]
		if ram[i]&flagSkip == 0 {
			if channel < Ports {
				p.controller(channel, cmd)
			} else {
				cmd.setError(flagNoResponse)
			}
		}
		i += n
		channel++
	}
}

func (p *PIF) controller(port int, cmd Command) {
	if p.Input == nil || !p.Input.Present(port) {
		cmd.setError(flagNoResponse)
		return
	}
	tx, rx := cmd.txData(), cmd.rxData()
	switch cmd.id() {
	case idInfo, idReset:
		if len(rx) < 3 {
			break
		}
		rx[0] = byte(Controller >> 8)
		rx[1] = byte(Controller & 0xff)
		rx[2] = PakNotInserted
		if p.Paks[port] != nil {
			rx[2] = PakInserted
		}
		return
	case idControllerState:
		s := p.Input.Poll(port)
		copy(rx, s[:])
		return
	case idReadPak:
		if len(tx) < 3 || len(rx) < 33 {
			break
		}
		pc := PakCommand{cmd}
		data := rx[:32]
		if pak := p.Paks[port]; pak != nil {
			pak.Read(pc.address(), data)
		} else {
			clear(data)
		}
		rx[32] = p.pakResponse(pc, data)
		return
	case idWritePak:
		if len(tx) < 35 || len(rx) < 1 {
			break
		}
		pc := PakCommand{cmd}
		data := tx[3:35]
		if pak := p.Paks[port]; pak != nil {
			pak.Write(pc.address(), data)
		}
		rx[0] = p.pakResponse(pc, data)
		return
	}
	cmd.setError(flagInvalidResponse)
}

// pakResponse returns the data checksum, inverted if the address checksum
// didn't match.
func (p *PIF) pakResponse(pc PakCommand, data []byte) byte {
	csum := pakChecksum(data)
	if addr := pc.address(); pakAddress(addr) != addr {
		csum = ^csum
	}
	return csum
}

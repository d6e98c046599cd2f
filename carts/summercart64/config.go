package summercart64

type config uint32

const (
	CfgBootloaderSwitch config = iota
	CfgROMWriteEnable
	CfgROMShadowEnable
	CfgDDMode
	CfgISVAddress
	CfgBootMode
	CfgSaveType
	CfgCICSeed
	CfgTVType
	CfgDDSDEnable
	CfgDDDriveType
	CfgDDDiskState
	CfgButtonState
	CfgButtonMode
	CfgROMExtendedEnable
)

// configGet returns the value of an emulated config option. Only the options
// queried by libcart are supported.
func (c *Cart) configGet(option config) (value uint32, ok bool) {
	switch option {
	case CfgROMWriteEnable:
		return c.state.CfgROMWrite, true
	case CfgDDMode, CfgSaveType:
		return 0, true
	}
	return 0, false
}

// configSet sets an emulated config option and returns its previous value.
func (c *Cart) configSet(option config, value uint32) (old uint32, ok bool) {
	switch option {
	case CfgROMWriteEnable:
		old = c.state.CfgROMWrite
		c.state.CfgROMWrite = 0
		if value != 0 {
			c.state.CfgROMWrite = 1
		}
		return old, true
	}
	return 0, false
}

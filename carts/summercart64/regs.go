package summercart64

import "github.com/clktmr/mupen64/rcp/cpu"

// Physical address windows of the cartridge.
const (
	RegsAddr   cpu.Addr = 0x1fff_0000
	RegsSize            = 0x20
	BufferAddr cpu.Addr = 0x1ffe_0000
	BufferSize          = 8192
	ROMAddr    cpu.Addr = 0x1000_0000
	ROMSize             = 0x0400_0000
)

// Register offsets, decoded from the low 16 bits of the address.
const (
	regStatus     = 0x00
	regData0      = 0x04
	regData1      = 0x08
	regIdentifier = 0x0c
	regKey        = 0x10
)

const identifier = 0x53437632 // "SCv2"

// Values written to the key register.
const (
	keyUnlock1 = 0x5f554e4c // "_UNL"
	keyUnlock2 = 0x4f434b5f // "OCK_"
	keyLock    = 0xffffffff
)

type status uint32

const (
	statusBusy       status = 1 << 31
	statusError      status = 1 << 30
	statusIrqPending status = 1 << 29
	statusCmdIdMask  status = 0xff
)

type command status

const (
	cmdIdentifierGet    command = 'v'
	cmdVersionGet       command = 'V'
	cmdConfigGet        command = 'c'
	cmdConfigSet        command = 'C'
	cmdSettingGet       command = 'a'
	cmdSettingSet       command = 'A'
	cmdTimeGet          command = 't'
	cmdTimeSet          command = 'T'
	cmdUSBRead          command = 'm'
	cmdUSBWrite         command = 'M'
	cmdUSBReadStatus    command = 'u'
	cmdUSBWriteStatus   command = 'U'
	cmdSDCardOp         command = 'i'
	cmdSDSectorSet      command = 'I'
	cmdSDRead           command = 's'
	cmdSDWrite          command = 'S'
	cmdDiskMappingSet   command = 'D'
	cmdWritebackPending command = 'w'
	cmdWritebackSDInfo  command = 'W'
	cmdFlashProgram     command = 'K'
	cmdFlashWaitBusy    command = 'p'
	cmdFlashEraseBlock  command = 'P'
	cmdDiagnosticGet    command = '%'
)

// Operations of the cmdSDCardOp command, passed in data1.
const (
	sdOpDeinit      = 0
	sdOpInit        = 1
	sdOpGetStatus   = 2
	sdOpGetInfo     = 3
	sdOpByteSwapOn  = 4
	sdOpByteSwapOff = 5
)

// Upper bound of sectors in a single transfer.
const maxSectors = 131072

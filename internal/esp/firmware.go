// Package esp emulates the ESP co-processor firmware of the Rainbow board.
//
// The cartridge exchanges framed messages with it: a length byte followed by
// that many payload bytes, the first payload byte being a command (towards
// the firmware) or a reply code (from it).
package esp

import (
	"context"
	"fmt"

	"github.com/retroenv/retrogolib/log"
)

// Commands sent by the cartridge.
const (
	CmdGetStatus byte = iota
	CmdDebugGetLevel
	CmdDebugSetLevel
	CmdDebugLog
	CmdClearBuffers
	CmdDropFromESP
	CmdGetFirmwareVersion
	CmdFactoryReset
	CmdRestart
	CmdWifiGetStatus
	CmdWifiGetSSID
	CmdWifiGetIP
	CmdWifiGetConfig
	CmdWifiSetConfig
	CmdAPGetSSID
	CmdAPGetIP
	CmdRndGetByte
	CmdRndGetByteRange
	CmdRndGetWord
	CmdRndGetWordRange
	CmdServerGetStatus
	CmdServerPing
	CmdServerSetProtocol
	CmdServerGetSettings
	CmdServerGetSavedSettings
	CmdServerSetSavedSettings
	CmdServerRestoreSavedSettings
	CmdServerSetSettings
	CmdServerConnect
	CmdServerDisconnect
	CmdServerSendMessage
)

// Replies sent by the firmware.
const (
	RplReady byte = iota
	RplDebugLevel
	RplFirmwareVersion
	RplFactoryReset
	RplWifiStatus
	RplSSID
	RplIPAddress
	RplWifiConfig
	RplRndByte
	RplRndWord
	RplServerStatus
	RplServerPing
	RplServerSettings
	RplMessageFromServer
)

// Server status values carried by RplServerStatus.
const (
	ServerDisconnected byte = 0
	ServerConnected    byte = 1
)

// Version is reported by CmdGetFirmwareVersion.
const Version = "1.0.0"

// Firmware is the co-processor peer of the Rainbow mailbox bridge. It is
// driven from the emulation goroutine only.
type Firmware struct {
	logger *log.Logger
	dial   Dialer
	server Server

	debugLevel byte

	// inbound message being assembled
	rx       []byte
	rxLength int
	rxActive bool

	// framed outbound messages, consumed byte by byte
	tx []byte
}

// NewFirmware creates the firmware. dial may be nil, CmdServerConnect then
// fails with ErrNotConnected.
func NewFirmware(logger *log.Logger, dial Dialer) *Firmware {
	return &Firmware{
		logger: logger,
		dial:   dial,
	}
}

// Push receives one byte from the cartridge.
func (f *Firmware) Push(b byte) {
	if !f.rxActive {
		f.rxLength = int(b)
		f.rx = f.rx[:0]
		f.rxActive = b != 0
		return
	}

	f.rx = append(f.rx, b)
	if len(f.rx) == f.rxLength {
		f.rxActive = false
		f.handle(f.rx)
	}
}

// Pull hands the next outbound byte to the cartridge, 0 when nothing is queued.
func (f *Firmware) Pull() byte {
	f.pollServer()
	if len(f.tx) == 0 {
		return 0
	}
	b := f.tx[0]
	f.tx = f.tx[1:]
	return b
}

// DataReady reports whether an outbound message is waiting.
func (f *Firmware) DataReady() bool {
	f.pollServer()
	return len(f.tx) > 0
}

// DebugLevel returns the level last set through CmdDebugSetLevel.
func (f *Firmware) DebugLevel() byte { return f.debugLevel }

// Connected reports whether a server connection is open.
func (f *Firmware) Connected() bool {
	f.pollServer()
	return f.server != nil
}

// Close drops the server connection.
func (f *Firmware) Close() error {
	if f.server == nil {
		return nil
	}
	err := f.server.Close()
	f.server = nil
	return err
}

func (f *Firmware) reply(code byte, payload ...byte) {
	if len(payload)+1 > maxMessageSize {
		f.logger.Warn("Reply truncated", log.Hex("reply", code), log.Int("size", len(payload)))
		payload = payload[:maxMessageSize-1]
	}
	f.tx = append(f.tx, byte(len(payload)+1), code)
	f.tx = append(f.tx, payload...)
}

func (f *Firmware) handle(msg []byte) {
	cmd, args := msg[0], msg[1:]

	switch cmd {
	case CmdGetStatus:
		f.reply(RplReady)

	case CmdDebugGetLevel:
		f.reply(RplDebugLevel, f.debugLevel)

	case CmdDebugSetLevel:
		if len(args) > 0 {
			f.debugLevel = args[0]
		}

	case CmdDebugLog:
		f.logger.Info("Debug log", log.String("data", fmt.Sprintf("% 02x", args)))

	case CmdClearBuffers:
		f.tx = f.tx[:0]

	case CmdGetFirmwareVersion:
		f.reply(RplFirmwareVersion, append([]byte{byte(len(Version))}, Version...)...)

	case CmdServerGetStatus:
		f.pollServer()
		status := ServerDisconnected
		if f.server != nil {
			status = ServerConnected
		}
		f.reply(RplServerStatus, status)

	case CmdServerConnect:
		f.pollServer()
		f.connect()

	case CmdServerDisconnect:
		if err := f.Close(); err != nil {
			f.logger.Error("Closing server connection failed", log.Err(err))
		}

	case CmdServerSendMessage:
		f.pollServer()
		if f.server == nil {
			f.logger.Warn("Message dropped", log.Err(ErrNotConnected))
			return
		}
		if err := f.server.Send(append([]byte(nil), args...)); err != nil {
			f.logger.Error("Sending message failed", log.Err(err))
		}

	default:
		f.logger.Warn("Unsupported command", log.Hex("command", cmd))
	}
}

func (f *Firmware) connect() {
	if f.server != nil {
		return
	}
	if f.dial == nil {
		f.logger.Warn("No server configured", log.Err(ErrNotConnected))
		return
	}

	s, err := f.dial(context.Background())
	if err != nil {
		f.logger.Error("Connecting to server failed", log.Err(err))
		return
	}
	f.server = s
}

// pollServer queues every message the server delivered since the last call
// and drops the connection once the server hung up.
func (f *Firmware) pollServer() {
	if f.server == nil {
		return
	}
	// checked first so nothing received before the hangup is lost
	closed := f.server.Closed()
	for {
		msg, ok := f.server.Recv()
		if !ok {
			break
		}
		f.reply(RplMessageFromServer, msg...)
	}
	if !closed {
		return
	}
	f.logger.Info("Server connection lost")
	if err := f.Close(); err != nil {
		f.logger.Warn("Closing server connection failed", log.Err(err))
	}
}

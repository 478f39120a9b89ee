package main

import (
	flag "github.com/spf13/pflag"
)

var (
	flagMode       string
	flagSignalAddr string
	flagRoomID     string
	flagLocalAddr  string
	flagAggressive bool
	flagHelp       bool
)

func init() {
	flag.StringVarP(&flagMode, "mode", "m", "serve", "Role: serve, offer, or answer")
	flag.StringVarP(&flagSignalAddr, "signal", "s", "ws://127.0.0.1:9191/ws", "Signaling server address")
	flag.StringVarP(&flagRoomID, "room", "r", "demo", "Signaling room both peers join")
	flag.StringVarP(&flagLocalAddr, "local-addr", "l", "127.0.0.1:0", "Local UDP address to bind")
	flag.BoolVarP(&flagAggressive, "aggressive", "a", true, "Use aggressive nomination (false = regular)")
	flag.BoolVarP(&flagHelp, "help", "h", false, "Print usage information and exit")
}

const helpString = `icedemo - a minimal two-peer ICE connectivity demonstration

Usage:
  icedemo --mode=serve [--signal=ws://host:port/ws]
  icedemo --mode=offer  --signal=ws://host:port/ws --room=NAME
  icedemo --mode=answer --signal=ws://host:port/ws --room=NAME

Run one "serve" process, then one "offer" and one "answer" process
(same --room) against it, each in its own terminal.`

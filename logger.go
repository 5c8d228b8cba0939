package main

import (
	"io"
	"io/ioutil"

	"github.com/alexcesaro/log"
	"github.com/alexcesaro/log/golog"

	"github.com/vipnode/nodehealth/admin"
	"github.com/vipnode/nodehealth/api"
	"github.com/vipnode/nodehealth/healthcheck"
	"github.com/vipnode/nodehealth/jsonrpc2"
	"github.com/vipnode/nodehealth/jsonrpc2/ws"
	"github.com/vipnode/nodehealth/nodeset"
	"github.com/vipnode/nodehealth/probe"
	"github.com/vipnode/nodehealth/scheduler"
	badgerStore "github.com/vipnode/nodehealth/store/badger"
)

var logger *golog.Logger

var logLevels = []log.Level{
	log.Warning,
	log.Info,
	log.Debug,
}

// SetLogger overrides the main logger of this command.
func SetLogger(l *golog.Logger) {
	logger = l
}

// setVerbosity picks the log level from the number of -v flags. At the
// debug level, the library packages log too.
func setVerbosity(w io.Writer, numVerbose int) log.Level {
	if numVerbose >= len(logLevels) {
		numVerbose = len(logLevels) - 1
	}
	level := logLevels[numVerbose]
	SetLogger(golog.New(w, level))
	if level == log.Debug {
		admin.SetLogger(w)
		api.SetLogger(w)
		healthcheck.SetLogger(w)
		jsonrpc2.SetLogger(w)
		ws.SetLogger(w)
		nodeset.SetLogger(w)
		probe.SetLogger(w)
		scheduler.SetLogger(w)
		badgerStore.SetLogger(w)
	}
	return level
}

func init() {
	// Set a default null logger
	SetLogger(golog.New(ioutil.Discard, log.Debug))
}

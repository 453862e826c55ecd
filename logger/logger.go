// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package logger wires one btclog.Logger per indexer subsystem to a rotated
// log file, the way the upstream node wires its own subsystem loggers to a
// log rotator before any subsystem is allowed to log.
package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/btcsuite/btclog"
	"github.com/jrick/logrotate/rotator"
)

// logWriter sends output to both standard output and the rotator, once
// initiated; before that, log lines are dropped rather than panicking on a
// nil rotator.
type logWriter struct{}

func (logWriter) Write(p []byte) (n int, err error) {
	if initiated {
		os.Stdout.Write(p)
		LogRotator.Write(p)
	}
	return len(p), nil
}

// Loggers per subsystem. A single backend is created and all subsystem
// loggers derive from it. Lines logged before InitLogRotator has run are
// dropped by logWriter.
var (
	backendLog = btclog.NewBackend(logWriter{})

	// LogRotator is the rotating log file output. It should be closed on
	// shutdown.
	LogRotator *rotator.Rotator

	bsrcLog = backendLog.Logger("BSRC")
	bcchLog = backendLog.Logger("BCCH")
	clsfLog = backendLog.Logger("CLSF")
	parsLog = backendLog.Logger("PARS")
	bmpvLog = backendLog.Logger("BMPV")
	plotLog = backendLog.Logger("PLOT")
	storLog = backendLog.Logger("STOR")
	indxLog = backendLog.Logger("INDX")

	initiated = false
)

// SubsystemTags is an enum of all subsystem tags known to the logger.
var SubsystemTags = struct {
	BSRC,
	BCCH,
	CLSF,
	PARS,
	BMPV,
	PLOT,
	STOR,
	INDX string
}{
	BSRC: "BSRC",
	BCCH: "BCCH",
	CLSF: "CLSF",
	PARS: "PARS",
	BMPV: "BMPV",
	PLOT: "PLOT",
	STOR: "STOR",
	INDX: "INDX",
}

// subsystemLoggers maps each subsystem identifier to its associated logger.
var subsystemLoggers = map[string]btclog.Logger{
	SubsystemTags.BSRC: bsrcLog,
	SubsystemTags.BCCH: bcchLog,
	SubsystemTags.CLSF: clsfLog,
	SubsystemTags.PARS: parsLog,
	SubsystemTags.BMPV: bmpvLog,
	SubsystemTags.PLOT: plotLog,
	SubsystemTags.STOR: storLog,
	SubsystemTags.INDX: indxLog,
}

// Per-package logger handles, exported so each subsystem package can log
// without importing the subsystem map directly.
var (
	BlockSourceLog  = bsrcLog
	BlockCacheLog   = bcchLog
	ClassifierLog   = clsfLog
	ParserLog       = parsLog
	BMPValidatorLog = bmpvLog
	PlotTrackerLog  = plotLog
	StoreLog        = storLog
	EngineLog       = indxLog
)

// InitLogRotator initializes the logging rotator to write logs to logFile,
// creating roll files in the same directory. Subsystem loggers produce no
// output until it has been called.
func InitLogRotator(logFile string) {
	initiated = true
	logDir, _ := filepath.Split(logFile)
	if logDir == "" {
		logDir = "."
	}
	if err := os.MkdirAll(logDir, 0700); err != nil {
		fmt.Fprintf(os.Stderr, "failed to create log directory: %s\n", err)
		os.Exit(1)
	}
	r, err := rotator.New(logFile, 10*1024, false, 3)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create file rotator: %s\n", err)
		os.Exit(1)
	}
	LogRotator = r
}

// SetLogLevel sets the logging level for the provided subsystem. Invalid
// subsystems are ignored.
func SetLogLevel(subsystemID string, logLevel string) {
	logger, ok := subsystemLoggers[subsystemID]
	if !ok {
		return
	}
	level, _ := btclog.LevelFromString(logLevel)
	logger.SetLevel(level)
}

// SetLogLevels sets the log level for every subsystem logger to the same
// level.
func SetLogLevels(logLevel string) {
	for subsysID := range subsystemLoggers {
		SetLogLevel(subsysID, logLevel)
	}
}

// SupportedSubsystems returns a sorted slice of the supported subsystems.
func SupportedSubsystems() []string {
	subsystems := make([]string, 0, len(subsystemLoggers))
	for subsysID := range subsystemLoggers {
		subsystems = append(subsystems, subsysID)
	}
	sort.Strings(subsystems)
	return subsystems
}

// ParseAndSetDebugLevels attempts to parse the specified debug level string
// and set subsystem levels accordingly.
func ParseAndSetDebugLevels(debugLevel string) error {
	if !strings.Contains(debugLevel, ",") && !strings.Contains(debugLevel, "=") {
		if !validLogLevel(debugLevel) {
			return fmt.Errorf("the specified debug level [%s] is invalid", debugLevel)
		}
		SetLogLevels(debugLevel)
		return nil
	}

	for _, logLevelPair := range strings.Split(debugLevel, ",") {
		if !strings.Contains(logLevelPair, "=") {
			return fmt.Errorf("the specified debug level contains an invalid subsystem/level pair [%s]", logLevelPair)
		}

		fields := strings.Split(logLevelPair, "=")
		subsysID, logLevel := fields[0], fields[1]

		if _, exists := subsystemLoggers[subsysID]; !exists {
			return fmt.Errorf("the specified subsystem [%s] is invalid -- supported subsystems %s",
				subsysID, strings.Join(SupportedSubsystems(), ", "))
		}
		if !validLogLevel(logLevel) {
			return fmt.Errorf("the specified debug level [%s] is invalid", logLevel)
		}
		SetLogLevel(subsysID, logLevel)
	}

	return nil
}

func validLogLevel(logLevel string) bool {
	switch logLevel {
	case "trace", "debug", "info", "warn", "error", "critical":
		return true
	}
	return false
}

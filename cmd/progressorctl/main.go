package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/fako1024/progressor/pkg/progressor"
	"github.com/fako1024/progressor/pkg/serialbridge"
	"github.com/sirupsen/logrus"
	"go.bug.st/serial"
)

const readTimeout = 100 * time.Millisecond

type config struct {
	port     string
	baudRate int
	duration time.Duration
	debug    bool
}

var log = logrus.New()

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() (err error) {

	// Parse command line options
	var cfg config
	flag.StringVar(&cfg.port, "port", "/dev/ttyUSB0", "serial port of the emulator")
	flag.IntVar(&cfg.baudRate, "baud", 115200, "baud rate")
	flag.DurationVar(&cfg.duration, "d", 2*time.Second, "time to listen for data points after the last command")
	flag.BoolVar(&cfg.debug, "v", false, "verbose output")
	flag.Usage = usage
	flag.Parse()

	if cfg.debug {
		log.SetLevel(logrus.DebugLevel)
	}

	cmds, err := parseCommands(flag.Args())
	if err != nil {
		return err
	}

	port, err := serial.Open(cfg.port, &serial.Mode{BaudRate: cfg.baudRate})
	if err != nil {
		return fmt.Errorf("failed to open serial port %s: %s", cfg.port, err)
	}
	defer func() {
		if cerr := port.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	if err := port.SetReadTimeout(readTimeout); err != nil {
		return err
	}

	for _, cmd := range cmds {
		frame, err := serialbridge.EncodeCommandFrame(progressor.EncodeCommand(cmd))
		if err != nil {
			return err
		}
		if _, err := port.Write(frame); err != nil {
			return fmt.Errorf("failed to send %s: %s", cmd, err)
		}
		log.Debugf("sent %s", cmd)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, os.Interrupt)

	var (
		dec      serialbridge.DataPointDecoder
		buf      = make([]byte, 256)
		deadline = time.After(cfg.duration)
	)
	for {
		select {
		case <-sigChan:
			log.Info("got signal, terminating")
			return nil
		case <-deadline:
			return nil
		default:
		}

		n, err := port.Read(buf)
		if err != nil {
			return fmt.Errorf("failed to read from serial port: %s", err)
		}
		dps, skipped := dec.Feed(buf[:n])
		if skipped > 0 {
			log.Warnf("skipped %d bytes of invalid input", skipped)
		}
		for _, dp := range dps {
			printDataPoint(dp)
		}
	}
}

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [options] command...\n\nCommands:\n", os.Args[0])
	fmt.Fprintf(flag.CommandLine.Output(), "  tare, start, stop, version, id, calibration, calibrate=<kg>, default-calibration, shutdown, battery\n\nOptions:\n")
	flag.PrintDefaults()
}

var commandNames = map[string]progressor.OpCode{
	"tare":                progressor.OpTareScale,
	"start":               progressor.OpStartMeasurement,
	"stop":                progressor.OpStopMeasurement,
	"version":             progressor.OpGetAppVersion,
	"shutdown":            progressor.OpShutdown,
	"battery":             progressor.OpSampleBattery,
	"id":                  progressor.OpGetProgressorID,
	"calibration":         progressor.OpGetCalibration,
	"default-calibration": progressor.OpDefaultCalibration,
}

func parseCommands(args []string) ([]progressor.Command, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("no command given, see -h")
	}

	cmds := make([]progressor.Command, 0, len(args))
	for _, arg := range args {
		if weight, ok := strings.CutPrefix(arg, "calibrate="); ok {
			w, err := strconv.ParseFloat(weight, 32)
			if err != nil {
				return nil, fmt.Errorf("invalid calibration weight `%s`: %s", weight, err)
			}
			cmds = append(cmds, progressor.Command{OpCode: progressor.OpAddCalibrationPoint, Weight: float32(w)})
			continue
		}

		op, ok := commandNames[arg]
		if !ok {
			return nil, fmt.Errorf("unknown command `%s`", arg)
		}
		cmds = append(cmds, progressor.Command{OpCode: op})
	}

	return cmds, nil
}

func printDataPoint(dp progressor.DataPoint) {
	if w, err := dp.WeightMeasurement(); err == nil {
		log.WithFields(logrus.Fields{
			"weight": fmt.Sprintf("%.3fkg", w.Weight),
			"t":      time.Duration(w.Timestamp) * time.Microsecond,
		}).Info("measurement")
		return
	}
	if dp.IsLowPowerWarning() {
		log.Warn("low power warning")
		return
	}

	// Informational responses share a code, a calibration curve is the only 12 byte one
	if curve, err := dp.CalibrationCurve(); err == nil {
		c := curve.Calibration()
		log.WithFields(logrus.Fields{
			"factor": c.Factor,
			"offset": c.Offset,
			"tare":   c.Tare,
		}).Info("calibration")
		return
	}
	if v, err := dp.AppVersion(); err == nil && isPrintable(v) {
		log.WithField("payload", v.String()).Info("info")
		return
	}
	if id, err := dp.ProgressorID(); err == nil {
		log.WithField("id", fmt.Sprintf("%#x", uint64(id))).Info("info")
		return
	}

	log.Infof("data point: %s", dp)
}

func isPrintable(b []byte) bool {
	if len(b) == 0 {
		return false
	}
	for _, c := range b {
		if c < 0x20 || c > 0x7e {
			return false
		}
	}
	return true
}

package hdrhistogram

import (
	"bufio"
	"encoding/base64"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"
)

const secondsPerYear = 365.0 * 24 * 3600

// LogWriter writes the textual interval-log format described in §4.7.6: a
// UTF-8 stream of metadata lines followed by one compressed-and-base64
// encoded histogram per recording interval. It reads no clock itself —
// every timestamp is supplied by the caller.
type LogWriter struct {
	w                io.Writer
	startTimeSeconds float64
	baseTimeSeconds  float64
	hasBaseTime      bool
	unitRatio        float64
	headerWritten    bool
}

// NewLogWriter returns a LogWriter whose StartTime header field is
// startTimeSeconds (seconds since the Unix epoch).
func NewLogWriter(w io.Writer, startTimeSeconds float64) *LogWriter {
	return &LogWriter{w: w, startTimeSeconds: startTimeSeconds, unitRatio: 1e6}
}

// SetBaseTime adds an explicit BaseTime header field. Without it, readers
// infer whether data-line timestamps are absolute or offsets from the gap
// between StartTime and the first data line.
func (lw *LogWriter) SetBaseTime(seconds float64) {
	lw.baseTimeSeconds = seconds
	lw.hasBaseTime = true
}

// SetUnitRatio changes the divisor applied to each interval's max value
// before it's written to the Interval_Max column. The default is 10^6.
func (lw *LogWriter) SetUnitRatio(ratio float64) {
	if ratio > 0 {
		lw.unitRatio = ratio
	}
}

// WriteHeader writes the format-version, StartTime, optional BaseTime and
// CSV legend lines. WriteInterval calls it automatically if it hasn't run
// yet, so most callers never need to call it directly.
func (lw *LogWriter) WriteHeader() error {
	if lw.headerWritten {
		return nil
	}
	lw.headerWritten = true

	ts := secondsToTime(lw.startTimeSeconds)
	if _, err := io.WriteString(lw.w, "#[Histogram log format version 1.2]\n"); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(lw.w, "#[StartTime: %.3f (seconds since epoch), %s]\n",
		lw.startTimeSeconds, ts.Format("2006-01-02T15:04:05.000Z07:00")); err != nil {
		return err
	}
	if lw.hasBaseTime {
		if _, err := fmt.Fprintf(lw.w, "#[BaseTime: %.3f (seconds since epoch)]\n", lw.baseTimeSeconds); err != nil {
			return err
		}
	}
	_, err := io.WriteString(lw.w, "\"StartTimestamp\",\"Interval_Length\",\"Interval_Max\",\"Interval_Compressed_Histogram\"\n")
	return err
}

// WriteInterval appends one data line for h, covering
// [startTimeSeconds, startTimeSeconds+intervalLengthSeconds).
func (lw *LogWriter) WriteInterval(startTimeSeconds, intervalLengthSeconds float64, h *Histogram) error {
	if err := lw.WriteHeader(); err != nil {
		return err
	}

	buf := make([]byte, h.EncodedSizeInBytes())
	n, err := h.EncodeCompressedInto(buf)
	if err != nil {
		return err
	}
	encoded := base64.StdEncoding.EncodeToString(buf[:n])
	intervalMax := float64(h.Max()) / lw.unitRatio

	_, err = fmt.Fprintf(lw.w, "%.3f,%.3f,%.3f,%s\n", startTimeSeconds, intervalLengthSeconds, intervalMax, encoded)
	return err
}

func secondsToTime(seconds float64) time.Time {
	whole := math.Floor(seconds)
	frac := seconds - whole
	return time.Unix(int64(whole), int64(frac*1e9)).UTC()
}

// LogEntry is one decoded interval from a LogReader.
type LogEntry struct {
	Histogram             *Histogram
	StartTimeSeconds       float64
	IntervalLengthSeconds  float64
}

// LogReader parses the textual interval-log format written by LogWriter.
type LogReader struct {
	scanner *bufio.Scanner

	startTimeSeconds float64
	haveStartTime    bool

	baseTimeSeconds float64
	haveBaseTime    bool

	resolvedOffsetMode bool
}

// NewLogReader returns a LogReader over r.
func NewLogReader(r io.Reader) *LogReader {
	return &LogReader{scanner: bufio.NewScanner(r)}
}

// Next returns the next interval, or (nil, nil) at end of stream.
func (lr *LogReader) Next() (*LogEntry, error) {
	for lr.scanner.Scan() {
		line := strings.TrimSpace(lr.scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "#") {
			lr.parseMetadataLine(line)
			continue
		}
		if strings.HasPrefix(line, "\"") {
			continue // CSV legend line
		}
		return lr.parseDataLine(line)
	}
	if err := lr.scanner.Err(); err != nil {
		return nil, newError(CorruptEncoding, "reading interval log: %v", err)
	}
	return nil, nil
}

func (lr *LogReader) parseMetadataLine(line string) {
	switch {
	case strings.HasPrefix(line, "#[StartTime:"):
		if v, ok := firstFloatIn(line); ok {
			lr.startTimeSeconds = v
			lr.haveStartTime = true
		} else {
			currentLogger().WithField("line", line).Warn("unparseable StartTime metadata line, ignoring")
		}
	case strings.HasPrefix(line, "#[BaseTime:"):
		if v, ok := firstFloatIn(line); ok {
			lr.baseTimeSeconds = v
			lr.haveBaseTime = true
		} else {
			currentLogger().WithField("line", line).Warn("unparseable BaseTime metadata line, ignoring")
		}
	}
}

func firstFloatIn(s string) (float64, bool) {
	start := strings.IndexByte(s, ':')
	if start < 0 {
		return 0, false
	}
	rest := strings.TrimSpace(s[start+1:])
	end := 0
	for end < len(rest) && (rest[end] == '.' || rest[end] == '-' || (rest[end] >= '0' && rest[end] <= '9')) {
		end++
	}
	v, err := strconv.ParseFloat(rest[:end], 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func (lr *LogReader) parseDataLine(line string) (*LogEntry, error) {
	fields := strings.SplitN(line, ",", 4)
	if len(fields) != 4 {
		return nil, newError(CorruptEncoding, "malformed interval log line: %q", line)
	}

	lineStart, err := strconv.ParseFloat(strings.TrimSpace(fields[0]), 64)
	if err != nil {
		return nil, newError(CorruptEncoding, "malformed startTime %q: %v", fields[0], err)
	}
	intervalLength, err := strconv.ParseFloat(strings.TrimSpace(fields[1]), 64)
	if err != nil {
		return nil, newError(CorruptEncoding, "malformed intervalLength %q: %v", fields[1], err)
	}

	if !lr.haveStartTime {
		lr.startTimeSeconds = lineStart
		lr.haveStartTime = true
	}
	if !lr.haveBaseTime {
		if lr.startTimeSeconds-lineStart > secondsPerYear {
			lr.baseTimeSeconds = lr.startTimeSeconds
			currentLogger().WithField("startTime", lr.startTimeSeconds).
				Debug("interval log has no explicit BaseTime; inferring offset-relative timestamps")
		} else {
			lr.baseTimeSeconds = 0
		}
		lr.haveBaseTime = true
	}

	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(fields[3]))
	if err != nil {
		return nil, newError(CorruptEncoding, "malformed base64 histogram: %v", err)
	}
	h, err := DecodeCompressed(raw)
	if err != nil {
		return nil, err
	}

	absoluteStart := lr.baseTimeSeconds + lineStart
	h.startTimestamp = int64(math.Round(absoluteStart * 1000))
	h.endTimestamp = h.startTimestamp + int64(math.Round(intervalLength*1000))

	return &LogEntry{Histogram: h, StartTimeSeconds: absoluteStart, IntervalLengthSeconds: intervalLength}, nil
}

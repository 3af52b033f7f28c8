package hdrhistogram

import (
	"fmt"
	"io"
)

// OutputPercentileDistribution writes a percentile distribution report to
// w, driven by a Percentiles iterator. In plain-text mode it writes four
// fixed-width columns (Value, Percentile, TotalCount, 1/(1-Percentile)) and
// a trailing summary; in csv mode it writes a header row and comma-
// separated values. The final row always reports percentile 100 and omits
// 1/(1-P) (written as the literal "Infinity" in csv mode). If the counts
// store has overflowed, the report halts cleanly with an overflow notice
// instead of returning an error.
func (h *Histogram) OutputPercentileDistribution(w io.Writer, ticksPerHalfDistance int32, unitRatio float64, csv bool) error {
	if ticksPerHalfDistance <= 0 {
		ticksPerHalfDistance = 5
	}
	if unitRatio <= 0 {
		unitRatio = 1000.0
	}

	if h.HasOverflowed() {
		_, err := io.WriteString(w, "# Histogram counts indicate OVERFLOW values\n")
		return err
	}

	if csv {
		if _, err := io.WriteString(w, "\"Value\",\"Percentile\",\"TotalCount\",\"1/(1-Percentile)\"\n"); err != nil {
			return err
		}
	} else {
		if _, err := fmt.Fprintf(w, "%12s %14s %10s %14s\n\n", "Value", "Percentile", "TotalCount", "1/(1-Percentile)"); err != nil {
			return err
		}
	}

	it := h.Percentiles(ticksPerHalfDistance)
	for {
		p, ok := it.Next()
		if !ok {
			break
		}

		value := float64(p.ValueIteratedTo) / unitRatio
		percentile := p.Percentile / 100.0

		if p.PercentileLevelIteratedTo >= 100 {
			if csv {
				if _, err := fmt.Fprintf(w, "%.3f,%.6f,%d,Infinity\n", value, percentile, p.TotalCountToThisValue); err != nil {
					return err
				}
			} else {
				if _, err := fmt.Fprintf(w, "%12.3f %2.12f %10d\n", value, percentile, p.TotalCountToThisValue); err != nil {
					return err
				}
			}
			continue
		}

		inverse := 1.0 / (1.0 - percentile)
		if csv {
			if _, err := fmt.Fprintf(w, "%.3f,%.6f,%d,%.2f\n", value, percentile, p.TotalCountToThisValue, inverse); err != nil {
				return err
			}
		} else {
			if _, err := fmt.Fprintf(w, "%12.3f %2.12f %10d %14.2f\n", value, percentile, p.TotalCountToThisValue, inverse); err != nil {
				return err
			}
		}
	}

	if csv {
		return nil
	}

	mean := h.Mean() / unitRatio
	stdDev := h.StdDev() / unitRatio
	max := float64(h.Max()) / unitRatio
	_, err := fmt.Fprintf(w, "#[Mean    = %12.3f, StdDeviation   = %12.3f]\n"+
		"#[Max     = %12.3f, TotalCount     = %12d]\n"+
		"#[Buckets = %12d, SubBuckets     = %12d]\n",
		mean, stdDev, max, h.totalCount, h.layout.bucketCount, h.layout.subBucketCount)
	return err
}

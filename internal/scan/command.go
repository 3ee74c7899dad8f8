package scan

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"net"
	"os/exec"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/shlex"
	"go.uber.org/zap"
)

// DefaultCommand lists access points on wlan0.
const DefaultCommand = "iw dev wlan0 scan"

// CommandScanner runs an external scan tool and parses its iw-style output.
type CommandScanner struct {
	argv    []string
	timeout time.Duration
	logger  *zap.Logger

	// run is swapped in tests.
	run func(ctx context.Context, argv []string) ([]byte, error)
}

// NewCommandScanner builds a scanner for the given command line.
func NewCommandScanner(command string, timeout time.Duration, logger *zap.Logger) (*CommandScanner, error) {
	argv, err := shlex.Split(command)
	if err != nil {
		return nil, fmt.Errorf("parse scan command %q: %w", command, err)
	}
	if len(argv) == 0 {
		return nil, fmt.Errorf("scan command is empty")
	}
	return &CommandScanner{
		argv:    argv,
		timeout: timeout,
		logger:  logger,
		run:     runCommand,
	}, nil
}

func runCommand(ctx context.Context, argv []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("%s: %w (%s)", argv[0], err, strings.TrimSpace(stderr.String()))
	}
	return out, nil
}

// Scan runs the command and returns the strongest max access points.
func (s *CommandScanner) Scan(ctx context.Context, max int) (Result, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	out, err := s.run(ctx, s.argv)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrScan, err)
	}

	aps, err := ParseIW(out)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrScan, err)
	}

	res := Capture(aps, max)
	s.logger.Info("scan complete",
		zap.Int("max", max),
		zap.Int("total", res.Total),
		zap.Int("held", len(res.APs)),
	)
	return res, nil
}

// Capture sorts access points strongest-first and keeps at most max.
func Capture(aps []AccessPoint, max int) Result {
	sorted := make([]AccessPoint, len(aps))
	copy(sorted, aps)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].RSSI > sorted[j].RSSI })
	if max >= 0 && len(sorted) > max {
		sorted = sorted[:max]
	}
	return Result{APs: sorted, Total: len(aps)}
}

// ParseIW parses the output of `iw dev <if> scan`.
// Each record starts with a "BSS aa:bb:cc:dd:ee:ff(on wlan0)" line.
func ParseIW(out []byte) ([]AccessPoint, error) {
	var (
		aps []AccessPoint
		cur *AccessPoint
	)
	flush := func() {
		if cur != nil {
			aps = append(aps, *cur)
			cur = nil
		}
	}

	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		line := sc.Text()
		trimmed := strings.TrimSpace(line)

		if strings.HasPrefix(line, "BSS ") {
			flush()
			field := strings.TrimPrefix(line, "BSS ")
			if i := strings.IndexAny(field, "( "); i >= 0 {
				field = field[:i]
			}
			mac, err := net.ParseMAC(field)
			if err != nil {
				return nil, fmt.Errorf("bad BSS line %q: %w", line, err)
			}
			cur = &AccessPoint{BSSID: []byte(mac)}
			continue
		}
		if cur == nil {
			continue
		}

		switch {
		case strings.HasPrefix(trimmed, "signal:"):
			v := strings.Fields(strings.TrimPrefix(trimmed, "signal:"))
			if len(v) == 0 {
				continue
			}
			f, err := strconv.ParseFloat(v[0], 64)
			if err != nil {
				return nil, fmt.Errorf("bad signal line %q: %w", trimmed, err)
			}
			cur.RSSI = int(f)
		case strings.HasPrefix(trimmed, "SSID:"):
			cur.SSID = strings.TrimSpace(strings.TrimPrefix(trimmed, "SSID:"))
		case strings.HasPrefix(trimmed, "DS Parameter set: channel"):
			ch, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(trimmed, "DS Parameter set: channel")))
			if err == nil {
				cur.Channel = ch
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	flush()
	return aps, nil
}

package probe

import (
	"context"
	"fmt"
	"net"
	"regexp"
	"strconv"
	"strings"
	"time"

	mcutil "github.com/mcstatus-io/mcutil/v3"
	"github.com/mcstatus-io/mcutil/v3/options"
	"github.com/mcwatch/mcwatch/internal/store"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// DefaultPort is the Java edition default, appended when an address omits one.
const DefaultPort = 25565

var (
	ErrEmptyAddress   = errors.New("empty address")
	ErrInvalidAddress = errors.New("invalid address format")

	addressPattern = regexp.MustCompile(`^[\w.\-]+(:\d+)?$`)
)

// NormalizeAddress trims and validates a submitted host[:port] string,
// appending the default port when none was given.
func NormalizeAddress(raw string) (string, error) {
	address := strings.TrimSpace(raw)
	if address == "" {
		return "", ErrEmptyAddress
	}

	if !addressPattern.MatchString(address) {
		return "", ErrInvalidAddress
	}

	if !strings.Contains(address, ":") {
		address = fmt.Sprintf("%s:%d", address, DefaultPort)
	}

	return address, nil
}

func splitHostPort(address string) (string, uint16, error) {
	host, portValue, errSplit := net.SplitHostPort(address)
	if errSplit != nil {
		return "", 0, errors.Wrap(errSplit, "Failed to split address")
	}

	port, errPort := strconv.ParseUint(portValue, 10, 16)
	if errPort != nil {
		return "", 0, errors.Wrap(errPort, "Failed to parse port")
	}

	return host, uint16(port), nil
}

// Prober performs one status query against a normalized address. Offline and
// error states come back as data, never as a returned error.
type Prober interface {
	Probe(ctx context.Context, address string) store.TrackedServer
}

// JavaProber queries the Java edition status protocol through mcutil. Outbound
// probes are throttled through a shared rate limiter so a large tracked list
// cannot flood the network on every refresh cycle.
type JavaProber struct {
	log     *zap.Logger
	timeout time.Duration
	limiter *rate.Limiter
}

func NewJavaProber(logger *zap.Logger, timeout time.Duration, probesPerSecond float64) *JavaProber {
	return &JavaProber{
		log:     logger.Named("probe"),
		timeout: timeout,
		limiter: rate.NewLimiter(rate.Limit(probesPerSecond), 1),
	}
}

func (prober *JavaProber) Probe(ctx context.Context, address string) store.TrackedServer {
	result := store.TrackedServer{
		Address:     address,
		Status:      store.StatusOffline,
		LastChecked: time.Now(),
	}

	if errWait := prober.limiter.Wait(ctx); errWait != nil {
		result.Error = errWait.Error()

		return result
	}

	host, port, errSplit := splitHostPort(address)
	if errSplit != nil {
		result.Error = errSplit.Error()

		return result
	}

	started := time.Now()

	status, errStatus := mcutil.Status(ctx, host, port, options.JavaStatus{
		EnableSRV:       true,
		Timeout:         prober.timeout,
		ProtocolVersion: 47,
	})
	if errStatus != nil {
		prober.log.Debug("Status query failed",
			zap.String("address", address), zap.Error(errStatus))

		result.Error = errStatus.Error()
		result.LastChecked = time.Now()

		return result
	}

	result.Status = store.StatusOnline
	result.LatencyMS = float64(time.Since(started)) / float64(time.Millisecond)
	result.Version = status.Version.NameClean
	result.Description = status.MOTD.Clean
	result.LastChecked = time.Now()

	if status.Players.Online != nil {
		result.PlayersOnline = int(*status.Players.Online)
	}

	if status.Players.Max != nil {
		result.PlayersMax = int(*status.Players.Max)
	}

	return result
}

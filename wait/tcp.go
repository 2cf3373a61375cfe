package wait

import (
	"context"
	"net"
	"os"
	"regexp"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/xerrors"
)

var (
	addrPattern = regexp.MustCompile(
		"^(?P<schema>(?P<proto>[A-Za-z]+)://)?(?P<host>[^#]+)(#(?P<freq>.+))?",
	)
	protoPort = map[string]string{
		"amqp":  "5672",
		"amqps": "5671",
		"http":  "80",
		"https": "443",
		"imap":  "143",
		"mysql": "3306",
		"ldap":  "389",
		"ldaps": "636",
		"psql":  "5432",
		"smtp":  "25",
	}
)

// TCPSpec represents the input specification of a single TCP wait operation.
type TCPSpec struct {
	// Host is the hostname or IP address being waited.
	Host string
	// Port is the port number for the connection.
	Port string
	// PollFreq is how often a connection is attempted.
	PollFreq time.Duration
}

// Addr returns the host:port address represented by the spec.
func (spec *TCPSpec) Addr() string {
	return net.JoinHostPort(spec.Host, spec.Port)
}

// TCPMessage is a status update emitted while waiting for a TCP server. It implements Message.
type TCPMessage struct {
	status    Status
	spec      *TCPSpec
	startTime time.Time
	emitTime  time.Time
	err       error
}

func newTCPMessageStart(spec *TCPSpec, startTime time.Time) *TCPMessage {
	return &TCPMessage{status: Start, spec: spec, startTime: startTime, emitTime: time.Now()}
}

func newTCPMessageReady(spec *TCPSpec, startTime time.Time) *TCPMessage {
	return &TCPMessage{status: Ready, spec: spec, startTime: startTime, emitTime: time.Now()}
}

func newTCPMessageFailed(spec *TCPSpec, startTime time.Time, err error) *TCPMessage {
	return &TCPMessage{status: Failed, spec: spec, startTime: startTime, emitTime: time.Now(), err: err}
}

// Status returns the status of the wait operation when the message was emitted.
func (msg *TCPMessage) Status() Status {
	return msg.status
}

// Addr returns the host:port address being waited, or a placeholder when the message is not tied
// to a single address.
func (msg *TCPMessage) Addr() string {
	if msg.spec == nil {
		return "<none>"
	}
	return msg.spec.Addr()
}

// Target returns the display name of the address being waited.
func (msg *TCPMessage) Target() string {
	if msg.spec == nil {
		return "<none>"
	}
	return "tcp://" + msg.spec.Addr()
}

// ElapsedTime returns the duration between wait start and message emission.
func (msg *TCPMessage) ElapsedTime() time.Duration {
	return msg.emitTime.Sub(msg.startTime)
}

// Err returns the failure for Failed messages and nil otherwise.
func (msg *TCPMessage) Err() error {
	return msg.err
}

// ShouldWait checks whether a given connection error represents a condition in which we should
// still wait and attempt another connection. This covers two broad classes of errors: 1) I/O
// timeout errors and 2) connection refused (server not ready) errors. Note that this has only
// been tested on POSIX systems.
func ShouldWait(err error) bool {
	// First case: i/o timeout.
	if os.IsTimeout(err) {
		return true
	}

	// Second case: connection refused -- remote server not ready.
	if opErr, isOpErr := err.(*net.OpError); isOpErr {
		ierr := opErr.Unwrap()
		if syscallErr, isSyscallErr := ierr.(*os.SyscallError); isSyscallErr {
			return syscallErr.Unwrap() == syscall.ECONNREFUSED
		}
	}

	return false
}

// tcpNotifier is the subscribe/unsubscribe mechanism behind the TCP waits. Subscribing starts a
// polling loop that dials the target address until an attempt either succeeds or fails with a
// non-retryable error, then fires the registered handler once.
type tcpNotifier struct {
	spec *TCPSpec
	quit chan struct{}

	handler Handler
	// err records a non-retryable dial failure; it is written before the handler fires and must
	// only be read after the wait resolves to fired.
	err error
}

func newTCPNotifier(spec *TCPSpec) *tcpNotifier {
	return &tcpNotifier{spec: spec, quit: make(chan struct{})}
}

func (n *tcpNotifier) subscribe(h Handler) error {
	n.handler = h
	go n.poll()
	return nil
}

// unsubscribe stops the polling loop. The wait core guarantees at most one call per subscribe.
func (n *tcpNotifier) unsubscribe(Handler) {
	close(n.quit)
}

func (n *tcpNotifier) poll() {
	ticker := time.NewTicker(n.spec.PollFreq)
	defer ticker.Stop()

	check := func() bool {
		conn, err := net.DialTimeout("tcp", n.spec.Addr(), n.spec.PollFreq)
		if err == nil {
			conn.Close()
			n.handler()
			return true
		}
		if ShouldWait(err) {
			log.Debug().Str("addr", n.spec.Addr()).Err(err).Msg("server not ready")
			return false
		}
		n.err = err
		n.handler()
		return true
	}

	// Poll immediately instead of waiting for the first tick.
	// See: https://github.com/golang/go/issues/17601
	if settled := check(); settled {
		return
	}

	for {
		select {
		case <-n.quit:
			return
		case <-ticker.C:
			if settled := check(); settled {
				return
			}
		}
	}
}

// ParseTCPSpec parses a single raw address into a TCP spec. The raw address may be given as
// `host:port`, as `proto://host` for protocols with known ports, or either form with a `#freq`
// suffix overriding the default poll frequency.
func ParseTCPSpec(rawAddr string, defaultPollFreq time.Duration) (*TCPSpec, error) {
	matches := addrPattern.FindStringSubmatch(rawAddr)
	groups := make(map[string]string)
	for i, name := range addrPattern.SubexpNames() {
		if name != "" && i < len(matches) {
			groups[name] = matches[i]
		}
	}

	var (
		host, port string
		pollFreq   = defaultPollFreq
		rawHost    = groups["host"]
	)

	if strings.ContainsRune(rawHost, ':') {
		var err error
		host, port, err = net.SplitHostPort(rawHost)
		if err != nil {
			return nil, err
		}
	} else {
		proto := groups["proto"]
		if proto == "" {
			return nil, xerrors.New("neither port nor protocol is given")
		}
		knownPort, known := protoPort[strings.ToLower(proto)]
		if !known {
			return nil, xerrors.Errorf("port not given and protocol is unknown: %q", proto)
		}
		host, port = rawHost, knownPort
	}

	if rawFreq := groups["freq"]; rawFreq != "" {
		freq, err := time.ParseDuration(rawFreq)
		if err != nil {
			return nil, err
		}
		pollFreq = freq
	}

	return &TCPSpec{Host: host, Port: port, PollFreq: pollFreq}, nil
}

// ParseTCPSpecs parses multiple raw addresses into TCP specs, failing on the first invalid one.
func ParseTCPSpecs(rawAddrs []string, defaultPollFreq time.Duration) ([]*TCPSpec, error) {
	specs := make([]*TCPSpec, len(rawAddrs))
	for i, rawAddr := range rawAddrs {
		spec, err := ParseTCPSpec(rawAddr, defaultPollFreq)
		if err != nil {
			return nil, xerrors.Errorf("address %d: %w", i, err)
		}
		specs[i] = spec
	}

	return specs, nil
}

// tcpResult translates one resolved TCP wait into a message-level result. It returns nil when
// the server became ready and the error to report otherwise.
func tcpResult(notifier *tcpNotifier, ok bool, err error, waitTimeout time.Duration) error {
	switch {
	case err != nil:
		return err
	case !ok:
		return xerrors.Errorf("reached timeout limit of %s", waitTimeout)
	case notifier.err != nil:
		return notifier.err
	}
	return nil
}

// OneTCP waits until a TCP connection can be made to the address in spec. The returned channel
// emits a Start message when the wait begins, followed by exactly one Ready or Failed message,
// and is then closed. A wait that outlives waitTimeout fails with a timeout error; canceling ctx
// fails the wait with a *CanceledError.
func OneTCP(ctx context.Context, spec *TCPSpec, waitTimeout time.Duration) <-chan *TCPMessage {
	out := make(chan *TCPMessage, 2)

	go func() {
		defer close(out)

		startTime := time.Now()
		out <- newTCPMessageStart(spec, startTime)

		notifier := newTCPNotifier(spec)
		ok, err := ForEvent(ctx, notifier.subscribe, notifier.unsubscribe, waitTimeout)
		if werr := tcpResult(notifier, ok, err, waitTimeout); werr != nil {
			out <- newTCPMessageFailed(spec, startTime, werr)
			return
		}
		out <- newTCPMessageReady(spec, startTime)
	}()

	return out
}

// AllTCP waits until connections can be made to all given TCP addresses. The returned channel
// emits Start and Ready messages for each address and at most one Failed message for the first
// failure, after which it is closed. Per-address waits run concurrently; the first failure
// cancels the remaining ones.
func AllTCP(ctx context.Context, specs []*TCPSpec, waitTimeout time.Duration) <-chan Message {
	// Sized so that emitting goroutines never block, even when the consumer stops early.
	out := make(chan Message, 2*len(specs)+1)

	go func() {
		defer close(out)

		grp, gctx := errgroup.WithContext(ctx)
		startTime := time.Now()

		for _, spec := range specs {
			spec := spec
			grp.Go(func() error {
				out <- newTCPMessageStart(spec, startTime)

				notifier := newTCPNotifier(spec)
				ok, err := ForEvent(gctx, notifier.subscribe, notifier.unsubscribe, waitTimeout)
				if werr := tcpResult(notifier, ok, err, waitTimeout); werr != nil {
					return werr
				}

				out <- newTCPMessageReady(spec, startTime)
				return nil
			})
		}

		if err := grp.Wait(); err != nil {
			out <- newTCPMessageFailed(nil, startTime, err)
		}
	}()

	return out
}

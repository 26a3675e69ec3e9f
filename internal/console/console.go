// Package console is a line-oriented command interpreter over a session:
// look services up, call their methods and watch their signals.
package console

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/juju/errors"

	"github.com/EgorLis/qimessaging/internal/rpclient"
)

// DefaultTimeout bounds how long a command waits for the robot.
const DefaultTimeout = 10 * time.Second

// ErrUsage is returned for a malformed command line.
const ErrUsage = errors.ConstError("usage")

type watchKey struct {
	service string
	member  string
}

// Console runs commands against one session.
type Console struct {
	session *rpclient.Session
	timeout time.Duration

	outMu sync.Mutex
	out   io.Writer

	mu       sync.Mutex
	services map[string]*rpclient.RemoteObject
	watches  map[watchKey]any
}

// New returns a console printing to out.
func New(s *rpclient.Session, out io.Writer) *Console {
	return &Console{
		session:  s,
		timeout:  DefaultTimeout,
		out:      out,
		services: make(map[string]*rpclient.RemoteObject),
		watches:  make(map[watchKey]any),
	}
}

// SetTimeout changes how long a command waits for replies.
func (c *Console) SetTimeout(d time.Duration) {
	c.timeout = d
}

// Reset forgets cached services and watches. The session drops both on
// disconnect, so this must be called from its disconnect handler.
func (c *Console) Reset() {
	c.mu.Lock()
	c.services = make(map[string]*rpclient.RemoteObject)
	c.watches = make(map[watchKey]any)
	c.mu.Unlock()
}

func (c *Console) printf(format string, args ...any) {
	c.outMu.Lock()
	defer c.outMu.Unlock()
	fmt.Fprintf(c.out, format+"\n", args...)
}

var helpLines = []string{
	"help",
	"state",
	"service <name>",
	"methods <name>",
	"call <name> <method> [args...]",
	"watch <name> <signal|property>",
	"unwatch <name> <signal|property>",
	"get <name> <property>",
	"set <name> <property> <value>",
}

// Run reads commands from in, one per line, until in is exhausted or ctx
// is done. Command errors are printed, not returned.
func (c *Console) Run(ctx context.Context, in io.Reader) error {
	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- sc.Err()
	}()
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-readErr:
					return errors.Trace(err)
				default:
					return nil
				}
			}
			if err := c.HandleCommand(ctx, line); err != nil {
				c.printf("err: %v", err)
			}
		}
	}
}

// HandleCommand runs one command line.
func (c *Console) HandleCommand(ctx context.Context, line string) error {
	fields := splitArgs(strings.TrimSpace(line))
	if len(fields) == 0 {
		return nil
	}
	cmd := strings.ToLower(fields[0])
	args := fields[1:]

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	switch cmd {
	case "help", "?":
		c.printf("%s", strings.Join(helpLines, "\n"))
		return nil

	case "state":
		c.printf("%s", c.session.State())
		return nil

	case "service":
		if len(args) != 1 {
			return errors.Annotate(ErrUsage, "service <name>")
		}
		obj, err := c.service(ctx, args[0])
		if err != nil {
			return err
		}
		c.printf("%s: object %v, %d methods, %d signals, %d properties",
			args[0], obj.ID(), len(obj.Methods()), len(obj.Signals()), len(obj.Properties()))
		return nil

	case "methods":
		if len(args) != 1 {
			return errors.Annotate(ErrUsage, "methods <name>")
		}
		obj, err := c.service(ctx, args[0])
		if err != nil {
			return err
		}
		c.printf("methods: %s", strings.Join(obj.Methods(), " "))
		c.printf("signals: %s", strings.Join(obj.Signals(), " "))
		c.printf("properties: %s", strings.Join(obj.Properties(), " "))
		return nil

	case "call":
		if len(args) < 2 {
			return errors.Annotate(ErrUsage, "call <name> <method> [args...]")
		}
		obj, err := c.service(ctx, args[0])
		if err != nil {
			return err
		}
		v, err := obj.Call(args[1], parseArgs(args[2:])...).Wait(ctx)
		if err != nil {
			return errors.Annotatef(err, "%s.%s", args[0], args[1])
		}
		c.printf("%s", format(v))
		return nil

	case "watch":
		if len(args) != 2 {
			return errors.Annotate(ErrUsage, "watch <name> <signal|property>")
		}
		return c.watch(ctx, args[0], args[1])

	case "unwatch":
		if len(args) != 2 {
			return errors.Annotate(ErrUsage, "unwatch <name> <signal|property>")
		}
		return c.unwatch(ctx, args[0], args[1])

	case "get":
		if len(args) != 2 {
			return errors.Annotate(ErrUsage, "get <name> <property>")
		}
		p, err := c.property(ctx, args[0], args[1])
		if err != nil {
			return err
		}
		v, err := p.Value().Wait(ctx)
		if err != nil {
			return errors.Annotatef(err, "%s.%s", args[0], args[1])
		}
		c.printf("%s", format(v))
		return nil

	case "set":
		if len(args) != 3 {
			return errors.Annotate(ErrUsage, "set <name> <property> <value>")
		}
		p, err := c.property(ctx, args[0], args[1])
		if err != nil {
			return err
		}
		if _, err := p.SetValue(parseArg(args[2])).Wait(ctx); err != nil {
			return errors.Annotatef(err, "%s.%s", args[0], args[1])
		}
		c.printf("ok")
		return nil
	}
	return errors.NotSupportedf("command %q", cmd)
}

// service resolves name once per connection.
func (c *Console) service(ctx context.Context, name string) (*rpclient.RemoteObject, error) {
	c.mu.Lock()
	obj, ok := c.services[name]
	c.mu.Unlock()
	if ok {
		return obj, nil
	}
	obj, err := c.session.ServiceObject(ctx, name)
	if err != nil {
		return nil, errors.Trace(err)
	}
	c.mu.Lock()
	c.services[name] = obj
	c.mu.Unlock()
	return obj, nil
}

func (c *Console) property(ctx context.Context, name, member string) (*rpclient.Property, error) {
	obj, err := c.service(ctx, name)
	if err != nil {
		return nil, err
	}
	p, ok := obj.Property(member)
	if !ok {
		return nil, errors.Annotatef(rpclient.ErrNoSuchMember, "%s has no property %q", name, member)
	}
	return p, nil
}

// signal finds member among the signals, then the properties of name.
func (c *Console) signal(ctx context.Context, name, member string) (*rpclient.Signal, error) {
	obj, err := c.service(ctx, name)
	if err != nil {
		return nil, err
	}
	if s, ok := obj.Signal(member); ok {
		return s, nil
	}
	if p, ok := obj.Property(member); ok {
		return &p.Signal, nil
	}
	return nil, errors.Annotatef(rpclient.ErrNoSuchMember, "%s has no signal %q", name, member)
}

func (c *Console) watch(ctx context.Context, name, member string) error {
	key := watchKey{name, member}
	c.mu.Lock()
	_, watching := c.watches[key]
	c.mu.Unlock()
	if watching {
		return errors.AlreadyExistsf("watch on %s.%s", name, member)
	}
	sig, err := c.signal(ctx, name, member)
	if err != nil {
		return err
	}
	link, err := sig.Connect(func(args ...any) {
		c.printf("%s.%s: %s", name, member, format(args))
	}).Wait(ctx)
	if err != nil {
		return errors.Annotatef(err, "watch %s.%s", name, member)
	}
	c.mu.Lock()
	c.watches[key] = link
	c.mu.Unlock()
	c.printf("watching %s.%s (link %v)", name, member, link)
	return nil
}

func (c *Console) unwatch(ctx context.Context, name, member string) error {
	key := watchKey{name, member}
	c.mu.Lock()
	link, ok := c.watches[key]
	c.mu.Unlock()
	if !ok {
		return errors.NotFoundf("watch on %s.%s", name, member)
	}
	sig, err := c.signal(ctx, name, member)
	if err != nil {
		return err
	}
	if _, err := sig.Disconnect(link).Wait(ctx); err != nil {
		return errors.Annotatef(err, "unwatch %s.%s", name, member)
	}
	c.mu.Lock()
	delete(c.watches, key)
	c.mu.Unlock()
	c.printf("stopped watching %s.%s", name, member)
	return nil
}

// format renders a result for the terminal.
func format(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case *rpclient.RemoteObject:
		return fmt.Sprintf("<object %v>", t.ID())
	case []any:
		for _, e := range t {
			if _, ok := e.(*rpclient.RemoteObject); ok {
				parts := make([]string, len(t))
				for i, e := range t {
					parts[i] = format(e)
				}
				return "[" + strings.Join(parts, ",") + "]"
			}
		}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}

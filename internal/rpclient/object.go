package rpclient

import (
	"sort"
	"strconv"

	"github.com/juju/errors"
)

// Member is one entry of a descriptor member set.
type Member struct {
	ID   string
	Name string
}

// MetaDescriptor describes a remote object as the robot sent it.
type MetaDescriptor struct {
	// Object is the identity the robot issued. It is sent back verbatim.
	Object     any
	Methods    []Member
	Signals    []Member
	Properties []Member
	// Raw is the undecoded metaobject.
	Raw map[string]any
}

// isDescriptor reports whether a reply result carries a metaobject.
func isDescriptor(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, false
	}
	_, ok = m["metaobject"]
	return m, ok
}

func parseDescriptor(raw map[string]any) (*MetaDescriptor, error) {
	obj := raw["pyobject"]
	if obj == nil {
		return nil, &DescriptorError{Reason: "missing pyobject"}
	}
	meta, ok := raw["metaobject"].(map[string]any)
	if !ok {
		return nil, &DescriptorError{Object: obj, Reason: "metaobject is not an object"}
	}
	d := &MetaDescriptor{Object: obj, Raw: meta}
	sets := []struct {
		key string
		dst *[]Member
	}{
		{"methods", &d.Methods},
		{"signals", &d.Signals},
		{"properties", &d.Properties},
	}
	for _, set := range sets {
		members, err := parseMembers(meta[set.key])
		if err != nil {
			return nil, &DescriptorError{Object: obj, Reason: set.key + ": " + err.Error()}
		}
		*set.dst = members
	}
	return d, nil
}

// parseMembers accepts a list of {name} objects or a map of them keyed by
// member id.
func parseMembers(v any) ([]Member, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case []any:
		members := make([]Member, 0, len(t))
		for i, e := range t {
			m, err := parseMember("", e)
			if err != nil {
				return nil, errors.Annotatef(err, "entry %d", i)
			}
			members = append(members, m)
		}
		return members, nil
	case map[string]any:
		ids := make([]string, 0, len(t))
		for id := range t {
			ids = append(ids, id)
		}
		sortIDs(ids)
		members := make([]Member, 0, len(t))
		for _, id := range ids {
			m, err := parseMember(id, t[id])
			if err != nil {
				return nil, errors.Annotatef(err, "entry %s", id)
			}
			members = append(members, m)
		}
		return members, nil
	}
	return nil, errors.Errorf("%T is neither a list nor a map", v)
}

func parseMember(id string, v any) (Member, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return Member{}, errors.Errorf("%T is not an object", v)
	}
	name, _ := m["name"].(string)
	if name == "" {
		return Member{}, errors.New("no name")
	}
	if uid, ok := m["uid"]; ok && id == "" {
		id = Token(uid)
	}
	return Member{ID: id, Name: name}, nil
}

// sortIDs orders numeric ids numerically and the rest after them.
func sortIDs(ids []string) {
	sort.Slice(ids, func(i, j int) bool {
		a, errA := strconv.ParseUint(ids[i], 10, 64)
		b, errB := strconv.ParseUint(ids[j], 10, 64)
		switch {
		case errA == nil && errB == nil:
			return a < b
		case errA == nil:
			return true
		case errB == nil:
			return false
		}
		return ids[i] < ids[j]
	})
}

// RemoteObject is a proxy for an object living on the robot. Its members
// are looked up by name; the lookup tables come from the descriptor.
type RemoteObject struct {
	session    *Session
	desc       *MetaDescriptor
	methods    map[string]struct{}
	signals    map[string]*Signal
	properties map[string]*Property
}

func newRemoteObject(s *Session, d *MetaDescriptor) *RemoteObject {
	o := &RemoteObject{
		session:    s,
		desc:       d,
		methods:    make(map[string]struct{}, len(d.Methods)),
		signals:    make(map[string]*Signal, len(d.Signals)),
		properties: make(map[string]*Property, len(d.Properties)),
	}
	for _, m := range d.Methods {
		o.methods[m.Name] = struct{}{}
	}
	for _, m := range d.Signals {
		o.signals[m.Name] = &Signal{obj: o, name: m.Name}
	}
	for _, m := range d.Properties {
		o.properties[m.Name] = &Property{Signal{obj: o, name: m.Name}}
	}
	return o
}

// ID returns the object identity issued by the robot.
func (o *RemoteObject) ID() any { return o.desc.Object }

// Descriptor returns the descriptor the proxy was built from.
func (o *RemoteObject) Descriptor() *MetaDescriptor { return o.desc }

// HasMethod reports whether name is one of the object's methods.
func (o *RemoteObject) HasMethod(name string) bool {
	_, ok := o.methods[name]
	return ok
}

// Call invokes method name with args. The future fails with
// ErrNoSuchMember, without anything being sent, if the object has no such
// method.
func (o *RemoteObject) Call(name string, args ...any) *Future {
	if !o.HasMethod(name) {
		return failedFuture(errors.Annotatef(ErrNoSuchMember, "method %q", name))
	}
	return o.session.call(o.desc.Object, name, args, nil)
}

// Signal returns the subscription capability of signal name.
func (o *RemoteObject) Signal(name string) (*Signal, bool) {
	s, ok := o.signals[name]
	return s, ok
}

// Property returns the capability of property name.
func (o *RemoteObject) Property(name string) (*Property, bool) {
	p, ok := o.properties[name]
	return p, ok
}

// Methods returns the method names in lexical order.
func (o *RemoteObject) Methods() []string { return sortedKeys(o.methods) }

// Signals returns the signal names in lexical order.
func (o *RemoteObject) Signals() []string { return sortedKeys(o.signals) }

// Properties returns the property names in lexical order.
func (o *RemoteObject) Properties() []string { return sortedKeys(o.properties) }

func sortedKeys[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Signal is the subscription capability of a signal or property.
type Signal struct {
	obj  *RemoteObject
	name string
}

// Name returns the member name.
func (s *Signal) Name() string { return s.name }

// Connect subscribes cb. The future resolves with the subscription link
// once cb is registered; emissions arriving after that reach cb.
func (s *Signal) Connect(cb SignalFunc) *Future {
	out := newFuture()
	sess := s.obj.session
	sess.call(s.obj.desc.Object, s.name, []any{"connect"}, func(link any, err error) {
		if err != nil {
			out.reject(err)
			return
		}
		sess.signals.register(signalKey(s.obj.desc.Object, s.name, link), cb)
		out.resolve(link)
	})
	return out
}

// Disconnect drops the subscription identified by link. The callback is
// unregistered when the robot confirms.
func (s *Signal) Disconnect(link any) *Future {
	out := newFuture()
	sess := s.obj.session
	sess.call(s.obj.desc.Object, s.name, []any{"disconnect", link}, func(v any, err error) {
		if err != nil {
			out.reject(err)
			return
		}
		sess.signals.unregister(signalKey(s.obj.desc.Object, s.name, link))
		out.resolve(v)
	})
	return out
}

// Property is an observable, settable attribute of a remote object.
type Property struct {
	Signal
}

// Value reads the property.
func (p *Property) Value() *Future {
	return p.obj.session.call(p.obj.desc.Object, p.name, []any{"value"}, nil)
}

// SetValue writes the property.
func (p *Property) SetValue(v any) *Future {
	return p.obj.session.call(p.obj.desc.Object, p.name, []any{"setValue", v}, nil)
}

package component

// Impl is the set of hooks a concrete component implements; Component
// drives them from its own event-loop worker, so none of them need to
// worry about concurrent calls from peers.
type Impl interface {
	// Initialise populates the component's configuration subtree and
	// declares inputs/outputs beyond any the caller already added. Called
	// once, synchronously, from New.
	Initialise(c *Component) error
	// OnStart runs once, on the worker, before the first alignment pass:
	// open files, start generators, anything that should happen exactly
	// once a component goes live.
	OnStart(c *Component) error
	// OnSetConfig reacts to a configuration change that touched at least
	// one non-Dynamic leaf: re-derive caches, reopen resources, etc.
	OnSetConfig(c *Component) error
	// OnConnect reacts to a peer binding itself to outputName.
	OnConnect(c *Component, outputName string)
	// ProcessFrame does one unit of work. It is called by the Aligner once
	// every declared input has a ready, aligned head and every pooled
	// output has spare capacity. Returning ErrStreamEnd ends the stream
	// cleanly; any other non-nil error is reported as ProcessingFailedError
	// and also ends the stream.
	ProcessFrame(c *Component) error
	// OnStop runs once, on the worker, during termination, after the
	// event loop has drained everything queued before Stop.
	OnStop(c *Component) error
}

// BaseImpl supplies no-op defaults for every Impl hook so a concrete
// component can embed it and override only what it needs, the Go analogue
// of the Python base class's do-nothing hook methods.
type BaseImpl struct{}

func (BaseImpl) Initialise(*Component) error    { return nil }
func (BaseImpl) OnStart(*Component) error       { return nil }
func (BaseImpl) OnSetConfig(*Component) error   { return nil }
func (BaseImpl) OnConnect(*Component, string)   {}
func (BaseImpl) ProcessFrame(*Component) error  { return ErrStreamEnd }
func (BaseImpl) OnStop(*Component) error        { return nil }

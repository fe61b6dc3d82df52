package command

import (
	"fmt"
	"log"

	"github.com/basilic/energy-counter/internal/counter"
)

// Replier publishes the value answered by a read command.
type Replier interface {
	PublishReply(channel int, value uint32) error
}

// Saver applies counter writes so they serialize with the persistence
// scheduler's threshold flushes. The in-memory value and the durable copy
// move in one step; the processor never writes storage itself.
type Saver interface {
	ForceSet(channel int, value uint32) error
	ResetAll() error
}

// Processor applies commands to the counter store. It is stateless across
// messages: each inbound message is handled independently.
type Processor struct {
	counters *counter.Store
	saver    Saver
	replier  Replier // may be nil: reads are then logged only
}

// NewProcessor creates a Processor. Mutating commands go through the saver,
// which is the single writer on the counter namespace.
func NewProcessor(counters *counter.Store, saver Saver, replier Replier) *Processor {
	return &Processor{counters: counters, saver: saver, replier: replier}
}

// Handle processes one inbound message: parse, validate, then apply.
// A returned error means the command was rejected or its side effect failed;
// a rejected command never leaves a partial mutation behind.
func (p *Processor) Handle(msg string) error {
	cmd, err := Parse(msg)
	if err != nil {
		return err
	}
	return p.Apply(cmd)
}

// Apply executes a parsed command.
func (p *Processor) Apply(cmd Command) error {
	switch cmd.Op {
	case OpForceSet:
		if err := p.checkIndex(cmd.Index); err != nil {
			return err
		}
		if err := p.saver.ForceSet(cmd.Index, cmd.Value); err != nil {
			// The in-memory value is already set; the threshold path
			// retries the durable write on a later tick.
			return fmt.Errorf("force-set counter %d: %w", cmd.Index, err)
		}
		log.Printf("command: counter %d force-set to %d", cmd.Index, cmd.Value)
		return nil

	case OpRead:
		if err := p.checkIndex(cmd.Index); err != nil {
			return err
		}
		value := p.counters.Get(cmd.Index)
		if p.replier == nil {
			log.Printf("command: counter %d = %d (no reply channel)", cmd.Index, value)
			return nil
		}
		if err := p.replier.PublishReply(cmd.Index, value); err != nil {
			return fmt.Errorf("reply for counter %d: %w", cmd.Index, err)
		}
		return nil

	case OpResetAll:
		if err := p.saver.ResetAll(); err != nil {
			return fmt.Errorf("reset counters: %w", err)
		}
		log.Printf("command: all %d counters reset", p.counters.Len())
		return nil

	default:
		return fmt.Errorf("%w: unknown op %q", ErrMalformed, cmd.Op)
	}
}

func (p *Processor) checkIndex(idx int) error {
	if idx < 0 || idx >= p.counters.Len() {
		return fmt.Errorf("%w: %d not in [0,%d)", ErrOutOfRange, idx, p.counters.Len())
	}
	return nil
}

package replay

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/erain9/matchbook/pkg/core"
	"github.com/nikolaydubina/fpdecimal"
	"gopkg.in/yaml.v3"
)

// Step operations
const (
	OpAdd      = "add"
	OpCancel   = "cancel"
	OpModify   = "modify"
	OpClear    = "clear"
	OpSnapshot = "snapshot"
)

// Expected step outcomes
const (
	ExpectAny      = ""
	ExpectAccepted = "accepted"
	ExpectRejected = "rejected"
)

// ErrInvalidScript is wrapped by every parse and validation error
var ErrInvalidScript = errors.New("invalid replay script")

// Script is a named sequence of book operations
type Script struct {
	Name  string `yaml:"name"`
	Steps []Step `yaml:"steps"`
}

// Step is one operation applied to the book. Price is a decimal string so
// scripts keep the exact value written by the author.
type Step struct {
	Op       string `yaml:"op"`
	ID       uint64 `yaml:"id,omitempty"`
	Side     string `yaml:"side,omitempty"`
	Price    string `yaml:"price,omitempty"`
	Quantity uint64 `yaml:"qty,omitempty"`
	Note     string `yaml:"note,omitempty"`

	// Expect is checked against the outcome when set
	Expect string `yaml:"expect,omitempty"`
	// ExpectTrades, when set, is the exact number of trades the step must produce
	ExpectTrades *int `yaml:"expect_trades,omitempty"`
}

// Parse decodes and validates a YAML script
func Parse(r io.Reader) (*Script, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var script Script
	if err := dec.Decode(&script); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty document", ErrInvalidScript)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidScript, err)
	}

	if err := script.Validate(); err != nil {
		return nil, err
	}
	return &script, nil
}

// ParseBytes is Parse over an in-memory document
func ParseBytes(data []byte) (*Script, error) {
	return Parse(bytes.NewReader(data))
}

// ParseFile reads and parses the script at path
func ParseFile(path string) (*Script, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open script: %w", err)
	}
	defer f.Close()

	return Parse(f)
}

// Validate checks that every step is well formed. Values the book itself
// rejects, such as a zero quantity, are allowed so scripts can assert on
// rejections.
func (s *Script) Validate() error {
	for i, step := range s.Steps {
		if err := step.validate(); err != nil {
			return fmt.Errorf("%w: step %d (%s): %v", ErrInvalidScript, i, step.Op, err)
		}
	}
	return nil
}

func (st Step) validate() error {
	switch st.Expect {
	case ExpectAny, ExpectAccepted, ExpectRejected:
	default:
		return fmt.Errorf("unknown expect %q", st.Expect)
	}

	switch st.Op {
	case OpAdd:
		if _, err := core.ParseSide(st.Side); err != nil {
			return err
		}
		if _, err := st.price(); err != nil {
			return err
		}
	case OpModify:
		if _, err := st.price(); err != nil {
			return err
		}
	case OpCancel, OpClear, OpSnapshot:
	default:
		return fmt.Errorf("unknown op %q", st.Op)
	}
	return nil
}

func (st Step) price() (fpdecimal.Decimal, error) {
	if st.Price == "" {
		return fpdecimal.Zero, errors.New("missing price")
	}
	p, err := fpdecimal.FromString(st.Price)
	if err != nil {
		return fpdecimal.Zero, fmt.Errorf("bad price %q: %w", st.Price, err)
	}
	return p, nil
}

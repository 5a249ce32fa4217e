package exchange

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/hupe1980/stepwise/algorithm"
)

// ErrInvalidKey is returned for keys that cannot be mapped to a path.
var ErrInvalidKey = errors.New("exchange: invalid key")

// Key names one partial result: the output of Step on Node in Round of
// Job. Name distinguishes several outputs of the same step.
type Key struct {
	Job   string
	Round int
	Step  algorithm.StepID
	Node  int
	Name  string
}

// Validate checks that every path component is representable.
func (k Key) Validate() error {
	switch {
	case k.Job == "" || k.Job == "." || k.Job == ".." || strings.ContainsAny(k.Job, "/\\"):
		return fmt.Errorf("%w: job %q", ErrInvalidKey, k.Job)
	case k.Round < 0:
		return fmt.Errorf("%w: round %d", ErrInvalidKey, k.Round)
	case k.Node < 0:
		return fmt.Errorf("%w: node %d", ErrInvalidKey, k.Node)
	case k.Name == "." || k.Name == ".." || strings.ContainsAny(k.Name, "/\\"):
		return fmt.Errorf("%w: name %q", ErrInvalidKey, k.Name)
	}
	return nil
}

// StepPath is the path prefix shared by all nodes of the step:
// "<job>/r<round>/<step>".
func (k Key) StepPath() string {
	return fmt.Sprintf("%s/r%d/%s", k.Job, k.Round, k.Step)
}

// Path is the blob path: "<job>/r<round>/<step>/<node>[/<name>]".
func (k Key) Path() string {
	p := k.StepPath() + "/" + strconv.Itoa(k.Node)
	if k.Name != "" {
		p += "/" + k.Name
	}
	return p
}

func (k Key) String() string { return k.Path() }

// ParseKey is the inverse of Key.Path.
func ParseKey(path string) (Key, error) {
	parts := strings.Split(path, "/")
	if len(parts) != 4 && len(parts) != 5 {
		return Key{}, fmt.Errorf("%w: %q", ErrInvalidKey, path)
	}
	var k Key
	k.Job = parts[0]
	round, ok := strings.CutPrefix(parts[1], "r")
	if !ok {
		return Key{}, fmt.Errorf("%w: round in %q", ErrInvalidKey, path)
	}
	var err error
	if k.Round, err = strconv.Atoi(round); err != nil {
		return Key{}, fmt.Errorf("%w: round in %q", ErrInvalidKey, path)
	}
	if k.Step, err = algorithm.ParseStepID(parts[2]); err != nil {
		return Key{}, fmt.Errorf("%w: %w", ErrInvalidKey, err)
	}
	if k.Node, err = strconv.Atoi(parts[3]); err != nil {
		return Key{}, fmt.Errorf("%w: node in %q", ErrInvalidKey, path)
	}
	if len(parts) == 5 {
		k.Name = parts[4]
	}
	return k, k.Validate()
}

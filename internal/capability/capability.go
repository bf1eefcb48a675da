// ABOUTME: Core capability types: definitions, input shapes, rate policies, and the
// ABOUTME: executor contract the protocol layer hands validated invocations to.

package capability

import (
	"context"
	"errors"
	"regexp"
	"time"

	"github.com/conclave-mesh/conclave-gateway/internal/trust"
)

// ErrNotFound indicates the named capability is not in the registry.
var ErrNotFound = errors.New("capability not found")

// ErrInvalidInput indicates the supplied arguments violate the capability's
// input shape.
var ErrInvalidInput = errors.New("invalid input")

// DefaultWindow is the rate-limit window applied when a capability does not
// declare one.
const DefaultWindow = 60 * time.Second

// FieldType is the primitive type of a declared input field.
type FieldType string

const (
	FieldString  FieldType = "string"
	FieldNumber  FieldType = "number"
	FieldBoolean FieldType = "boolean"
)

// FieldSpec describes a single declared input field. Enum and Pattern apply
// to string fields only.
type FieldSpec struct {
	Type    FieldType
	Enum    []string
	Pattern string

	re *regexp.Regexp // compiled from Pattern at registry build time
}

// InputShape is the structural schema for a capability's arguments.
type InputShape struct {
	Required []string
	Fields   map[string]FieldSpec
}

// RatePolicy bounds invocations of one capability by one session within a
// fixed window.
type RatePolicy struct {
	MaxPerWindow int
	Window       time.Duration
}

// Capability is one invocable operation. Instances are built once at startup
// and never mutated afterwards; they may be read concurrently without
// locking.
type Capability struct {
	Name        string
	Description string
	Input       InputShape
	MinTrust    trust.Level
	Limit       RatePolicy
	Tags        []string
}

// Invocation is a fully gated capability call handed to an execution
// backend: arguments have been validated and the session's trust admitted.
type Invocation struct {
	Capability string
	Identity   string
	Trust      trust.Level
	Arguments  map[string]any
}

// Executor runs capability business logic. Implementations must be safe for
// concurrent use; the protocol core depends on nothing beyond this contract.
type Executor interface {
	Execute(ctx context.Context, inv Invocation) (map[string]any, error)
}

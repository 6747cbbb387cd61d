package session

import (
	"fmt"

	"github.com/google/uuid"
)

// URLResolver maps a completed attempt to the path the student should be sent
// to. Injected so the session core never reaches into routing internals.
type URLResolver interface {
	// ResultPath returns the path of the result view for an attempt.
	ResultPath(attemptID uuid.UUID) string
	// FallbackPath returns where to send the student when the submission
	// succeeded but no attempt id came back.
	FallbackPath() string
}

// StaticResolver resolves result paths against a fixed base path. The zero
// value resolves under "/quizzes".
type StaticResolver struct {
	Base string
}

func (r StaticResolver) base() string {
	if r.Base == "" {
		return "/quizzes"
	}
	return r.Base
}

func (r StaticResolver) ResultPath(attemptID uuid.UUID) string {
	return fmt.Sprintf("%s/attempts/%s", r.base(), attemptID)
}

func (r StaticResolver) FallbackPath() string {
	return r.base()
}

// ResolveResult picks the result path for a submission outcome: the attempt's
// result view when an id is present, the fallback otherwise.
func ResolveResult(resolver URLResolver, attemptID uuid.UUID) string {
	if attemptID == uuid.Nil {
		return resolver.FallbackPath()
	}
	return resolver.ResultPath(attemptID)
}

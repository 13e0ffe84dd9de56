// Package resolve turns a user supplied reference (full identifier,
// identifier prefix or name) into the identifier of exactly one resource.
package resolve

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/unisrv/unisrv-cli/pkg/unisrv/apierrors"
)

// Kind names a resource type, used in error messages.
type Kind string

const (
	KindInstance Kind = "instance"
	KindService  Kind = "service"
	KindNetwork  Kind = "network"
	KindHost     Kind = "host"
	KindTarget   Kind = "target"
)

// Summary is the part of a listed resource needed to match a reference.
type Summary struct {
	ID     uuid.UUID
	Name   string
	Status string
}

// Lister fetches the candidates for a resolution.
type Lister interface {
	List(ctx context.Context) ([]Summary, error)
}

// ListerFunc adapts a function to Lister.
type ListerFunc func(ctx context.Context) ([]Summary, error)

func (f ListerFunc) List(ctx context.Context) ([]Summary, error) {
	return f(ctx)
}

// Resolve returns the identifier referenced by input. A full identifier is
// returned without listing. Otherwise candidates are matched by identifier
// prefix and, only when no identifier matches, by exact name.
func Resolve(ctx context.Context, kind Kind, input string, lister Lister) (uuid.UUID, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return uuid.Nil, apierrors.Validation("%s reference must not be empty", kind)
	}
	if id, err := uuid.Parse(input); err == nil {
		return id, nil
	}

	candidates, err := lister.List(ctx)
	if err != nil {
		return uuid.Nil, err
	}
	return Match(kind, input, candidates)
}

// Match applies the matching rules of Resolve to an already fetched list.
// Identifier prefixes are compared case-insensitively, names are compared
// exactly.
func Match(kind Kind, input string, candidates []Summary) (uuid.UUID, error) {
	lowered := strings.ToLower(input)
	matches := collect(candidates, func(c Summary) bool {
		return strings.HasPrefix(c.ID.String(), lowered)
	})
	if len(matches) == 0 {
		matches = collect(candidates, func(c Summary) bool {
			return c.Name != "" && c.Name == input
		})
	}

	switch len(matches) {
	case 0:
		return uuid.Nil, &apierrors.NotFoundError{Kind: string(kind), Reference: input}
	case 1:
		return matches[0].ID, nil
	default:
		return uuid.Nil, &apierrors.AmbiguousError{Kind: string(kind), Reference: input, Count: len(matches)}
	}
}

func collect(candidates []Summary, keep func(Summary) bool) []Summary {
	var out []Summary
	for _, c := range candidates {
		if keep(c) {
			out = append(out, c)
		}
	}
	return out
}

// Filter returns a Lister that only yields candidates accepted by keep.
func Filter(lister Lister, keep func(Summary) bool) Lister {
	return ListerFunc(func(ctx context.Context) ([]Summary, error) {
		all, err := lister.List(ctx)
		if err != nil {
			return nil, err
		}
		out := all[:0:0]
		for _, s := range all {
			if keep(s) {
				out = append(out, s)
			}
		}
		return out, nil
	})
}

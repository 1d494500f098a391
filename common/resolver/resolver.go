// Package resolver finds the address of a service from flags, the
// environment or a fallback, in that order.
package resolver

import (
	"fmt"
	"os"
)

// Resolver resolves a service to an address or URL. An empty result means
// the resolver has no opinion.
type Resolver interface {
	Resolve() (string, error)
}

type ConstantResolver struct {
	s string
}

func NewConstantResolver(s string) *ConstantResolver {
	return &ConstantResolver{s: s}
}

func (r *ConstantResolver) Resolve() (string, error) {
	return r.s, nil
}

func (r *ConstantResolver) String() string {
	return fmt.Sprintf("constant(%q)", r.s)
}

// EnvResolver reads a key of the process environment.
type EnvResolver struct {
	key string
}

func NewEnvResolver(key string) *EnvResolver {
	return &EnvResolver{key: key}
}

func (r *EnvResolver) Resolve() (string, error) {
	return os.Getenv(r.key), nil
}

func (r *EnvResolver) String() string {
	return "env(" + r.key + ")"
}

// CompositeResolver returns the first non-empty result or error of its
// delegates.
type CompositeResolver struct {
	dels []Resolver
}

func NewCompositeResolver(dels ...Resolver) *CompositeResolver {
	return &CompositeResolver{dels: dels}
}

func (r *CompositeResolver) Resolve() (string, error) {
	for _, d := range r.dels {
		if s, err := d.Resolve(); s != "" || err != nil {
			return s, err
		}
	}
	return "", fmt.Errorf("could not resolve: no delegate resolved: %v", r.dels)
}

package container

import "fmt"

// Option holds a value that may be absent. The trace model uses it wherever the wire format uses -1 to mean
// "not observed", so that an unset timestamp can't take part in arithmetic by accident.
type Option[T any] struct {
	v   T
	set bool
}

func (opt Option[T]) String() string {
	if !opt.set {
		return "None"
	}
	return fmt.Sprintf("%v", opt.v)
}

func None[T any]() Option[T] {
	return Option[T]{}
}

func Some[T any](v T) Option[T] {
	return Option[T]{
		v:   v,
		set: true,
	}
}

// SomeUnless returns None if v equals the sentinel and Some(v) otherwise.
func SomeUnless[T comparable](v T, sentinel T) Option[T] {
	if v == sentinel {
		return None[T]()
	}
	return Some(v)
}

func (opt Option[T]) Get() (T, bool) {
	return opt.v, opt.set
}

func (opt Option[T]) GetOr(alt T) T {
	if opt.set {
		return opt.v
	}
	return alt
}

// Or returns opt if it is set and alt otherwise.
func (opt Option[T]) Or(alt Option[T]) Option[T] {
	if opt.set {
		return opt
	}
	return alt
}

func (opt Option[T]) Set() bool {
	return opt.set
}

func (opt Option[T]) MustGet() T {
	if !opt.set {
		panic("called MustGet on unset Option")
	}
	return opt.v
}

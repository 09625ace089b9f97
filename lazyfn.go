package dylink

import (
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/wippyai/dylink/errors"
)

// LazyFn is the cache cell behind a generated extern function.
//
// The cell starts out pointing at its trampoline. The first call through the
// trampoline resolves the symbol exactly once per cell; concurrent first
// callers wait for the winner and then use the stored function. Later calls
// through Get go straight to the resolved function.
type LazyFn[F any] struct {
	current  atomic.Pointer[F]
	err      error
	resolver Resolver
	bind     Binder[F]
	wrap     func(F) F
	symbol   string
	abi      ABI
	strategy Strategy
	once     sync.Once
	resolved atomic.Bool
}

// NewLazyFn creates an unresolved cell for symbol. F must be a func type.
func NewLazyFn[F any](symbol string, abi ABI, strategy Strategy) *LazyFn[F] {
	if t := reflect.TypeFor[F](); t.Kind() != reflect.Func {
		panic(fmt.Sprintf("dylink: LazyFn of non-function type %s", t))
	}
	return &LazyFn[F]{
		symbol:   symbol,
		abi:      abi,
		strategy: strategy,
	}
}

// WithResolver sets the resolver used by this cell. It must be called before
// the first invocation.
func (l *LazyFn[F]) WithResolver(r Resolver) *LazyFn[F] {
	l.resolver = r
	return l
}

// WithBinder sets the binder used by this cell. It must be called before the
// first invocation.
func (l *LazyFn[F]) WithBinder(b Binder[F]) *LazyFn[F] {
	l.bind = b
	return l
}

// Wrap sets a decorator applied to the bound function before it is
// published, so every call through the cell passes through it. It must be
// called before the first invocation.
func (l *LazyFn[F]) Wrap(w func(F) F) *LazyFn[F] {
	l.wrap = w
	return l
}

// Init installs the trampoline. It has no effect once the cell holds a
// function.
func (l *LazyFn[F]) Init(trampoline F) {
	l.current.CompareAndSwap(nil, &trampoline)
}

// Get returns the function to call: the trampoline until the symbol is
// resolved, the resolved function afterwards. A cell without a trampoline
// resolves on the spot.
func (l *LazyFn[F]) Get() F {
	if p := l.current.Load(); p != nil {
		return *p
	}
	return l.Resolve()
}

// Resolve resolves the symbol at most once and returns the stored function.
// Resolution failure is fatal: Resolve panics with an *errors.Error naming the
// symbol and the reason, and never retries.
func (l *LazyFn[F]) Resolve() F {
	fn, err := l.TryResolve()
	if err != nil {
		panic(err)
	}
	return fn
}

// TryResolve is Resolve returning the failure instead of panicking.
func (l *LazyFn[F]) TryResolve() (F, error) {
	l.once.Do(l.resolve)
	if l.err != nil {
		var zero F
		return zero, l.err
	}
	return *l.current.Load(), nil
}

// Resolved reports whether the symbol has been bound.
func (l *LazyFn[F]) Resolved() bool { return l.resolved.Load() }

// Symbol returns the native symbol name.
func (l *LazyFn[F]) Symbol() string { return l.symbol }

// ABI returns the calling convention tag.
func (l *LazyFn[F]) ABI() ABI { return l.abi }

// Strategy returns the link strategy.
func (l *LazyFn[F]) Strategy() Strategy { return l.strategy }

func (l *LazyFn[F]) resolve() {
	log := Logger().With(
		zap.String("symbol", l.symbol),
		zap.Stringer("strategy", l.strategy))

	resolver := l.resolver
	if resolver == nil {
		resolver = DefaultResolver()
	}

	addr, err := resolver.Resolve(l.symbol, l.strategy)
	if err != nil {
		l.err = l.failure(err)
		log.Error("symbol resolution failed", zap.Error(err))
		return
	}

	bind := l.bind
	if bind == nil {
		bind = BindNative[F]
	}

	var fn F
	if err := bind(addr, l.abi, &fn); err != nil {
		l.err = l.failure(err)
		log.Error("symbol binding failed", zap.Uintptr("addr", addr), zap.Error(err))
		return
	}
	if l.wrap != nil {
		fn = l.wrap(fn)
	}

	l.current.Store(&fn)
	l.resolved.Store(true)
	log.Debug("symbol resolved", zap.Uintptr("addr", addr))
}

func (l *LazyFn[F]) failure(cause error) *errors.Error {
	kind := errors.KindNotFound
	if e, ok := cause.(*errors.Error); ok {
		kind = e.Kind
	}
	return errors.New(errors.PhaseResolve, kind).
		Symbol(l.symbol).
		Detail("failed to resolve %s using %s", l.symbol, l.strategy).
		Cause(cause).
		Build()
}

package sqlite

import (
	"database/sql/driver"
	"fmt"
	"sync"

	sqlite "modernc.org/sqlite"

	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/storage/vecmath"
)

type scalarFunc = func(*sqlite.FunctionContext, []driver.Value) (driver.Value, error)

// functionRegistry registers SQL functions with the driver at most once.
// The driver keeps registrations process-wide and rejects a second one, so
// the first outcome is remembered and returned to every later caller.
type functionRegistry struct {
	once     sync.Once
	err      error
	register func(name string, nArg int32, fn scalarFunc) error
}

var vectorFunctions = &functionRegistry{register: sqlite.RegisterDeterministicScalarFunction}

func (r *functionRegistry) ensure() error {
	r.once.Do(func() {
		if err := r.register("vec_cosine", 2, vecCosine); err != nil {
			r.err = fmt.Errorf("registering vec_cosine: %w", err)
		}
	})
	return r.err
}

// registerVectorFunctions makes vec_cosine available to connections opened
// afterwards.
func registerVectorFunctions() error {
	return vectorFunctions.ensure()
}

// vecCosine returns the cosine similarity of two embedding BLOBs, or NULL
// when either is NULL, the dimensions differ, or a vector has no magnitude.
func vecCosine(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("vec_cosine: expected 2 arguments, got %d", len(args))
	}
	a, err := asEmbedding(args[0])
	if err != nil {
		return nil, err
	}
	b, err := asEmbedding(args[1])
	if err != nil {
		return nil, err
	}
	if a == nil || b == nil {
		return nil, nil
	}
	sim, ok := vecmath.Similarity(a, b)
	if !ok {
		return nil, nil
	}
	return sim, nil
}

func asEmbedding(arg driver.Value) ([]float32, error) {
	switch v := arg.(type) {
	case nil:
		return nil, nil
	case []byte:
		return vecmath.Decode(v)
	default:
		return nil, fmt.Errorf("vec_cosine: unsupported argument type %T; want BLOB", arg)
	}
}

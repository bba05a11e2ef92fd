package idgen_test

import (
	"messenger/pkg/idgen"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestSequence_Increments(t *testing.T) {
	var s idgen.Sequence
	require.Equal(t, "00000000-0000-0000-0000-000000000001", s.NewID().String())
	require.Equal(t, "00000000-0000-0000-0000-000000000002", s.NewID().String())
}

func TestSequence_ConcurrentUnique(t *testing.T) {
	var s idgen.Sequence
	const n = 200

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = make(map[uuid.UUID]struct{}, n)
	)
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := s.NewID()
			mu.Lock()
			seen[id] = struct{}{}
			mu.Unlock()
		}()
	}
	wg.Wait()

	require.Len(t, seen, n)
}

func TestUUID_Version7(t *testing.T) {
	id := idgen.UUID{}.NewID()
	require.Equal(t, uuid.Version(7), id.Version())
	require.NotEqual(t, id, idgen.UUID{}.NewID())
}

func TestNew(t *testing.T) {
	require.IsType(t, &idgen.Sequence{}, idgen.New(idgen.StrategySequence))
	require.IsType(t, idgen.UUID{}, idgen.New(idgen.StrategyUUID))
	require.IsType(t, idgen.UUID{}, idgen.New("whatever"))
}

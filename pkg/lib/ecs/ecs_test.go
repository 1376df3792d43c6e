package ecs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type position struct{ X, Y, Z float64 }

type label struct{ Text string }

func TestMemoryWorld_ComponentLifecycle(t *testing.T) {
	w := NewMemoryWorld()
	id := w.CreateEntity(&position{X: 1})

	p, ok := Get[position](w, id)
	require.True(t, ok)
	assert.Equal(t, 1.0, p.X)

	p.X = 5
	p2, _ := Get[position](w, id)
	assert.Equal(t, 5.0, p2.X, "组件以指针存储，修改应可见")

	assert.False(t, Has[label](w, id))
	require.NoError(t, w.AddComponent(id, &label{Text: "a"}))
	assert.True(t, Has[label](w, id))

	assert.True(t, w.RemoveComponent(id, TypeOf[label]()))
	_, err := MustGet[label](w, id)
	assert.Error(t, err)

	assert.True(t, w.DestroyEntity(id))
	assert.False(t, w.DestroyEntity(id))
	assert.False(t, w.Alive(id))
}

func TestMemoryWorld_AddComponentRejectsValues(t *testing.T) {
	w := NewMemoryWorld()
	id := w.CreateEntity()
	assert.Error(t, w.AddComponent(id, position{}))
	assert.Error(t, w.AddComponent(id+1, &position{}))
}

func TestMemoryWorld_UpdateRunsSystems(t *testing.T) {
	calls := 0
	w := NewMemoryWorld(func(_ context.Context, _ *MemoryWorld) error {
		calls++
		return nil
	})
	require.NoError(t, w.Update(context.Background()))
	require.NoError(t, w.Update(context.Background()))
	assert.Equal(t, 2, calls)
	assert.Equal(t, uint64(2), w.Steps())
}

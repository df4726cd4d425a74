package event

import (
	"testing"

	"github.com/geoworld/engine/internal/geometry"
	"github.com/stretchr/testify/assert"
)

func TestBusDeliversNextTick(t *testing.T) {
	b := NewBus()
	var got []geometry.ID
	Subscribe(b, func(e GeometryPublished) { got = append(got, e.ID) })

	Emit(b, GeometryPublished{ID: 1, Kind: geometry.KindStaticMap})
	Emit(b, GeometryRetired{ID: 9}) // no subscriber
	b.DispatchAll()
	assert.Empty(t, got, "events are not readable in the tick they were emitted")

	b.SwapBuffers()
	b.DispatchAll()
	assert.Equal(t, []geometry.ID{1}, got)

	b.SwapBuffers()
	b.DispatchAll()
	assert.Equal(t, []geometry.ID{1}, got, "front buffer is cleared after a swap")
}

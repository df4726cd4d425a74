package scripting

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"

	"github.com/geoworld/engine/internal/data"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// Engine wraps a gopher-lua VM running world-building scripts. Scripts
// declare static maps with the static_map function:
//
//	static_map {
//	  name = "e1m1",
//	  render_node = 7,
//	  collision_mesh = 3, -- optional
//	  sectors = { {1, 2, 3}, {3, 4} },
//	}
//
// Single-goroutine access only.
type Engine struct {
	vm   *lua.LState
	log  *zap.Logger
	maps []data.StaticMapDef
}

func NewEngine(log *zap.Logger) *Engine {
	vm := lua.NewState(lua.Options{SkipOpenLibs: false})
	vm.SetGlobal("API_VERSION", lua.LNumber(1))

	e := &Engine{vm: vm, log: log}
	vm.SetGlobal("static_map", vm.NewFunction(e.luaStaticMap))
	return e
}

func (e *Engine) Close() {
	e.vm.Close()
}

// LoadDir runs every .lua file in dir in name order. A missing directory is
// not an error.
func (e *Engine) LoadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	for _, name := range names {
		path := filepath.Join(dir, name)
		if err := e.vm.DoFile(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		e.log.Debug("loaded lua script", zap.String("file", path))
	}
	return nil
}

// DoString runs a script held in memory.
func (e *Engine) DoString(src string) error {
	return e.vm.DoString(src)
}

// Maps returns the static maps declared so far, in declaration order.
func (e *Engine) Maps() *data.MapFile {
	return &data.MapFile{Maps: append([]data.StaticMapDef(nil), e.maps...)}
}

func (e *Engine) luaStaticMap(L *lua.LState) int {
	t := L.CheckTable(1)

	def := data.StaticMapDef{Name: lua.LVAsString(t.RawGetString("name"))}

	node, ok, err := optionalID(t.RawGetString("render_node"))
	if err != nil {
		L.ArgError(1, "render_node: "+err.Error())
		return 0
	}
	if ok {
		def.RenderNode = &node
	}

	mesh, ok, err := optionalID(t.RawGetString("collision_mesh"))
	if err != nil {
		L.ArgError(1, "collision_mesh: "+err.Error())
		return 0
	}
	if ok {
		def.CollisionMesh = &mesh
	}

	switch sectors := t.RawGetString("sectors").(type) {
	case *lua.LNilType:
	case *lua.LTable:
		for i := 1; i <= sectors.Len(); i++ {
			st, isTable := sectors.RawGetInt(i).(*lua.LTable)
			if !isTable {
				L.ArgError(1, fmt.Sprintf("sectors[%d] is not a table", i))
				return 0
			}
			sd := data.SectorDef{Surfaces: make([]uint64, 0, st.Len())}
			for j := 1; j <= st.Len(); j++ {
				v, err := toID(st.RawGetInt(j))
				if err != nil {
					L.ArgError(1, fmt.Sprintf("sectors[%d][%d]: %v", i, j, err))
					return 0
				}
				sd.Surfaces = append(sd.Surfaces, v)
			}
			def.Sectors = append(def.Sectors, sd)
		}
	default:
		L.ArgError(1, "sectors must be a table")
		return 0
	}

	e.maps = append(e.maps, def)
	L.Push(lua.LNumber(len(e.maps)))
	return 1
}

func optionalID(v lua.LValue) (uint64, bool, error) {
	if v == lua.LNil {
		return 0, false, nil
	}
	id, err := toID(v)
	return id, err == nil, err
}

// toID accepts non-negative integral numbers exactly representable in a Lua
// number.
func toID(v lua.LValue) (uint64, error) {
	n, ok := v.(lua.LNumber)
	if !ok {
		return 0, fmt.Errorf("expected number, got %s", v.Type())
	}
	f := float64(n)
	if f < 0 || f != math.Trunc(f) || f > 1<<53 {
		return 0, fmt.Errorf("invalid id %v", f)
	}
	return uint64(f), nil
}

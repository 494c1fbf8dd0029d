// Package scripting wraps a gopher-lua VM that supplies the damage formula
// and mob combat behaviors. Single-goroutine access only (game loop).
package scripting

import (
	"fmt"
	"os"
	"path/filepath"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/tilerealm/server/internal/combat"
)

// Engine wraps a single Lua VM loaded from the scripts directory.
type Engine struct {
	vm  *lua.LState
	log *zap.Logger
}

// NewEngine creates a Lua engine and loads every .lua file in scriptsDir.
// A missing directory yields an engine with no functions defined; callers
// fall back to built-in formulas.
func NewEngine(scriptsDir string, log *zap.Logger) (*Engine, error) {
	vm := lua.NewState(lua.Options{
		SkipOpenLibs: false,
	})
	vm.SetGlobal("API_VERSION", lua.LNumber(1))

	e := &Engine{vm: vm, log: log}
	if err := e.loadDir(scriptsDir); err != nil {
		vm.Close()
		return nil, err
	}
	return e, nil
}

// Close shuts down the VM.
func (e *Engine) Close() {
	e.vm.Close()
}

func (e *Engine) loadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := e.vm.DoFile(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		e.log.Debug("loaded lua script", zap.String("file", path))
	}
	return nil
}

// Roll calls the Lua calc_damage function. The second return is false when
// the script does not define one, so the registry's built-in formula runs.
func (e *Engine) Roll(attackerLevel, weapon, armor int32, isAoE bool) (int32, bool) {
	fn := e.vm.GetGlobal("calc_damage")
	if fn == lua.LNil {
		return 0, false
	}

	t := e.vm.NewTable()
	t.RawSetString("level", lua.LNumber(attackerLevel))
	t.RawSetString("weapon", lua.LNumber(weapon))
	t.RawSetString("armor", lua.LNumber(armor))
	t.RawSetString("is_aoe", lua.LBool(isAoE))

	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, t); err != nil {
		e.log.Error("lua calc_damage error", zap.Error(err))
		return 0, false
	}

	result := e.vm.Get(-1)
	e.vm.Pop(1)

	dmg := int32(lua.LVAsNumber(result))
	if dmg < 1 {
		dmg = 1
	}
	return dmg, true
}

// Behavior looks up a named behavior in the Lua behaviors table. Hooks are
// optional: a behavior may define any subset of on_engage, on_hurt,
// on_death.
func (e *Engine) Behavior(name string) (combat.Behavior, bool) {
	table, ok := e.vm.GetGlobal("behaviors").(*lua.LTable)
	if !ok {
		return nil, false
	}
	entry, ok := table.RawGetString(name).(*lua.LTable)
	if !ok {
		return nil, false
	}
	return &luaBehavior{engine: e, name: name, table: entry}, true
}

// luaBehavior dispatches combat hooks into a Lua behavior table.
type luaBehavior struct {
	engine *Engine
	name   string
	table  *lua.LTable
}

func (b *luaBehavior) OnEngage(c *combat.Controller, attacker combat.Actor) {
	b.call("on_engage", attacker, 0)
}

func (b *luaBehavior) OnHurt(c *combat.Controller, attacker combat.Actor, damage int32) {
	b.call("on_hurt", attacker, damage)
}

func (b *luaBehavior) OnDeath(c *combat.Controller, killer combat.Actor) {
	b.call("on_death", killer, 0)
}

func (b *luaBehavior) call(hook string, other combat.Actor, damage int32) {
	fn := b.table.RawGetString(hook)
	if fn == lua.LNil {
		return
	}
	vm := b.engine.vm

	ctx := vm.NewTable()
	if other != nil {
		ctx.RawSetString("other", lua.LNumber(other.Instance()))
	}
	if damage != 0 {
		ctx.RawSetString("damage", lua.LNumber(damage))
	}

	if err := vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    0,
		Protect: true,
	}, ctx); err != nil {
		b.engine.log.Error("lua behavior hook error",
			zap.String("behavior", b.name), zap.String("hook", hook), zap.Error(err))
	}
}
